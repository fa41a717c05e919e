package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const AuthKey contextKey = "auth_context"

// Plans and the features each plan grants. The deck cap and AI generation
// are gated on these; both checks treat {feature} and {plan:pro} as
// interchangeable grants.
const (
	PlanFree = "free"
	PlanPro  = "pro"

	FeatureUnlimitedDecks   = "unlimited_decks"
	FeatureAIGeneratedCards = "ai_generated_cards"
)

var planFeatures = map[string][]string{
	PlanFree: {},
	PlanPro:  {FeatureUnlimitedDecks, FeatureAIGeneratedCards},
}

// Entitlement names either a feature flag or a plan. Exactly one field is
// set per check.
type Entitlement struct {
	Feature string
	Plan    string
}

// AuthContext is the identity resolved from the access token, passed
// explicitly into every service call.
type AuthContext struct {
	UserID uuid.UUID
	Email  string
	Plan   string
}

// Has reports whether the authenticated user holds the entitlement, by plan
// match or by the plan's feature set.
func (a *AuthContext) Has(e Entitlement) bool {
	if a == nil {
		return false
	}
	if e.Plan != "" && a.Plan == e.Plan {
		return true
	}
	if e.Feature != "" {
		for _, f := range planFeatures[a.Plan] {
			if f == e.Feature {
				return true
			}
		}
	}
	return false
}

type JWTAuth struct {
	Secret []byte
}

func NewJWTAuth(secret string) *JWTAuth {
	return &JWTAuth{Secret: []byte(secret)}
}

// GenerateAccessToken creates a JWT with 15 minute expiry
func (j *JWTAuth) GenerateAccessToken(userID uuid.UUID, email, plan string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"email":   email,
		"plan":    plan,
		"exp":     time.Now().Add(15 * time.Minute).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.Secret)
}

// Middleware validates the bearer token and attaches the AuthContext to the
// request context. Requests without a valid token never reach a handler.
func (j *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header", r)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization format", r)
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return j.Secret, nil
		})

		if err != nil {
			if strings.Contains(err.Error(), "expired") {
				writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired", r)
			} else {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token", r)
			}
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token claims", r)
			return
		}

		userIDStr, ok := claims["user_id"].(string)
		if !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid user ID in token", r)
			return
		}

		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid user ID format", r)
			return
		}

		auth := &AuthContext{UserID: userID}
		if email, ok := claims["email"].(string); ok {
			auth.Email = email
		}
		if plan, ok := claims["plan"].(string); ok {
			auth.Plan = plan
		}
		if auth.Plan == "" {
			auth.Plan = PlanFree
		}

		ctx := context.WithValue(r.Context(), AuthKey, auth)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuth extracts the AuthContext from the request context. Nil when the
// request did not pass the auth middleware.
func GetAuth(ctx context.Context) *AuthContext {
	auth, _ := ctx.Value(AuthKey).(*AuthContext)
	return auth
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}
