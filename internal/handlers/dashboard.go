package handlers

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"flashdeck-backend/internal/middleware"
	"flashdeck-backend/internal/services"
)

type DashboardHandler struct {
	pool *pgxpool.Pool
}

func NewDashboardHandler(pool *pgxpool.Pool) *DashboardHandler {
	return &DashboardHandler{pool: pool}
}

func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())
	ctx := r.Context()

	var deckCount, cardCount, weeklyDeckCount, weeklyCardCount int
	h.pool.QueryRow(ctx, "SELECT COUNT(*) FROM decks WHERE user_id = $1", auth.UserID).Scan(&deckCount)
	h.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM cards c
		JOIN decks d ON d.id = c.deck_id
		WHERE d.user_id = $1
	`, auth.UserID).Scan(&cardCount)

	h.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM decks
		WHERE user_id = $1
		  AND created_at >= NOW() - INTERVAL '7 days'
	`, auth.UserID).Scan(&weeklyDeckCount)

	h.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM cards c
		JOIN decks d ON d.id = c.deck_id
		WHERE d.user_id = $1
		  AND c.created_at >= NOW() - INTERVAL '7 days'
	`, auth.UserID).Scan(&weeklyCardCount)

	remaining := -1 // unlimited
	hasUnlimited := auth.Has(middleware.Entitlement{Feature: middleware.FeatureUnlimitedDecks}) ||
		auth.Has(middleware.Entitlement{Plan: middleware.PlanPro})
	if !hasUnlimited {
		remaining = services.FreeDeckLimit - deckCount
		if remaining < 0 {
			remaining = 0
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"decks":           deckCount,
		"cards":           cardCount,
		"weekly_decks":    weeklyDeckCount,
		"weekly_cards":    weeklyCardCount,
		"plan":            auth.Plan,
		"decks_remaining": remaining,
	})
}
