package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"flashdeck-backend/internal/models"
)

// DeckView is the cached deck-detail payload.
type DeckView struct {
	Deck  models.Deck   `json:"deck"`
	Cards []models.Card `json:"cards"`
}

// ViewCache holds rendered read models (dashboard deck list, deck detail)
// so mutations can invalidate them. Misses are always safe; the cache is
// never the source of truth.
type ViewCache interface {
	GetDeckList(ctx context.Context, userID uuid.UUID) ([]models.DeckWithCount, bool)
	SetDeckList(ctx context.Context, userID uuid.UUID, decks []models.DeckWithCount)
	GetDeckView(ctx context.Context, deckID uuid.UUID) (*DeckView, bool)
	SetDeckView(ctx context.Context, deckID uuid.UUID, view *DeckView)
	InvalidateDeckList(ctx context.Context, userID uuid.UUID)
	InvalidateDeckView(ctx context.Context, deckID uuid.UUID)
}

type RedisViewCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisViewCache(rdb *redis.Client) *RedisViewCache {
	return &RedisViewCache{rdb: rdb, ttl: 5 * time.Minute}
}

func deckListKey(userID uuid.UUID) string { return fmt.Sprintf("decks:user:%s", userID) }
func deckViewKey(deckID uuid.UUID) string { return fmt.Sprintf("deck:%s", deckID) }

func (c *RedisViewCache) GetDeckList(ctx context.Context, userID uuid.UUID) ([]models.DeckWithCount, bool) {
	raw, err := c.rdb.Get(ctx, deckListKey(userID)).Result()
	if err != nil {
		return nil, false
	}

	var decks []models.DeckWithCount
	if err := json.Unmarshal([]byte(raw), &decks); err != nil {
		return nil, false
	}
	return decks, true
}

func (c *RedisViewCache) SetDeckList(ctx context.Context, userID uuid.UUID, decks []models.DeckWithCount) {
	data, err := json.Marshal(decks)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, deckListKey(userID), string(data), c.ttl)
}

func (c *RedisViewCache) GetDeckView(ctx context.Context, deckID uuid.UUID) (*DeckView, bool) {
	raw, err := c.rdb.Get(ctx, deckViewKey(deckID)).Result()
	if err != nil {
		return nil, false
	}

	view := &DeckView{}
	if err := json.Unmarshal([]byte(raw), view); err != nil {
		return nil, false
	}
	return view, true
}

func (c *RedisViewCache) SetDeckView(ctx context.Context, deckID uuid.UUID, view *DeckView) {
	data, err := json.Marshal(view)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, deckViewKey(deckID), string(data), c.ttl)
}

func (c *RedisViewCache) InvalidateDeckList(ctx context.Context, userID uuid.UUID) {
	c.rdb.Del(ctx, deckListKey(userID))
}

func (c *RedisViewCache) InvalidateDeckView(ctx context.Context, deckID uuid.UUID) {
	c.rdb.Del(ctx, deckViewKey(deckID))
}
