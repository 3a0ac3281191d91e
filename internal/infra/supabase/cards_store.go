package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/boddenberg/stockledger-go/internal/domain"
	"github.com/boddenberg/stockledger-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Cards
// ============================================================

type cardRow struct {
	ID         string `json:"id"`
	OwnerID    string `json:"owner_id"`
	Alias      string `json:"alias"`
	ClosingDay int    `json:"closing_day"`
	DueDay     int    `json:"due_day"`
	CreatedAt  string `json:"created_at"`
}

func (r cardRow) toDomain() domain.Card {
	return domain.Card{
		ID:         r.ID,
		OwnerID:    r.OwnerID,
		Alias:      r.Alias,
		ClosingDay: r.ClosingDay,
		DueDay:     r.DueDay,
		CreatedAt:  parseTimestamp(r.CreatedAt),
	}
}

func decodeCards(body []byte) ([]domain.Card, error) {
	if body == nil {
		return []domain.Card{}, nil
	}
	var rows []cardRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, resilience.Permanent(fmt.Errorf("decode cards: %w", err))
	}
	cards := make([]domain.Card, 0, len(rows))
	for _, r := range rows {
		cards = append(cards, r.toDomain())
	}
	return cards, nil
}

func (c *Client) CreateCard(ctx context.Context, ownerID string, req *domain.CardRequest) (*domain.Card, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateCard")
	defer span.End()
	span.SetAttributes(attribute.String("owner.id", ownerID))

	row := map[string]any{
		"owner_id":    ownerID,
		"alias":       req.Alias,
		"closing_day": req.ClosingDay,
		"due_day":     req.DueDay,
		"created_at":  time.Now().UTC().Format(time.RFC3339),
	}

	var card *domain.Card
	err := c.write(ctx, "supabase/cards", func() error {
		body, err := c.doPost(ctx, "cards", row)
		if err != nil {
			return err
		}
		cards, err := decodeCards(body)
		if err != nil {
			return err
		}
		if len(cards) == 0 {
			return resilience.Permanent(fmt.Errorf("no result from cards insert"))
		}
		card = &cards[0]
		return nil
	})
	return card, err
}

func (c *Client) ListCards(ctx context.Context, ownerID string) ([]domain.Card, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListCards")
	defer span.End()
	span.SetAttributes(attribute.String("owner.id", ownerID))

	var cards []domain.Card
	err := c.read(ctx, "supabase/cards", func() error {
		path := fmt.Sprintf("cards?owner_id=%s&order=created_at.asc", eq(ownerID))
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		cards, err = decodeCards(body)
		return err
	})
	return cards, err
}

func (c *Client) GetCard(ctx context.Context, ownerID, cardID string) (*domain.Card, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetCard")
	defer span.End()
	span.SetAttributes(attribute.String("card.id", cardID))

	var card *domain.Card
	err := c.read(ctx, "supabase/cards", func() error {
		path := fmt.Sprintf("cards?id=%s&owner_id=%s&limit=1", eq(cardID), eq(ownerID))
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		cards, err := decodeCards(body)
		if err != nil {
			return err
		}
		if len(cards) == 0 {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "card", ID: cardID})
		}
		card = &cards[0]
		return nil
	})
	return card, err
}

func (c *Client) UpdateCard(ctx context.Context, ownerID, cardID string, req *domain.CardRequest) (*domain.Card, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateCard")
	defer span.End()
	span.SetAttributes(attribute.String("card.id", cardID))

	data := map[string]any{
		"alias":       req.Alias,
		"closing_day": req.ClosingDay,
		"due_day":     req.DueDay,
	}

	var card *domain.Card
	err := c.write(ctx, "supabase/cards", func() error {
		path := fmt.Sprintf("cards?id=%s&owner_id=%s", eq(cardID), eq(ownerID))
		body, err := c.doPatch(ctx, path, data)
		if err != nil {
			return err
		}
		cards, err := decodeCards(body)
		if err != nil {
			return err
		}
		if len(cards) == 0 {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "card", ID: cardID})
		}
		card = &cards[0]
		return nil
	})
	return card, err
}
