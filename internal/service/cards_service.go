package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/stockledger-go/internal/billing"
	"github.com/boddenberg/stockledger-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Cards
// ============================================================

func validateCard(req *domain.CardRequest) error {
	req.Alias = strings.TrimSpace(req.Alias)
	if req.Alias == "" {
		return &domain.ErrValidation{Field: "alias", Message: "required"}
	}
	if !domain.ValidDay(req.ClosingDay) {
		return &domain.ErrInvalidConfiguration{Field: "closing_day", Value: req.ClosingDay}
	}
	if !domain.ValidDay(req.DueDay) {
		return &domain.ErrInvalidConfiguration{Field: "due_day", Value: req.DueDay}
	}
	return nil
}

func (s *LedgerService) CreateCard(ctx context.Context, ownerID string, req *domain.CardRequest) (*domain.Card, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.CreateCard")
	defer span.End()

	if err := validateCard(req); err != nil {
		return nil, err
	}

	card, err := s.store.CreateCard(ctx, ownerID, req)
	if err != nil {
		s.logger.Error("failed to create card", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, s.observe(fmt.Errorf("create card: %w", err))
	}

	s.logger.Info("card created",
		zap.String("owner_id", ownerID),
		zap.String("card_id", card.ID),
		zap.Int("closing_day", card.ClosingDay),
		zap.Int("due_day", card.DueDay),
	)
	return card, nil
}

func (s *LedgerService) ListCards(ctx context.Context, ownerID string) ([]domain.Card, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.ListCards")
	defer span.End()

	cards, err := s.store.ListCards(ctx, ownerID)
	if err != nil {
		return nil, s.observe(fmt.Errorf("list cards: %w", err))
	}
	return cards, nil
}

func (s *LedgerService) GetCard(ctx context.Context, ownerID, cardID string) (*domain.Card, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.GetCard")
	defer span.End()
	span.SetAttributes(attribute.String("card.id", cardID))

	card, err := s.store.GetCard(ctx, ownerID, cardID)
	if err != nil {
		return nil, s.observe(fmt.Errorf("get card: %w", err))
	}
	return card, nil
}

// UpdateCard changes alias and billing days. Payments already stored keep the
// cycle they were resolved to.
func (s *LedgerService) UpdateCard(ctx context.Context, ownerID, cardID string, req *domain.CardRequest) (*domain.Card, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.UpdateCard")
	defer span.End()
	span.SetAttributes(attribute.String("card.id", cardID))

	if err := validateCard(req); err != nil {
		return nil, err
	}

	card, err := s.store.UpdateCard(ctx, ownerID, cardID, req)
	if err != nil {
		return nil, s.observe(fmt.Errorf("update card: %w", err))
	}
	s.invalidateReports(ownerID)

	s.logger.Info("card updated", zap.String("owner_id", ownerID), zap.String("card_id", cardID))
	return card, nil
}

// PreviewCycle resolves the cycle and due date a purchase made on date would
// be billed in.
func (s *LedgerService) PreviewCycle(ctx context.Context, ownerID, cardID string, date time.Time) (*domain.CyclePreview, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.PreviewCycle")
	defer span.End()
	span.SetAttributes(attribute.String("card.id", cardID))

	card, err := s.GetCard(ctx, ownerID, cardID)
	if err != nil {
		return nil, err
	}

	cycleClose, err := billing.ResolveCycleClose(date, card.ClosingDay)
	if err != nil {
		return nil, err
	}
	due, err := billing.DueDate(cycleClose, card.DueDay)
	if err != nil {
		return nil, err
	}

	return &domain.CyclePreview{
		CardID:     card.ID,
		Date:       date.Format(billing.DateLayout),
		CycleClose: cycleClose.Format(billing.DateLayout),
		DueDate:    due.Format(billing.DateLayout),
		Month:      billing.MonthKey(cycleClose),
	}, nil
}
