package inventory

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/optica-erp/optica-erp/internal/shared"
)

// AuditRecorder persists audit trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service exposes stock queries and physical count adjustments.
type Service struct {
	repo   RepositoryPort
	audit  AuditRecorder
	logger *slog.Logger
}

// NewService constructs the stock service.
func NewService(repo RepositoryPort, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Level returns the on-hand quantity for a product.
func (s *Service) Level(ctx context.Context, tenantID, productID int64) (Level, error) {
	return s.repo.Get(ctx, tenantID, productID)
}

// Adjust overwrites the stock with a physical count.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (Level, error) {
	if input.Counted < 0 {
		return Level{}, shared.Validationf("counted quantity must be >= 0")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return Level{}, shared.Validationf("adjustment reason is required")
	}
	var before, after Level
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lvl, err := tx.GetForUpdate(ctx, input.TenantID, input.ProductID)
		if err != nil {
			return err
		}
		before = lvl
		after, err = ApplyDelta(lvl, input.Counted-lvl.Quantity)
		if err != nil {
			return err
		}
		return tx.SetQuantity(ctx, input.TenantID, input.ProductID, after.Quantity)
	})
	if err != nil {
		return Level{}, err
	}
	s.logger.Info("stock adjusted",
		slog.Int64("tenant_id", input.TenantID),
		slog.Int64("product_id", input.ProductID),
		slog.Int("before", before.Quantity),
		slog.Int("after", after.Quantity))
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			TenantID: input.TenantID,
			ActorID:  input.ActorID,
			Action:   "inventory.adjust",
			Entity:   "product",
			EntityID: strconv.FormatInt(input.ProductID, 10),
			Meta:     map[string]any{"before": before.Quantity, "after": after.Quantity, "reason": input.Reason},
		}); err != nil {
			s.logger.Warn("audit stock adjustment", slog.Any("error", err))
		}
	}
	return after, nil
}
