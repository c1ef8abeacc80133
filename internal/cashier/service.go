package cashier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/optica-erp/optica-erp/internal/shared"
)

// Service opens, closes and inspects register shifts.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the cashier service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used in tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// OpenShift opens the branch register with an opening float.
func (s *Service) OpenShift(ctx context.Context, input OpenShiftInput) (Shift, error) {
	if input.TenantID <= 0 || input.BranchID <= 0 {
		return Shift{}, shared.Validationf("tenant and branch are required")
	}
	if input.OpeningFloat.IsNegative() {
		return Shift{}, shared.Validationf("opening float must be >= 0")
	}
	shift := Shift{
		TenantID:     input.TenantID,
		BranchID:     input.BranchID,
		Status:       ShiftOpen,
		OpenedBy:     input.ActorID,
		OpeningFloat: input.OpeningFloat,
		OpenedAt:     s.now().UTC(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if existing, err := tx.FindOpenShiftForUpdate(ctx, input.TenantID, input.BranchID); err == nil {
			return fmt.Errorf("%w: shift %d", ErrShiftAlreadyOpen, existing.ID)
		} else if !isNoOpenShift(err) {
			return err
		}
		id, err := tx.InsertShift(ctx, shift)
		if err != nil {
			return err
		}
		shift.ID = id
		return nil
	})
	if err != nil {
		return Shift{}, err
	}
	s.logger.Info("cash shift opened",
		slog.Int64("tenant_id", shift.TenantID),
		slog.Int64("branch_id", shift.BranchID),
		slog.Int64("shift_id", shift.ID))
	return shift, nil
}

// CloseShift closes the open register, recording the declared count against
// the expected balance.
func (s *Service) CloseShift(ctx context.Context, input CloseShiftInput) (ShiftSummary, error) {
	if input.Declared.IsNegative() {
		return ShiftSummary{}, shared.Validationf("declared closing must be >= 0")
	}
	var summary ShiftSummary
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		shift, err := tx.FindOpenShiftForUpdate(ctx, input.TenantID, input.BranchID)
		if err != nil {
			return err
		}
		movements, err := tx.ListMovements(ctx, shift.ID)
		if err != nil {
			return err
		}
		totals := Summarize(movements)
		expected := totals.Expected(shift.OpeningFloat)
		difference := input.Declared.Sub(expected)
		closedAt := s.now().UTC()
		actor := input.ActorID
		declared := input.Declared
		shift.Status = ShiftClosed
		shift.ClosedBy = &actor
		shift.ClosedAt = &closedAt
		shift.DeclaredClosing = &declared
		shift.ExpectedClosing = &expected
		shift.Difference = &difference
		if err := tx.CloseShift(ctx, shift); err != nil {
			return err
		}
		summary = ShiftSummary{Shift: shift, Totals: totals, Expected: expected, Movements: movements}
		return nil
	})
	if err != nil {
		return ShiftSummary{}, err
	}
	s.logger.Info("cash shift closed",
		slog.Int64("shift_id", summary.Shift.ID),
		slog.String("expected", summary.Expected.StringFixed(2)),
		slog.String("difference", summary.Shift.Difference.StringFixed(2)))
	return summary, nil
}

// CurrentShift returns the open shift of the branch with its running balance.
func (s *Service) CurrentShift(ctx context.Context, tenantID, branchID int64) (ShiftSummary, error) {
	shift, err := s.repo.FindOpenShift(ctx, tenantID, branchID)
	if err != nil {
		return ShiftSummary{}, err
	}
	movements, err := s.repo.ListMovements(ctx, shift.ID)
	if err != nil {
		return ShiftSummary{}, err
	}
	totals := Summarize(movements)
	return ShiftSummary{Shift: shift, Totals: totals, Expected: totals.Expected(shift.OpeningFloat), Movements: movements}, nil
}

// RecordMovement posts a manual supply (IN) or withdrawal (OUT) of cash.
func (s *Service) RecordMovement(ctx context.Context, input ManualMovementInput) (Movement, error) {
	if !input.Amount.IsPositive() {
		return Movement{}, shared.Validationf("amount must be > 0")
	}
	var direction Direction
	switch input.Type {
	case MovementSupply:
		direction = DirectionIn
	case MovementWithdrawal:
		direction = DirectionOut
	default:
		return Movement{}, shared.Validationf("unsupported manual movement type %q", input.Type)
	}
	if strings.TrimSpace(input.Note) == "" {
		return Movement{}, shared.Validationf("note is required")
	}
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		shift, err := tx.FindOpenShiftForUpdate(ctx, input.TenantID, input.BranchID)
		if err != nil {
			return err
		}
		if direction == DirectionOut {
			movements, err := tx.ListMovements(ctx, shift.ID)
			if err != nil {
				return err
			}
			balance := Summarize(movements).Expected(shift.OpeningFloat)
			if input.Amount.GreaterThan(balance) {
				return fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientCash,
					shared.FormatMoney(balance), shared.FormatMoney(input.Amount))
			}
		}
		movement = Movement{
			TenantID:  input.TenantID,
			BranchID:  input.BranchID,
			ShiftID:   shift.ID,
			Direction: direction,
			Type:      input.Type,
			Method:    MethodCash,
			Amount:    input.Amount,
			Note:      input.Note,
			CreatedBy: input.ActorID,
			CreatedAt: s.now().UTC(),
		}
		id, err := tx.InsertMovement(ctx, movement)
		if err != nil {
			return err
		}
		movement.ID = id
		return nil
	})
	if err != nil {
		return Movement{}, err
	}
	return movement, nil
}

func isNoOpenShift(err error) bool {
	return errors.Is(err, ErrNoOpenShift)
}
