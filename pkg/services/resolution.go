package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerline-io/recon-engine/pkg/apperrors"
	"github.com/ledgerline-io/recon-engine/pkg/repositories"
)

// ResolutionService is the human side of reconciliation: marking verdicts
// and alerts as handled. Resolution is the only path that touches a
// matching result's resolution fields; the orchestrator never does, and a
// resolved verdict freezes the record against non-forced re-matching.
type ResolutionService struct {
	resultRepo repositories.MatchingResultRepository
	alertRepo  repositories.AlertRepository
	logger     *zap.Logger
}

// NewResolutionService creates a new resolution service.
func NewResolutionService(resultRepo repositories.MatchingResultRepository, alertRepo repositories.AlertRepository, logger *zap.Logger) *ResolutionService {
	return &ResolutionService{
		resultRepo: resultRepo,
		alertRepo:  alertRepo,
		logger:     logger.Named("resolution-service"),
	}
}

// ResolveMatchingResult marks a verdict resolved on behalf of resolvedBy.
func (s *ResolutionService) ResolveMatchingResult(ctx context.Context, id uuid.UUID, resolvedBy string) error {
	if resolvedBy == "" {
		return fmt.Errorf("%w: resolved_by must not be empty", apperrors.ErrInvalidData)
	}
	if err := s.resultRepo.Resolve(ctx, id, resolvedBy); err != nil {
		return err
	}
	s.logger.Info("Resolved matching result",
		zap.String("matching_result_id", id.String()),
		zap.String("resolved_by", resolvedBy))
	return nil
}

// ResolveAlert closes an alert. A later sweep that finds the condition
// still holding will open a fresh alert; resolution acknowledges the
// existing one, it does not suppress the rule.
func (s *ResolutionService) ResolveAlert(ctx context.Context, id uuid.UUID) error {
	if err := s.alertRepo.Resolve(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Resolved alert", zap.String("alert_id", id.String()))
	return nil
}

// MarkAlertRead flags an alert as seen without closing it.
func (s *ResolutionService) MarkAlertRead(ctx context.Context, id uuid.UUID) error {
	return s.alertRepo.MarkRead(ctx, id)
}
