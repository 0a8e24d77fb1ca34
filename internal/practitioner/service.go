package practitioner

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

var multiplierPattern = regexp.MustCompile(`^[1-9][0-9]*[xX]?$`)

type Service struct {
	repo Repository
	log  *zap.Logger
}

func NewService(repo Repository, log *zap.Logger) *Service {
	return &Service{repo: repo, log: log}
}

func (s *Service) Profile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	p, err := s.repo.GetProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get practitioner: %w", err)
	}
	return p, nil
}

// SetCapacityMultiplier stores an admin supplied "Nx" value. Reads tolerate
// malformed values, writes do not.
func (s *Service) SetCapacityMultiplier(ctx context.Context, id uuid.UUID, multiplier string) (*Profile, error) {
	multiplier = strings.TrimSpace(multiplier)
	if !multiplierPattern.MatchString(multiplier) {
		return nil, calendar.Invalid("capacity_multiplier", `must look like "3x"`)
	}
	normalized := fmt.Sprintf("%dx", ParseMultiplier(multiplier))

	p, err := s.repo.UpdateCapacityMultiplier(ctx, id, normalized)
	if err != nil {
		return nil, fmt.Errorf("update capacity multiplier: %w", err)
	}

	s.log.Info("capacity multiplier updated",
		zap.String("practitioner_id", id.String()),
		zap.String("capacity_multiplier", normalized))
	return p, nil
}
