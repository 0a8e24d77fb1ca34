package practitioner

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ProfileReader is the read the capacity resolver needs.
type ProfileReader interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error)
}

// CapacityResolver derives how many concurrent appointments a practitioner
// may hold in one slot. The profile is read on every call so an admin change
// applies to the next booking.
type CapacityResolver struct {
	profiles ProfileReader
	roles    map[string]struct{}
}

func NewCapacityResolver(profiles ProfileReader, qualifyingRoles []string) *CapacityResolver {
	roles := make(map[string]struct{}, len(qualifyingRoles))
	for _, r := range qualifyingRoles {
		r = strings.ToLower(strings.TrimSpace(r))
		if r != "" {
			roles[r] = struct{}{}
		}
	}
	return &CapacityResolver{profiles: profiles, roles: roles}
}

func (c *CapacityResolver) EffectiveCapacity(ctx context.Context, practitionerID uuid.UUID) (int, error) {
	p, err := c.profiles.GetProfile(ctx, practitionerID)
	if err != nil {
		return 0, fmt.Errorf("load practitioner: %w", err)
	}
	return c.capacityFor(p), nil
}

func (c *CapacityResolver) capacityFor(p *Profile) int {
	if _, ok := c.roles[strings.ToLower(p.Role)]; !ok {
		return 1
	}
	return ParseMultiplier(p.CapacityMultiplier)
}

// ParseMultiplier reads "3x", "3X" or "3". Anything else, including zero or
// negative values, is 1.
func ParseMultiplier(s string) int {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimSuffix(s, "x"), "X")
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
