package services

import (
	"context"

	"jobledger/internal/core"
	"jobledger/internal/store"
)

// ProfileService fronts the single-profile store.
type ProfileService struct {
	profiles store.ProfileStore
}

func NewProfileService(profiles store.ProfileStore) *ProfileService {
	return &ProfileService{profiles: profiles}
}

func (s *ProfileService) GetProfile(ctx context.Context) (core.Profile, error) {
	return s.profiles.GetProfile(ctx)
}

func (s *ProfileService) SaveProfile(ctx context.Context, p core.Profile) (core.Profile, error) {
	if err := p.Validate(); err != nil {
		return core.Profile{}, err
	}
	return s.profiles.SaveProfile(ctx, p)
}
