package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/mmpresence/internal/domain/model"
	"github.com/ericfisherdev/mmpresence/internal/domain/port/driven"
)

// SettingsService is the configuration surface's use case: it reads and
// writes the domain and desired status half of the session record.
type SettingsService struct {
	store  driven.SessionStore
	logger *slog.Logger
}

// NewSettingsService creates a SettingsService over store.
func NewSettingsService(store driven.SessionStore, logger *slog.Logger) *SettingsService {
	return &SettingsService{store: store, logger: logger}
}

// Get returns the stored settings.
func (s *SettingsService) Get(ctx context.Context) (model.Settings, error) {
	creds, err := s.store.Get(ctx)
	if err != nil {
		return model.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return creds.Settings, nil
}

// Update validates and stores settings. Empty fields clear the stored value.
func (s *SettingsService) Update(ctx context.Context, settings model.Settings) error {
	settings.Domain = strings.TrimSpace(settings.Domain)
	if err := ValidateSettings(settings); err != nil {
		return err
	}

	if err := s.store.SetSettings(ctx, settings); err != nil {
		return fmt.Errorf("store settings: %w", err)
	}

	s.logger.Info("settings updated", "domain", settings.Domain, "desired_status", string(settings.DesiredStatus))
	return nil
}

// Seed fills stored settings that are absent from defaults. Stored values take
// priority. It returns the effective settings.
func (s *SettingsService) Seed(ctx context.Context, defaults model.Settings) (model.Settings, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return model.Settings{}, err
	}

	merged := current
	if merged.Domain == "" {
		merged.Domain = defaults.Domain
	}
	if merged.DesiredStatus == "" {
		merged.DesiredStatus = defaults.DesiredStatus
	}

	if merged == current {
		return current, nil
	}

	if err := s.Update(ctx, merged); err != nil {
		return model.Settings{}, fmt.Errorf("seed settings: %w", err)
	}
	return merged, nil
}

// ValidateSettings rejects a desired status Mattermost would not accept and a
// domain that is not a bare host[:port].
func ValidateSettings(settings model.Settings) error {
	if settings.DesiredStatus != "" && !settings.DesiredStatus.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidSettings, settings.DesiredStatus)
	}
	if strings.ContainsAny(settings.Domain, "/ ?#@") {
		return fmt.Errorf("%w: domain %q must be a bare host name", ErrInvalidSettings, settings.Domain)
	}
	return nil
}
