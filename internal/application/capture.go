// Package application contains use-case orchestration services.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/ericfisherdev/mmpresence/internal/domain/model"
	"github.com/ericfisherdev/mmpresence/internal/domain/port/driven"
)

// CaptureService turns observed channel-view requests into stored session
// identifiers. It is safe for concurrent use; each Observe call is an
// independent capture attempt and the store resolves races last-write-wins.
type CaptureService struct {
	store  driven.SessionStore
	logger *slog.Logger
}

// NewCaptureService creates a CaptureService writing to store.
func NewCaptureService(store driven.SessionStore, logger *slog.Logger) *CaptureService {
	return &CaptureService{store: store, logger: logger}
}

// Matches reports whether req is a channel-view acknowledgement: a POST whose
// URL path ends with model.ChannelViewPath.
func (s *CaptureService) Matches(req model.ObservedRequest) bool {
	if !strings.EqualFold(req.Method, "POST") {
		return false
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Path, model.ChannelViewPath)
}

// Observe runs one capture attempt for req. Cookies are enumerated from source
// for the request's hostname. Only a complete identifier triple is persisted;
// an incomplete one returns ErrCaptureIncomplete and leaves the store as it was.
func (s *CaptureService) Observe(ctx context.Context, req model.ObservedRequest, source driven.CookieSource) error {
	if !s.Matches(req) {
		return ErrNotChannelView
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return fmt.Errorf("parse request url: %w", err)
	}
	host := u.Hostname()
	logger := s.logger.With("capture_id", uuid.NewString(), "host", host)

	cookies, err := source.Cookies(ctx, host)
	if err != nil {
		logger.Warn("cookie enumeration failed", "error", err)
		return fmt.Errorf("enumerate cookies for %s: %w", host, err)
	}

	ids := ExtractIdentifiers(cookies)
	if !ids.Complete() {
		missing := ids.Missing()
		logger.Warn("capture incomplete", "missing", missing, "cookies_seen", len(cookies))
		return fmt.Errorf("%w: missing %s", ErrCaptureIncomplete, strings.Join(missing, ", "))
	}

	if err := s.store.SetIdentifiers(ctx, ids); err != nil {
		logger.Error("persist identifiers failed", "error", err)
		return fmt.Errorf("persist identifiers: %w", err)
	}

	logger.Info("session identifiers captured", "user_id", ids.UserID)
	return nil
}

// ExtractIdentifiers picks the session cookies out of a cookie set. When a
// name appears more than once the last occurrence wins. Empty values count
// as absent.
func ExtractIdentifiers(cookies []model.Cookie) model.Identifiers {
	var ids model.Identifiers
	for _, c := range cookies {
		switch c.Name {
		case model.CookieAuthToken:
			ids.AuthToken = c.Value
		case model.CookieUserID:
			ids.UserID = c.Value
		case model.CookieCSRF:
			ids.CSRFToken = c.Value
		}
	}
	return ids
}
