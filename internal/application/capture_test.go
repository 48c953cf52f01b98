package application_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/mmpresence/internal/application"
	"github.com/ericfisherdev/mmpresence/internal/domain/model"
	"github.com/ericfisherdev/mmpresence/internal/domain/port/driven"
)

const viewURL = "https://chat.example.com/api/v4/channels/members/me/view"

func sessionCookies(tok, user, csrf string) driven.StaticCookies {
	return driven.StaticCookies{
		{Name: model.CookieAuthToken, Value: tok},
		{Name: model.CookieUserID, Value: user},
		{Name: model.CookieCSRF, Value: csrf},
	}
}

func TestCaptureService_Matches(t *testing.T) {
	svc := application.NewCaptureService(&memoryStore{}, slog.Default())

	tests := []struct {
		name string
		req  model.ObservedRequest
		want bool
	}{
		{"post channel view", model.ObservedRequest{URL: viewURL, Method: "POST"}, true},
		{"lowercase method", model.ObservedRequest{URL: viewURL, Method: "post"}, true},
		{"subpath deployment", model.ObservedRequest{URL: "https://example.com/chat/api/v4/channels/members/me/view", Method: "POST"}, true},
		{"get channel view", model.ObservedRequest{URL: viewURL, Method: "GET"}, false},
		{"other endpoint", model.ObservedRequest{URL: "https://chat.example.com/api/v4/users/me", Method: "POST"}, false},
		{"view path in query only", model.ObservedRequest{URL: "https://chat.example.com/x?next=/api/v4/channels/members/me/view", Method: "POST"}, false},
		{"unparsable url", model.ObservedRequest{URL: "://bad", Method: "POST"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.Matches(tt.req))
		})
	}
}

func TestCaptureService_Observe_CompleteCapture(t *testing.T) {
	store := &memoryStore{creds: model.SessionCredentials{Settings: model.Settings{Domain: "chat.example.com"}}}
	svc := application.NewCaptureService(store, slog.Default())

	err := svc.Observe(context.Background(), model.ObservedRequest{URL: viewURL, Method: "POST"}, sessionCookies("tok1", "u1", "csrf1"))

	require.NoError(t, err)
	got := store.snapshot()
	assert.Equal(t, model.Identifiers{AuthToken: "tok1", UserID: "u1", CSRFToken: "csrf1"}, got.Identifiers)
	assert.Equal(t, "chat.example.com", got.Domain, "domain is configured, never derived from traffic")
}

func TestCaptureService_Observe_IgnoresNonMatching(t *testing.T) {
	store := &memoryStore{}
	svc := application.NewCaptureService(store, slog.Default())

	var enumerated bool
	source := driven.CookieSourceFunc(func(_ context.Context, _ string) ([]model.Cookie, error) {
		enumerated = true
		return nil, nil
	})

	err := svc.Observe(context.Background(), model.ObservedRequest{URL: viewURL, Method: "GET"}, source)

	require.ErrorIs(t, err, application.ErrNotChannelView)
	assert.False(t, enumerated, "cookies must not be enumerated for non-matching requests")
	assert.Zero(t, store.setCalls)
}

func TestCaptureService_Observe_ScopesCookiesToRequestHost(t *testing.T) {
	store := &memoryStore{}
	svc := application.NewCaptureService(store, slog.Default())

	var gotHost string
	source := driven.CookieSourceFunc(func(_ context.Context, host string) ([]model.Cookie, error) {
		gotHost = host
		return sessionCookies("tok1", "u1", "csrf1"), nil
	})

	err := svc.Observe(context.Background(), model.ObservedRequest{URL: "https://chat.example.com:8443/api/v4/channels/members/me/view", Method: "POST"}, source)

	require.NoError(t, err)
	assert.Equal(t, "chat.example.com", gotHost)
}

func TestCaptureService_Observe_IncompleteLeavesStoreUnchanged(t *testing.T) {
	previous := model.Identifiers{AuthToken: "old", UserID: "old-user", CSRFToken: "old-csrf"}
	store := &memoryStore{creds: model.SessionCredentials{Identifiers: previous}}
	svc := application.NewCaptureService(store, slog.Default())

	cookies := driven.StaticCookies{
		{Name: model.CookieAuthToken, Value: "tok2"},
		{Name: model.CookieUserID, Value: "u2"},
		{Name: model.CookieCSRF, Value: ""},
	}

	err := svc.Observe(context.Background(), model.ObservedRequest{URL: viewURL, Method: "POST"}, cookies)

	require.ErrorIs(t, err, application.ErrCaptureIncomplete)
	assert.Contains(t, err.Error(), model.CookieCSRF)
	assert.Equal(t, previous, store.snapshot().Identifiers)
	assert.Zero(t, store.setCalls, "nothing may be written for a partial capture")
}

func TestCaptureService_Observe_CookieSourceError(t *testing.T) {
	store := &memoryStore{}
	svc := application.NewCaptureService(store, slog.Default())
	source := driven.CookieSourceFunc(func(_ context.Context, _ string) ([]model.Cookie, error) {
		return nil, errors.New("devtools disconnected")
	})

	err := svc.Observe(context.Background(), model.ObservedRequest{URL: viewURL, Method: "POST"}, source)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "devtools disconnected")
	assert.Zero(t, store.setCalls)
}

func TestCaptureService_Observe_StoreError(t *testing.T) {
	store := &memoryStore{setErr: errors.New("disk full")}
	svc := application.NewCaptureService(store, slog.Default())

	err := svc.Observe(context.Background(), model.ObservedRequest{URL: viewURL, Method: "POST"}, sessionCookies("t", "u", "c"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

// TestCaptureService_AtomicityOverSequence feeds every subset of the three
// session cookies in turn and checks that the store is always either untouched
// or holds the complete triple of the latest full capture.
func TestCaptureService_AtomicityOverSequence(t *testing.T) {
	store := &memoryStore{}
	svc := application.NewCaptureService(store, slog.Default())
	ctx := context.Background()
	req := model.ObservedRequest{URL: viewURL, Method: "POST"}

	for step := 0; step < 24; step++ {
		mask := step % 8
		var cookies driven.StaticCookies
		if mask&1 != 0 {
			cookies = append(cookies, model.Cookie{Name: model.CookieAuthToken, Value: fmt.Sprintf("tok%d", step)})
		}
		if mask&2 != 0 {
			cookies = append(cookies, model.Cookie{Name: model.CookieUserID, Value: fmt.Sprintf("u%d", step)})
		}
		if mask&4 != 0 {
			cookies = append(cookies, model.Cookie{Name: model.CookieCSRF, Value: fmt.Sprintf("csrf%d", step)})
		}

		before := store.snapshot()
		err := svc.Observe(ctx, req, cookies)
		after := store.snapshot()

		if mask == 7 {
			require.NoError(t, err, "step %d", step)
			assert.Equal(t, model.Identifiers{
				AuthToken: fmt.Sprintf("tok%d", step),
				UserID:    fmt.Sprintf("u%d", step),
				CSRFToken: fmt.Sprintf("csrf%d", step),
			}, after.Identifiers, "step %d", step)
		} else {
			require.ErrorIs(t, err, application.ErrCaptureIncomplete, "step %d", step)
			assert.Equal(t, before, after, "step %d", step)
		}
	}
}

func TestCaptureService_LastWriteWins(t *testing.T) {
	store := &memoryStore{}
	svc := application.NewCaptureService(store, slog.Default())
	ctx := context.Background()
	req := model.ObservedRequest{URL: viewURL, Method: "POST"}

	require.NoError(t, svc.Observe(ctx, req, sessionCookies("tok1", "u1", "csrf1")))
	require.NoError(t, svc.Observe(ctx, req, sessionCookies("tok2", "u2", "csrf2")))

	assert.Equal(t, model.Identifiers{AuthToken: "tok2", UserID: "u2", CSRFToken: "csrf2"}, store.snapshot().Identifiers)
}

func TestCaptureService_ConcurrentCaptures(t *testing.T) {
	store := &memoryStore{}
	svc := application.NewCaptureService(store, slog.Default())
	req := model.ObservedRequest{URL: viewURL, Method: "POST"}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := fmt.Sprint(i)
			assert.NoError(t, svc.Observe(context.Background(), req, sessionCookies("tok"+n, "u"+n, "csrf"+n)))
		}()
	}
	wg.Wait()

	got := store.snapshot().Identifiers
	require.True(t, got.Complete())
	n := got.AuthToken[len("tok"):]
	assert.Equal(t, "u"+n, got.UserID)
	assert.Equal(t, "csrf"+n, got.CSRFToken)
}

func TestExtractIdentifiers_LastOccurrenceWins(t *testing.T) {
	ids := application.ExtractIdentifiers([]model.Cookie{
		{Name: model.CookieAuthToken, Value: "first"},
		{Name: "unrelated", Value: "x"},
		{Name: model.CookieAuthToken, Value: "second"},
		{Name: model.CookieUserID, Value: "u1"},
	})

	assert.Equal(t, "second", ids.AuthToken)
	assert.Equal(t, "u1", ids.UserID)
	assert.Empty(t, ids.CSRFToken)
	assert.Equal(t, []string{model.CookieCSRF}, ids.Missing())
}
