package application_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/mmpresence/internal/adapter/driven/mattermost"
	"github.com/ericfisherdev/mmpresence/internal/application"
	"github.com/ericfisherdev/mmpresence/internal/domain/model"
)

// recordingTransport answers every request with 200 {} and keeps a copy.
type recordingTransport struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []string
}

func (rt *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body string
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		body = string(b)
	}

	rt.mu.Lock()
	rt.requests = append(rt.requests, req)
	rt.bodies = append(rt.bodies, body)
	rt.mu.Unlock()

	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(`{"user_id":"u1","status":"online"}`)),
		Request:    req,
	}, nil
}

func TestScenario_CaptureThenReassert(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{}
	transport := &recordingTransport{}
	client := mattermost.NewClient(
		mattermost.WithHTTPClient(&http.Client{Transport: transport}),
		mattermost.WithRateLimit(0),
	)

	settings := application.NewSettingsService(store, slog.Default())
	capture := application.NewCaptureService(store, slog.Default())
	reassert := application.NewReassertService(store, client, model.PolicyAlways, application.DefaultInterval, slog.Default())

	require.NoError(t, settings.Update(ctx, model.Settings{Domain: "chat.example.com", DesiredStatus: model.StatusOnline}))

	// Before any capture the tick is skipped with no network traffic.
	before := reassert.Tick(ctx)
	assert.Equal(t, model.TickSkippedMissing, before.Outcome)
	assert.Empty(t, transport.requests)

	err := capture.Observe(ctx,
		model.ObservedRequest{URL: "https://chat.example.com/api/v4/channels/members/me/view", Method: "POST"},
		sessionCookies("tok1", "u1", "csrf1"),
	)
	require.NoError(t, err)

	result := reassert.Tick(ctx)
	require.Equal(t, model.TickWritten, result.Outcome, result.Error)

	require.Len(t, transport.requests, 1)
	req := transport.requests[0]
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "https://chat.example.com/api/v4/users/u1/status", req.URL.String())
	assert.Equal(t, "csrf1", req.Header.Get("X-CSRF-Token"))
	assert.Equal(t, "tok1", req.Header.Get("X-Request-Id"))
	assert.Equal(t, "XMLHttpRequest", req.Header.Get("X-Requested-With"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	cookie, err := req.Cookie(model.CookieAuthToken)
	require.NoError(t, err)
	assert.Equal(t, "tok1", cookie.Value)

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(transport.bodies[0]), &body))
	assert.Equal(t, map[string]string{"user_id": "u1", "status": "online"}, body)
}
