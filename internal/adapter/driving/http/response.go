package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/mmpresence/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// ObserveRequest is the JSON body for the observe endpoint: one outgoing
// browser request and the cookies the browser holds for its URL.
type ObserveRequest struct {
	URL     string          `json:"url" validate:"required,url"`
	Method  string          `json:"method" validate:"required"`
	Cookies []CookieRequest `json:"cookies" validate:"dive"`
}

// CookieRequest is a single cookie in an ObserveRequest.
type CookieRequest struct {
	Name   string `json:"name" validate:"required"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
}

// ObserveResponse reports what happened to an observation.
type ObserveResponse struct {
	Result string `json:"result"`
}

// SettingsRequest is the JSON body for the settings update endpoint.
type SettingsRequest struct {
	Domain        string `json:"domain" validate:"omitempty,max=253"`
	DesiredStatus string `json:"desired_status" validate:"omitempty,oneof=online away offline dnd"`
}

// SettingsResponse is the JSON representation of the stored settings.
type SettingsResponse struct {
	Domain        string `json:"domain"`
	DesiredStatus string `json:"desired_status"`
}

// SessionResponse is the redacted JSON representation of the session record.
// Token values are never returned; only their presence is.
type SessionResponse struct {
	Domain        string   `json:"domain"`
	DesiredStatus string   `json:"desired_status"`
	UserID        string   `json:"user_id"`
	HasAuthToken  bool     `json:"has_auth_token"`
	HasCSRFToken  bool     `json:"has_csrf_token"`
	UpdatedAt     string   `json:"updated_at,omitempty"`
	Missing       []string `json:"missing"`
	Ready         bool     `json:"ready"`
}

// TickResponse is the JSON representation of one reassertion tick.
type TickResponse struct {
	ID         string   `json:"id"`
	Outcome    string   `json:"outcome"`
	Observed   string   `json:"observed,omitempty"`
	Desired    string   `json:"desired,omitempty"`
	Missing    []string `json:"missing,omitempty"`
	Error      string   `json:"error,omitempty"`
	StartedAt  string   `json:"started_at"`
	FinishedAt string   `json:"finished_at"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status   string        `json:"status"`
	Time     string        `json:"time"`
	Policy   string        `json:"policy"`
	Interval string        `json:"interval"`
	LastTick *TickResponse `json:"last_tick,omitempty"`
}

func toSettingsResponse(s model.Settings) SettingsResponse {
	return SettingsResponse{
		Domain:        s.Domain,
		DesiredStatus: string(s.DesiredStatus),
	}
}

// toSessionResponse converts stored credentials to their redacted representation.
func toSessionResponse(creds model.SessionCredentials) SessionResponse {
	missing := creds.MissingFields()
	if missing == nil {
		missing = []string{}
	}

	resp := SessionResponse{
		Domain:        creds.Domain,
		DesiredStatus: string(creds.DesiredStatus),
		UserID:        creds.UserID,
		HasAuthToken:  creds.AuthToken != "",
		HasCSRFToken:  creds.CSRFToken != "",
		Missing:       missing,
		Ready:         len(missing) == 0 && creds.DesiredStatus != "",
	}
	if !creds.UpdatedAt.IsZero() {
		resp.UpdatedAt = creds.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// toTickResponse converts a tick result to its JSON representation.
func toTickResponse(r model.TickResult) TickResponse {
	return TickResponse{
		ID:         r.ID,
		Outcome:    string(r.Outcome),
		Observed:   string(r.Observed),
		Desired:    string(r.Desired),
		Missing:    r.Missing,
		Error:      r.Error,
		StartedAt:  r.StartedAt.UTC().Format(time.RFC3339Nano),
		FinishedAt: r.FinishedAt.UTC().Format(time.RFC3339Nano),
	}
}
