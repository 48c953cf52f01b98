package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ericfisherdev/mmpresence/internal/application"
	"github.com/ericfisherdev/mmpresence/internal/domain/model"
	"github.com/ericfisherdev/mmpresence/internal/domain/port/driven"
)

// maxBodyBytes caps request bodies; an observation carries at most a cookie jar.
const maxBodyBytes = 1 << 20

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	settingsSvc *application.SettingsService
	captureSvc  *application.CaptureService
	reassertSvc *application.ReassertService
	store       driven.SessionStore
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	settingsSvc *application.SettingsService,
	captureSvc *application.CaptureService,
	reassertSvc *application.ReassertService,
	store driven.SessionStore,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		settingsSvc: settingsSvc,
		captureSvc:  captureSvc,
		reassertSvc: reassertSvc,
		store:       store,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/observe", h.Observe)
	mux.HandleFunc("GET /api/v1/settings", h.GetSettings)
	mux.HandleFunc("PUT /api/v1/settings", h.UpdateSettings)
	mux.HandleFunc("GET /api/v1/session", h.GetSession)
	mux.HandleFunc("POST /api/v1/reassert", h.Reassert)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Observe accepts one observed outgoing request together with the cookies the
// browser holds for it, and runs a capture attempt.
func (h *Handler) Observe(w http.ResponseWriter, r *http.Request) {
	var req ObserveRequest
	if !h.decode(w, r, &req) {
		return
	}

	observed := model.ObservedRequest{URL: req.URL, Method: req.Method}
	if !h.captureSvc.Matches(observed) {
		writeJSON(w, http.StatusOK, ObserveResponse{Result: "ignored"})
		return
	}

	cookies := make(driven.StaticCookies, 0, len(req.Cookies))
	for _, c := range req.Cookies {
		cookies = append(cookies, model.Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain})
	}

	err := h.captureSvc.Observe(r.Context(), observed, cookies)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, ObserveResponse{Result: "captured"})
	case errors.Is(err, application.ErrCaptureIncomplete):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("failed to capture session identifiers", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// GetSettings returns the stored domain and desired status.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsSvc.Get(r.Context())
	if err != nil {
		h.logger.Error("failed to load settings", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toSettingsResponse(settings))
}

// UpdateSettings replaces the stored domain and desired status.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if !h.decode(w, r, &req) {
		return
	}

	settings := model.Settings{Domain: req.Domain, DesiredStatus: model.Status(req.DesiredStatus)}
	if err := h.settingsSvc.Update(r.Context(), settings); err != nil {
		if errors.Is(err, application.ErrInvalidSettings) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to update settings", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	stored, err := h.settingsSvc.Get(r.Context())
	if err != nil {
		h.logger.Error("failed to reload settings", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toSettingsResponse(stored))
}

// GetSession returns the stored session record with secrets redacted.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	creds, err := h.store.Get(r.Context())
	if err != nil {
		h.logger.Error("failed to load session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(creds))
}

// Reassert runs one reassertion tick immediately and returns its result.
func (h *Handler) Reassert(w http.ResponseWriter, r *http.Request) {
	result := h.reassertSvc.RunNow(r.Context())
	writeJSON(w, http.StatusOK, toTickResponse(result))
}

// Health returns liveness together with the most recent tick, if any.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Time:     time.Now().UTC().Format(time.RFC3339),
		Policy:   string(h.reassertSvc.Policy()),
		Interval: h.reassertSvc.Interval().String(),
	}
	if last, ok := h.reassertSvc.LastResult(); ok {
		tick := toTickResponse(last)
		resp.LastTick = &tick
	}

	writeJSON(w, http.StatusOK, resp)
}

// decode reads a JSON body into v and validates it. On failure it writes a
// 400 response and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeError(w, http.StatusBadRequest, "invalid field: "+verrs[0].Field())
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	return true
}
