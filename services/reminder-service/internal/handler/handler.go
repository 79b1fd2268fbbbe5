package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/dispatch"
	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/payload"
	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/usecase"
	"github.com/vasapolrittideah/reminder-app/shared/auth"
	"github.com/vasapolrittideah/reminder-app/shared/interceptor"
	"github.com/vasapolrittideah/reminder-app/shared/validation"
)

// DispatchRunner runs one scan cycle on demand.
type DispatchRunner interface {
	RunScanCycle(ctx context.Context) (dispatch.Summary, error)
}

// RouterConfig holds the token settings for the HTTP routes.
type RouterConfig struct {
	JWTAuth       auth.JWTAuthenticator
	AccessSecret  string
	ServiceSecret string
}

type reminderHTTPHandler struct {
	reminderUsecase usecase.ReminderUsecase
	dispatcher      DispatchRunner
	validator       *validation.Validator
	logger          *zerolog.Logger
}

const maxPageSize = 100

// NewRouter builds the HTTP API of the reminder service. The dispatch route
// is only mounted when a service secret is configured.
func NewRouter(
	reminderUsecase usecase.ReminderUsecase,
	dispatcher DispatchRunner,
	validator *validation.Validator,
	logger *zerolog.Logger,
	cfg RouterConfig,
) http.Handler {
	h := &reminderHTTPHandler{
		reminderUsecase: reminderUsecase,
		dispatcher:      dispatcher,
		validator:       validator,
		logger:          logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(interceptor.NewJWTMiddleware(cfg.JWTAuth, cfg.AccessSecret))

			r.Route("/reminders", func(r chi.Router) {
				r.Post("/", h.createReminder)
				r.Get("/", h.listReminders)
				r.Delete("/", h.deleteAllReminders)

				r.Route("/trash", func(r chi.Router) {
					r.Get("/", h.listDeleted)
					r.Delete("/", h.emptyRecycleBin)
					r.Post("/{id}/restore", h.restoreReminder)
					r.Delete("/{id}", h.permanentlyDeleteReminder)
				})

				r.Get("/{id}", h.getReminder)
				r.Patch("/{id}", h.updateReminder)
				r.Delete("/{id}", h.deleteReminder)
			})

			r.Post("/me/test-email", h.sendTestEmail)
		})

		if cfg.ServiceSecret != "" {
			r.With(interceptor.NewJWTMiddleware(cfg.JWTAuth, cfg.ServiceSecret)).
				Post("/dispatch/run", h.runDispatch)
		}
	})

	return r
}

func (h *reminderHTTPHandler) runDispatch(w http.ResponseWriter, r *http.Request) {
	summary, err := h.dispatcher.RunScanCycle(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to run scan cycle")
		writeError(w, http.StatusServiceUnavailable, "scan cycle failed")
		return
	}

	writeJSON(w, http.StatusOK, payload.NewDispatchSummaryResponse(summary))
}

// userID returns the authenticated user, writing a 401 when the token is not
// a user token.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := interceptor.ClaimsFromContext(r.Context())
	if !ok || claims.UserID == "" {
		writeError(w, http.StatusUnauthorized, "invalid user token claims")
		return "", false
	}
	return claims.UserID, true
}

func pageFromQuery(r *http.Request) (usecase.Page, error) {
	var page usecase.Page

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.ParseUint(v, 10, 64)
		if err != nil || limit == 0 {
			return page, errors.New("limit must be a positive integer")
		}
		page.Limit = min(limit, maxPageSize)
	}

	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return page, errors.New("offset must be a non-negative integer")
		}
		page.Offset = offset
	}

	return page, nil
}

// decodeAndValidate reads a JSON body into dst and validates it. It writes
// the error response itself and reports whether the handler may continue.
func (h *reminderHTTPHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		var fields validation.FieldErrors
		if errors.As(err, &fields) {
			writeJSON(w, http.StatusBadRequest, payload.ErrorResponse{Error: "validation failed", Fields: fields})
			return false
		}
		h.logger.Error().Err(err).Msg("failed to validate request")
		writeError(w, http.StatusInternalServerError, "something went wrong")
		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, payload.ErrorResponse{Error: msg})
}

func requestLogger(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info().
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("took", time.Since(start)).
					Msg("http request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
