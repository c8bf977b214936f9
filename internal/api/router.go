// Package api is the HTTP ingress for file events and ledger inspection.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"recoledger/internal/tracker"
)

// maxBodyBytes bounds hook request bodies.
const maxBodyBytes = 64 << 10

// Hooks is the event entry point the handlers call.
type Hooks interface {
	OnEdit(ctx context.Context, ev tracker.FileEvent) bool
	OnFavorite(ctx context.Context, userID string, fileID int64, caller tracker.FavoriteCaller) bool
	BreakerState() string
}

// Ledger is the read side of the changed-files ledger.
type Ledger interface {
	ListChanged(ctx context.Context) ([]tracker.ChangedFile, error)
	ListChangedForUser(ctx context.Context, userID string) ([]tracker.ChangedFile, error)
	CountChanged(ctx context.Context) (int64, error)
}

// Trigger requests an out-of-schedule recompute pass.
type Trigger interface {
	Trigger() bool
}

// Deps holds the router's collaborators. Trigger and Metrics are optional.
type Deps struct {
	Hooks      Hooks
	Ledger     Ledger
	Trigger    Trigger
	Metrics    http.Handler
	Logger     tracker.Logger
	UserHeader string
}

type handler struct {
	deps     Deps
	validate *validator.Validate
}

// NewRouter builds the HTTP handler for the ingress.
func NewRouter(deps Deps) http.Handler {
	h := &handler{deps: deps, validate: validator.New()}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/healthz", h.health)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/hooks/edit", h.edit)
		r.Post("/hooks/favorite", h.favorite)
		r.Get("/ledger/pending", h.pending)
		if deps.Trigger != nil {
			r.Post("/recompute", h.recompute)
		}
	})
	return r
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.deps.Logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}

// EditRequest reports that a file at Path was written.
type EditRequest struct {
	Path string `json:"path"`
}

// FavoriteRequest reports a favorite toggle on a file.
type FavoriteRequest struct {
	FileID int64  `json:"file_id" validate:"required,gt=0"`
	Caller string `json:"caller" validate:"required,oneof=addFavorite removeFavorite"`
}

// HookResult tells the caller whether a change signal was recorded.
type HookResult struct {
	Handled bool `json:"handled"`
}

// edit never requires a user: an event without a session is a normal,
// filtered outcome and must reach the filter.
func (h *handler) edit(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	sess := SessionFromRequest(r, h.deps.UserHeader)
	handled := h.deps.Hooks.OnEdit(r.Context(), tracker.FileEvent{
		Path:   req.Path,
		UserID: sess.UserID,
		Client: sess.Client,
	})
	writeData(w, http.StatusOK, HookResult{Handled: handled})
}

func (h *handler) favorite(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromRequest(r, h.deps.UserHeader)
	if sess.UserID == "" {
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "missing user")
		return
	}

	var req FavoriteRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidationFailed, "validation failed")
		return
	}

	handled := h.deps.Hooks.OnFavorite(r.Context(), sess.UserID, req.FileID, tracker.FavoriteCaller(req.Caller))
	writeData(w, http.StatusOK, HookResult{Handled: handled})
}

// PendingRecord is the JSON form of a changed-file record.
type PendingRecord struct {
	ID        int64     `json:"id"`
	FileID    int64     `json:"file_id"`
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason"`
	ChangedAt time.Time `json:"changed_at"`
}

type PendingList struct {
	Total   int64           `json:"total"`
	Records []PendingRecord `json:"records"`
}

// pending lists the ledger. ?user= narrows it to one user; ?limit= caps the records returned.
func (h *handler) pending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	var (
		records []tracker.ChangedFile
		err     error
	)
	if user := r.URL.Query().Get("user"); user != "" {
		records, err = h.deps.Ledger.ListChangedForUser(ctx, user)
	} else {
		records, err = h.deps.Ledger.ListChanged(ctx)
	}
	if err != nil {
		h.deps.Logger.Error("listing pending records failed", "error", err)
		writeError(w, http.StatusInternalServerError, ErrCodeDatabaseError, "listing pending records failed")
		return
	}

	total := int64(len(records))
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	out := PendingList{Total: total, Records: make([]PendingRecord, 0, len(records))}
	for _, rec := range records {
		out.Records = append(out.Records, PendingRecord{
			ID:        rec.ID,
			FileID:    rec.FileID,
			UserID:    rec.UserID,
			Reason:    string(rec.Reason),
			ChangedAt: rec.ChangedAt,
		})
	}
	writeData(w, http.StatusOK, out)
}

func (h *handler) recompute(w http.ResponseWriter, r *http.Request) {
	if !h.deps.Trigger.Trigger() {
		writeError(w, http.StatusConflict, ErrCodeConflict, "a recompute pass is already running or queued")
		return
	}
	writeData(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

type Health struct {
	Status  string `json:"status"`
	Pending int64  `json:"pending"`
	Breaker string `json:"breaker"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	pending, err := h.deps.Ledger.CountChanged(r.Context())
	if err != nil {
		h.deps.Logger.Warn("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "ledger unavailable")
		return
	}

	status := "ok"
	breaker := h.deps.Hooks.BreakerState()
	if breaker != "closed" {
		status = "degraded"
	}
	writeData(w, http.StatusOK, Health{Status: status, Pending: pending, Breaker: breaker})
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errInvalidBody
	}
	return nil
}
