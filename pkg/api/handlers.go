package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/jakechorley/nurse-duty/internal/config"
	"github.com/jakechorley/nurse-duty/pkg/core/model"
	"github.com/jakechorley/nurse-duty/pkg/core/rules"
	"github.com/jakechorley/nurse-duty/pkg/core/services"
	"github.com/jakechorley/nurse-duty/pkg/db"
)

// Store is the persistence the duty server needs
type Store interface {
	services.DutyStore
	db.RequestStore
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// GenerateRequest selects the month to generate
type GenerateRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// Handler serves the duty endpoints
type Handler struct {
	store    Store
	cfg      *config.Config
	criteria []rules.Criterion
	logger   *zap.Logger
}

// NewHandler creates a handler over store. Rule limits come from cfg, falling back to
// rules.DefaultLimits when none are configured.
func NewHandler(store Store, cfg *config.Config, logger *zap.Logger) *Handler {
	limits := rules.Limits{
		MaxNightShifts:     cfg.Rules.MaxNightShifts,
		MaxConsecutiveWork: cfg.Rules.MaxConsecutiveWork,
		MinOffDays:         cfg.Rules.MinOffDays,
	}
	if limits == (rules.Limits{}) {
		limits = rules.DefaultLimits
	}
	return &Handler{
		store:    store,
		cfg:      cfg,
		criteria: rules.Defaults(limits),
		logger:   logger,
	}
}

// GetDuty handles GET /api/duty?year&month&history
func (h *Handler) GetDuty(w http.ResponseWriter, r *http.Request) {
	query, err := parseDutyQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	duty, err := services.GetDuty(r.Context(), h.store, h.criteria, h.logger, query)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, duty)
}

// UpdateDuty handles PUT /api/duty
func (h *Handler) UpdateDuty(w http.ResponseWriter, r *http.Request) {
	var update model.DutyUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	entry, err := services.UpdateDuty(r.Context(), h.store, h.logger, update)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// GenerateDuty handles POST /api/duty/generate
func (h *Handler) GenerateDuty(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	entry, err := h.generate(r.Context(), req.Year, req.Month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) generate(ctx context.Context, year, month int) (*model.HistoryEntry, error) {
	requests, err := services.ListRequests(ctx, h.store, h.cfg, h.logger, year, month)
	if err != nil {
		return nil, err
	}
	return services.GenerateDuty(ctx, h.store, h.logger, year, month, requests)
}

// ListRequests handles GET /api/requests?year&month
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	month, err := intParam(r, "month")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if year == 0 || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, errors.New("year and month are required"))
		return
	}

	requests, err := services.ListRequests(r.Context(), h.store, h.cfg, h.logger, year, month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

// fail maps a service error to its status and logs server-side failures
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	} else {
		h.logger.Debug("Request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidUpdate),
		errors.Is(err, services.ErrInvalidPeriod),
		errors.Is(err, services.ErrUnknownMember):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrHistoryPeriod):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func parseDutyQuery(r *http.Request) (model.DutyQuery, error) {
	var query model.DutyQuery
	var err error
	if query.Year, err = intParam(r, "year"); err != nil {
		return query, err
	}
	if query.Month, err = intParam(r, "month"); err != nil {
		return query, err
	}
	if r.URL.Query().Has("history") {
		idx, err := intParam(r, "history")
		if err != nil {
			return query, err
		}
		query.History = &idx
	}
	return query, nil
}

// intParam reads an optional integer query parameter, zero when absent
func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
