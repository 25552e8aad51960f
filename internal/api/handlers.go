package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"reptilia-backend/internal/habitat"
	"reptilia-backend/internal/monitor"
	"reptilia-backend/internal/scheduler"
	"reptilia-backend/internal/storage"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Jobs reports and cancels scheduled habitats; *scheduler.Registry
// implements it.
type Jobs interface {
	ListJobs() []scheduler.JobInfo
	Unschedule(habitatID string)
}

type Handler struct {
	Fleet   *monitor.Fleet
	Jobs    Jobs
	History storage.CommandHistory
	Timeout time.Duration
}

type errorResponse struct {
	Ok      bool                  `json:"ok"`
	Code    string                `json:"code"`
	Message string                `json:"message"`
	Details []habitat.ErrorDetail `json:"details"`
}

type habitatSummary struct {
	HabitatID  string          `json:"habitat_id"`
	Name       string          `json:"name"`
	Species    habitat.Species `json:"species"`
	Mode       habitat.Mode    `json:"mode"`
	OpenAlerts int             `json:"open_alerts"`
}

type modeRequest struct {
	Mode habitat.Mode `json:"mode"`
}

type outletRequest struct {
	State habitat.OutletState `json:"state"`
}

type ackRequest struct {
	By string `json:"by"`
}

type ruleRequest struct {
	ID                 string           `json:"rule_id"`
	Name               string           `json:"name"`
	SensorID           string           `json:"sensor_id"`
	OutletID           string           `json:"outlet_id"`
	Operator           habitat.Operator `json:"trigger_operator"`
	TriggerValue       float64          `json:"trigger_value"`
	ActionOnTrigger    habitat.Action   `json:"action_on_trigger"`
	ActionOnClear      habitat.Action   `json:"action_on_clear"`
	Hysteresis         float64          `json:"hysteresis"`
	MinDurationSeconds int              `json:"min_duration_seconds"`
	Tag                string           `json:"tag"`
	Enabled            *bool            `json:"enabled"`
}

func (req ruleRequest) rule(habitatID string) habitat.Rule {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	return habitat.Rule{
		ID:                 req.ID,
		Name:               req.Name,
		HabitatID:          habitatID,
		SensorID:           req.SensorID,
		OutletID:           req.OutletID,
		Operator:           req.Operator,
		TriggerValue:       req.TriggerValue,
		ActionOnTrigger:    req.ActionOnTrigger,
		ActionOnClear:      req.ActionOnClear,
		Hysteresis:         req.Hysteresis,
		MinDurationSeconds: req.MinDurationSeconds,
		Tag:                req.Tag,
		Enabled:            enabled,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Get("/jobs", h.handleJobs)
	r.Route("/habitats", func(r chi.Router) {
		r.Get("/", h.handleHabitats)
		r.Route("/{id}", func(r chi.Router) {
			r.Delete("/", h.handleHabitatDelete)
			r.Get("/status", h.handleStatus)
			r.Get("/commands", h.handleCommands)
			r.Get("/outlets", h.handleOutletStates)
			r.Post("/mode", h.handleMode)
			r.Post("/rules", h.handleRuleCreate)
			r.Delete("/rules/{ruleID}", h.handleRuleDelete)
			r.Post("/rules/{ruleID}/enable", h.handleRuleEnable)
			r.Post("/rules/{ruleID}/disable", h.handleRuleDisable)
			r.Post("/thresholds", h.handleThreshold)
			r.Post("/outlets/{outletID}", h.handleOutlet)
			r.Post("/alerts/{alertID}/ack", h.handleAck)
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) handleJobs(w http.ResponseWriter, r *http.Request) {
	if h.Jobs == nil {
		writeJSON(w, http.StatusOK, []scheduler.JobInfo{})
		return
	}
	writeJSON(w, http.StatusOK, h.Jobs.ListJobs())
}

func (h *Handler) handleHabitats(w http.ResponseWriter, r *http.Request) {
	out := []habitatSummary{}
	for _, hab := range h.Fleet.All() {
		snap := hab.Status()
		out = append(out, habitatSummary{
			HabitatID:  snap.HabitatID,
			Name:       snap.Name,
			Species:    snap.Species,
			Mode:       snap.Mode,
			OpenAlerts: len(snap.Alerts),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	hab, ok := h.habitat(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, hab.Status())
}

// handleHabitatDelete stops scheduling the habitat and retires its rules.
func (h *Handler) handleHabitatDelete(w http.ResponseWriter, r *http.Request) {
	hab, ok := h.Fleet.Remove(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "message": "habitat not found"})
		return
	}
	if h.Jobs != nil {
		h.Jobs.Unschedule(hab.ID())
	}
	ctx, cancel := h.context(r)
	defer cancel()
	hab.Retire(ctx)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "habitat_id": hab.ID()})
}

func (h *Handler) handleCommands(w http.ResponseWriter, r *http.Request) {
	hab, ok := h.habitat(w, r)
	if !ok {
		return
	}
	if h.History == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]any{"ok": false, "message": "command history not configured"})
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}
	ctx, cancel := h.context(r)
	defer cancel()
	cmds, err := h.History.RecentCommands(ctx, hab.ID(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmds)
}

func (h *Handler) handleOutletStates(w http.ResponseWriter, r *http.Request) {
	hab, ok := h.habitat(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	writeJSON(w, http.StatusOK, hab.RefreshOutlets(ctx))
}

func (h *Handler) handleMode(w http.ResponseWriter, r *http.Request) {
	hab, ok := h.habitat(w, r)
	if !ok {
		return
	}
	var req modeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": err.Error()})
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	results, err := hab.ForceMode(ctx, req.Mode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "mode": req.Mode, "commands": results})
}

func (h *Handler) handleRuleCreate(w http.ResponseWriter, r *http.Request) {
	hab, ok := h.habitat(w, r)
	if !ok {
		return
	}
	var req ruleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": err.Error()})
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	rule := req.rule(hab.ID())
	if err := hab.RegisterRule(ctx, rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "rule_id": rule.ID})
}

func (h *Handler) handleRuleDelete(w http.ResponseWriter, r *http.Request) {
	hab, ok := h.habitat(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	if err := hab.RemoveRule(ctx, chi.URLParam(r, "ruleID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleRuleEnable(w http.ResponseWriter, r *http.Request) {
	h.setRuleEnabled(w, r, true)
}

func (h *Handler) handleRuleDisable(w http.ResponseWriter, r *http.Request) {
	h.setRuleEnabled(w, r, false)
}

func (h *Handler) setRuleEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	hab, ok := h.habitat(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	if err := hab.SetRuleEnabled(ctx, chi.URLParam(r, "ruleID"), enabled); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleThreshold(w http.ResponseWriter, r *http.Request) {
	hab, ok := h.habitat(w, r)
	if !ok {
		return
	}
	var th habitat.Threshold
	if err := decodeJSON(r, &th); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": err.Error()})
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	if err := hab.SetThreshold(ctx, th); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleOutlet(w http.ResponseWriter, r *http.Request) {
	hab, ok := h.habitat(w, r)
	if !ok {
		return
	}
	var req outletRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": err.Error()})
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	res, err := hab.ManualControl(ctx, chi.URLParam(r, "outletID"), req.State)
	if err != nil {
		var act *habitat.ActuationError
		if errors.As(err, &act) {
			writeJSON(w, http.StatusBadGateway, map[string]any{"ok": false, "message": err.Error(), "result": res})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
}

func (h *Handler) handleAck(w http.ResponseWriter, r *http.Request) {
	hab, ok := h.habitat(w, r)
	if !ok {
		return
	}
	req := ackRequest{By: "api"}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": err.Error()})
			return
		}
	}
	ctx, cancel := h.context(r)
	defer cancel()
	alert, err := hab.Acknowledge(ctx, chi.URLParam(r, "alertID"), req.By)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "alert": alert})
}

func (h *Handler) habitat(w http.ResponseWriter, r *http.Request) (*monitor.Habitat, bool) {
	hab, ok := h.Fleet.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "message": "habitat not found"})
		return nil, false
	}
	return hab, true
}

func (h *Handler) context(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(r.Context(), timeout)
}

func writeError(w http.ResponseWriter, err error) {
	var verr *habitat.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Ok:      false,
			Code:    verr.Code,
			Message: verr.Message,
			Details: verr.Details,
		})
	case errors.Is(err, habitat.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "message": "not found"})
	case errors.Is(err, habitat.ErrNotStarted):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "message": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "message": err.Error()})
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
