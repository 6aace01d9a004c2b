package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/afroash/holdtrack/internal/apperr"
	"github.com/afroash/holdtrack/internal/models"
	"github.com/afroash/holdtrack/internal/service"
	"github.com/afroash/holdtrack/internal/storage"
)

// APIHandler handles the REST API
type APIHandler struct {
	svc     HoldService
	stats   StatsProvider
	cleaner CleanerStatsProvider
	hub     *Hub
	logger  zerolog.Logger
}

// NewAPIHandler creates a new API handler. stats, cleaner and hub may be nil.
func NewAPIHandler(svc HoldService, stats StatsProvider, cleaner CleanerStatsProvider, hub *Hub, logger zerolog.Logger) *APIHandler {
	return &APIHandler{
		svc:     svc,
		stats:   stats,
		cleaner: cleaner,
		hub:     hub,
		logger:  logger,
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      int    `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

type createAccountBody struct {
	ID        string     `json:"id"`
	APIKey    *string    `json:"apiKey"`
	Timestamp *time.Time `json:"timestamp"`
}

type createDeviceBody struct {
	ID        string     `json:"id"`
	Timestamp *time.Time `json:"timestamp"`
}

type createHoldResponse struct {
	ID       int64     `json:"id"`
	Label    string    `json:"label"`
	IMEI     *string   `json:"imei"`
	Start    time.Time `json:"start"`
	DeviceID string    `json:"deviceId"`
}

type replaceHoldResponse struct {
	ReplacementHoldID int64 `json:"replacementHoldId"`
}

// StatsResponse is returned by /api/stats
type StatsResponse struct {
	Storage  *storage.StorageStats       `json:"storage,omitempty"`
	Cleaner  *storage.OrphanCleanerStats `json:"cleaner,omitempty"`
	History  *HistoryStats               `json:"history,omitempty"`
	Watchers []WatcherStatus             `json:"watchers,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func (api *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.StatusCode(err)
	requestID := RequestIDFromContext(r.Context())
	if status >= http.StatusInternalServerError {
		api.logger.Error().Err(err).Str("request_id", requestID).Msg("Request failed")
	}
	writeJSON(w, status, errorResponse{
		Error:     apperr.Message(err),
		Code:      status,
		RequestID: requestID,
	})
}

// decode reads a JSON body into v; malformed bodies are a bad request
func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.BadRequest("Malformed JSON body.")
	}
	return nil
}

func holdIDVar(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["holdId"], 10, 64)
	if err != nil {
		return 0, apperr.BadRequest("Invalid hold id.")
	}
	return id, nil
}

// HandleCreateAccount handles POST /api/accounts
func (api *APIHandler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var body createAccountBody
	if err := decode(r, &body); err != nil {
		api.writeError(w, r, err)
		return
	}
	if err := api.svc.CreateAccount(r.Context(), body.ID, body.APIKey, body.Timestamp); err != nil {
		api.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteAccount handles DELETE /api/accounts/{accountId}
func (api *APIHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := api.svc.DeleteAccount(r.Context(), mux.Vars(r)["accountId"]); err != nil {
		api.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCreateDevice handles POST /api/accounts/{accountId}/devices
func (api *APIHandler) HandleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var body createDeviceBody
	if err := decode(r, &body); err != nil {
		api.writeError(w, r, err)
		return
	}
	if err := api.svc.CreateDevice(r.Context(), mux.Vars(r)["accountId"], body.ID, body.Timestamp); err != nil {
		api.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListDevices handles GET /api/accounts/{accountId}/devices
func (api *APIHandler) HandleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := api.svc.ListDevices(r.Context(), mux.Vars(r)["accountId"])
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// HandleDeleteDevice handles DELETE /api/devices/{deviceId}
func (api *APIHandler) HandleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := api.svc.DeleteDevice(r.Context(), mux.Vars(r)["deviceId"]); err != nil {
		api.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCreateHold handles POST /api/devices/{deviceId}/holds
func (api *APIHandler) HandleCreateHold(w http.ResponseWriter, r *http.Request) {
	var req service.CreateHoldRequest
	if err := decode(r, &req); err != nil {
		api.writeError(w, r, err)
		return
	}
	hold, err := api.svc.CreateHold(r.Context(), mux.Vars(r)["deviceId"], req)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createHoldResponse{
		ID:       hold.ID,
		Label:    hold.Label,
		IMEI:     hold.IMEI,
		Start:    hold.Start,
		DeviceID: hold.DeviceID,
	})
}

// HandleListHolds handles GET /api/devices/{deviceId}/holds
func (api *APIHandler) HandleListHolds(w http.ResponseWriter, r *http.Request) {
	holds, err := api.svc.ListHolds(r.Context(), mux.Vars(r)["deviceId"])
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	if holds == nil {
		holds = []*models.Hold{}
	}
	writeJSON(w, http.StatusOK, holds)
}

// HandleReleaseHold handles POST /api/devices/{deviceId}/release
func (api *APIHandler) HandleReleaseHold(w http.ResponseWriter, r *http.Request) {
	var req service.ReleaseHoldRequest
	if err := decode(r, &req); err != nil {
		api.writeError(w, r, err)
		return
	}
	if _, err := api.svc.ReleaseHold(r.Context(), mux.Vars(r)["deviceId"], req); err != nil {
		api.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReplaceHold handles POST /api/devices/{deviceId}/replace
func (api *APIHandler) HandleReplaceHold(w http.ResponseWriter, r *http.Request) {
	var req service.ReplaceHoldRequest
	if err := decode(r, &req); err != nil {
		api.writeError(w, r, err)
		return
	}
	hold, err := api.svc.ReplaceHold(r.Context(), mux.Vars(r)["deviceId"], req)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, replaceHoldResponse{ReplacementHoldID: hold.ID})
}

// HandleGetMeasurements handles GET /api/devices/{deviceId}/measurements
func (api *APIHandler) HandleGetMeasurements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	series, err := api.svc.GetMeasurements(r.Context(), mux.Vars(r)["deviceId"], service.MeasurementQuery{
		Sensor:     q.Get("sensor"),
		Since:      q.Get("since"),
		Until:      q.Get("until"),
		Resolution: q.Get("resolution"),
	})
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// HandleGetHold handles GET /api/holds/{holdId}
func (api *APIHandler) HandleGetHold(w http.ResponseWriter, r *http.Request) {
	id, err := holdIDVar(r)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	hold, err := api.svc.GetHold(r.Context(), id)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hold)
}

// HandleAdjustTimeframe handles POST /api/holds/{holdId}/adjust-timeframe
func (api *APIHandler) HandleAdjustTimeframe(w http.ResponseWriter, r *http.Request) {
	id, err := holdIDVar(r)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	var req service.AdjustTimeframeRequest
	if err := decode(r, &req); err != nil {
		api.writeError(w, r, err)
		return
	}
	if _, err := api.svc.AdjustHoldTimeframe(r.Context(), id, req); err != nil {
		api.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteHold handles DELETE /api/holds/{holdId}
func (api *APIHandler) HandleDeleteHold(w http.ResponseWriter, r *http.Request) {
	id, err := holdIDVar(r)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	if err := api.svc.DeleteHold(r.Context(), id); err != nil {
		api.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStats returns storage, cleaner and stream statistics
func (api *APIHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	var resp StatsResponse
	if api.stats != nil {
		stats, err := api.stats.Stats(r.Context())
		if err != nil {
			api.writeError(w, r, apperr.Internal("failed to get storage stats", err))
			return
		}
		resp.Storage = stats
	}
	if api.cleaner != nil {
		stats := api.cleaner.Stats()
		resp.Cleaner = &stats
	}
	if api.hub != nil {
		history := api.hub.History().Stats()
		resp.History = &history
		resp.Watchers = api.hub.Watchers()
	}
	writeJSON(w, http.StatusOK, resp)
}
