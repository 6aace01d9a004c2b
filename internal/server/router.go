package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// RouterConfig wires the HTTP surface
type RouterConfig struct {
	API     *APIHandler
	Hub     *Hub
	Metrics *Metrics
	Version string
	Logger  zerolog.Logger
}

// NewRouter builds the gorilla/mux router with middleware and every route
func NewRouter(cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestIDMiddleware)
	router.Use(recoveryMiddleware(cfg.Logger))
	router.Use(accessLogMiddleware(cfg.Logger, cfg.Metrics))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","version":"%s"}`, cfg.Version)
	}).Methods(http.MethodGet)
	if cfg.Metrics != nil {
		router.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api").Subrouter()
	h := cfg.API

	api.HandleFunc("/stats", h.HandleStats).Methods(http.MethodGet)

	api.HandleFunc("/accounts", h.HandleCreateAccount).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{accountId}", h.HandleDeleteAccount).Methods(http.MethodDelete)
	api.HandleFunc("/accounts/{accountId}/devices", h.HandleCreateDevice).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{accountId}/devices", h.HandleListDevices).Methods(http.MethodGet)

	api.HandleFunc("/devices/{deviceId}", h.HandleDeleteDevice).Methods(http.MethodDelete)
	api.HandleFunc("/devices/{deviceId}/holds", h.HandleCreateHold).Methods(http.MethodPost)
	api.HandleFunc("/devices/{deviceId}/holds", h.HandleListHolds).Methods(http.MethodGet)
	api.HandleFunc("/devices/{deviceId}/release", h.HandleReleaseHold).Methods(http.MethodPost)
	api.HandleFunc("/devices/{deviceId}/replace", h.HandleReplaceHold).Methods(http.MethodPost)
	api.HandleFunc("/devices/{deviceId}/measurements", h.HandleGetMeasurements).Methods(http.MethodGet)

	api.HandleFunc("/holds/{holdId:[0-9]+}", h.HandleGetHold).Methods(http.MethodGet)
	api.HandleFunc("/holds/{holdId:[0-9]+}", h.HandleDeleteHold).Methods(http.MethodDelete)
	api.HandleFunc("/holds/{holdId:[0-9]+}/adjust-timeframe", h.HandleAdjustTimeframe).Methods(http.MethodPost)

	if cfg.Hub != nil {
		api.Handle("/stream/holds", cfg.Hub).Methods(http.MethodGet)
	}

	return router
}
