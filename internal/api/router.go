package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// HealthHandlers serves the liveness and readiness probes
type HealthHandlers interface {
	LivenessHandler(w http.ResponseWriter, r *http.Request)
	ReadinessHandler(w http.ResponseWriter, r *http.Request)
}

// NewRouter wires the session routes and, when health is non-nil, the probes
func NewRouter(api *API, health HealthHandlers) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/session", api.GetSession).Methods("GET")
	router.HandleFunc("/session/connect", api.Connect).Methods("POST")
	router.HandleFunc("/session/disconnect", api.Disconnect).Methods("POST")
	router.HandleFunc("/session/balance", api.RefreshBalance).Methods("POST")
	router.HandleFunc("/session/network", api.SwitchNetwork).Methods("PUT")
	router.HandleFunc("/transfer/draft", api.UpdateDraft).Methods("PUT")
	router.HandleFunc("/transfers", api.SendTransfer).Methods("POST")
	router.HandleFunc("/transfers", api.GetTransfers).Methods("GET")
	router.HandleFunc("/votes/{proposal:[0-9]+}", api.CastVote).Methods("POST")
	router.HandleFunc("/votes/{proposal:[0-9]+}", api.GetVotes).Methods("GET")
	router.HandleFunc("/events", api.GetEvents).Methods("GET")

	if health != nil {
		router.HandleFunc("/healthz", health.LivenessHandler).Methods("GET")
		router.HandleFunc("/readyz", health.ReadinessHandler).Methods("GET")
	}

	return router
}
