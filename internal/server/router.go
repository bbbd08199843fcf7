// internal/server/router.go
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"studybuddy-backend/internal/common/config"
)

// NewRouter assembles the full route table. End-user routes sit behind
// the JWT middleware; dispatcher routes sit behind the service token
// and are never reachable with an end-user credential.
func NewRouter(h *Handler, authCfg config.AuthConfig) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(MetricsMiddleware)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/notifications").Subrouter()

	// Dispatcher-only surface, service credential required.
	svc := api.NewRoute().Subrouter()
	svc.Use(ServiceAuthMiddleware(authCfg.ServiceToken))
	svc.HandleFunc("/pending", h.ListPending).Methods(http.MethodGet)
	svc.HandleFunc("/mark-sent", h.MarkSent).Methods(http.MethodPut)
	svc.HandleFunc("/sessions/{sessionId}/schedule-24h", h.ScheduleTwentyFourHour).Methods(http.MethodPost)

	// End-user surface.
	user := api.NewRoute().Subrouter()
	user.Use(UserAuthMiddleware(authCfg.JWTSecret))
	user.HandleFunc("", h.List).Methods(http.MethodGet)
	user.HandleFunc("/counts", h.Counts).Methods(http.MethodGet)
	user.HandleFunc("/read-all", h.MarkAllRead).Methods(http.MethodPut)
	user.HandleFunc("/{id:[0-9]+}/read", h.MarkRead).Methods(http.MethodPut)
	user.HandleFunc("/{id:[0-9]+}", h.Delete).Methods(http.MethodDelete)
	user.HandleFunc("", h.Create).Methods(http.MethodPost)
	user.HandleFunc("/group/{groupId:[0-9]+}/notify", h.GroupNotify).Methods(http.MethodPost)

	return r
}
