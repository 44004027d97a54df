// Package server wires the gateway handlers into a gorilla/mux router.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes configures and returns a router with the gateway routes:
// GET /ws for the WebSocket line protocol and GET /health.
func SetupRoutes(g *Gateway) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", g.WebSocketHandler).Methods(http.MethodGet)
	r.HandleFunc("/health", g.HealthHandler).Methods(http.MethodGet)
	return r
}
