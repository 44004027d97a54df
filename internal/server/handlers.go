// Package server exposes the HTTP handlers of the WebSocket gateway: the
// upgrade endpoint that attaches connections to the chat server and a
// health check.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Gateway serves the line protocol over WebSocket and reports server health.
type Gateway struct {
	server   *Server
	cfg      Config
	upgrader websocket.Upgrader
	log      *zap.SugaredLogger
}

// NewGateway creates a gateway that attaches upgraded connections to srv.
func NewGateway(srv *Server) *Gateway {
	log := srv.logger.Named("gateway").Sugar()
	policy := newOriginPolicy(srv.cfg.AllowedOrigins, log)

	return &Gateway{
		server: srv,
		cfg:    srv.cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.checkOrigin,
		},
		log: log,
	}
}

// WebSocketHandler upgrades the request and hands the connection to the chat
// server, which serves it like any TCP client.
func (g *Gateway) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if g.server.Status() != StatusStarted {
		http.Error(w, "chat server is not accepting clients", http.StatusServiceUnavailable)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warnw("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	lc := newWSLineConn(conn, r.RemoteAddr, g.cfg.MaxLineLength, g.cfg.WriteTimeout)
	if err := g.server.Attach(lc); err != nil {
		level := g.log.Infow
		if !errors.Is(err, ErrServerFull) && !errors.Is(err, ErrNotAccepting) {
			level = g.log.Warnw
		}
		level("WebSocket client rejected", "remote", r.RemoteAddr, "error", err)
	}
}

// HealthHandler reports the server status, client count and room count as
// JSON. It answers 503 once the server is no longer accepting clients.
func (g *Gateway) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	stats := g.server.Stats()

	w.Header().Set("Content-Type", "application/json")
	if g.server.Status() != StatusStarted {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		g.log.Debugw("error writing health response", "error", err)
	}
}
