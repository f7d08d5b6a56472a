package rendezvous

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/BioHazard786/Warpcall/internal/signaling"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// Clients are native applications, not browsers.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HealthStatus is the body of the /health endpoint.
type HealthStatus struct {
	Status  string `json:"status"`
	Rooms   int    `json:"rooms"`
	Waiting int    `json:"waiting"`
}

// NewHandler routes /ws to the hub and serves /health.
func NewHandler(hub *Hub) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ServeWs(hub))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(HealthStatus{Status: "ok", Rooms: hub.Rooms(), Waiting: hub.Waiting()})
	})
	return mux
}

// ServeWs upgrades the request and hands the connection to the hub.
func ServeWs(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.logger.Warn("failed to upgrade connection", "remote", r.RemoteAddr, "err", err)
			return
		}

		id := uuid.NewString()
		p := &Participant{
			ID:     id,
			Joined: time.Now(),
			hub:    hub,
			conn:   conn,
			send:   make(chan *signaling.Message, sendQueueSize),
			logger: hub.logger.With("participant", id),
		}
		if !hub.register(p) {
			conn.Close()
			return
		}

		go p.WritePump()
		go p.ReadPump()
	}
}

// ListenAndServe runs the hub and an HTTP server on addr until ctx is
// cancelled, then shuts both down.
func ListenAndServe(ctx context.Context, addr string, hub *Hub) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewHandler(hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		hub.logger.Info("relay listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
