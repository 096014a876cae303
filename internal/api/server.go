// Package api exposes the dashboard over HTTP and websocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"treasury-charts/internal/dashboard"
	"treasury-charts/internal/domain"
	"treasury-charts/internal/observability"
	"treasury-charts/internal/render"
	"treasury-charts/internal/series"
	"treasury-charts/internal/storage"
)

// Default websocket keepalive settings.
const (
	DefaultPingInterval = 10 * time.Second
	DefaultPongWait     = 30 * time.Second
	writeWait           = 5 * time.Second
)

// Server serves the dashboard API.
type Server struct {
	dash         *dashboard.Dashboard
	snapshots    dashboard.Snapshots
	prices       storage.PriceStore
	logger       *log.Logger
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	pongWait     time.Duration
	started      time.Time
	wsClients    atomic.Int64
}

// Options contains configuration for creating a Server.
type Options struct {
	Dashboard    *dashboard.Dashboard
	Snapshots    dashboard.Snapshots
	Prices       storage.PriceStore // optional; serves /api/prices
	PingInterval time.Duration // Default: 10s
	PongWait     time.Duration // Default: 30s
	Logger       *log.Logger
}

// NewServer creates a new API server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	ping := opts.PingInterval
	if ping == 0 {
		ping = DefaultPingInterval
	}
	pong := opts.PongWait
	if pong == 0 {
		pong = DefaultPongWait
	}
	return &Server{
		dash:         opts.Dashboard,
		snapshots:    opts.Snapshots,
		prices:       opts.Prices,
		logger:       logger,
		upgrader:     websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		pingInterval: ping,
		pongWait:     pong,
		started:      time.Now(),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", observability.Handler())
	mux.HandleFunc("GET /status", s.handleStatus)

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/charts/{name}", s.handleChart)
	if s.prices != nil {
		mux.HandleFunc("GET /api/prices/{asset}", s.handlePriceHistory)
	}

	mux.HandleFunc("POST /api/wallet/connect", s.handleConnect)
	mux.HandleFunc("POST /api/wallet/disconnect", s.handleDisconnect)
	mux.HandleFunc("POST /api/wallet/unlock", s.handleUnlock)
	mux.HandleFunc("POST /api/wallet/dismiss", s.handleDismiss)

	mux.HandleFunc("GET /ws", s.handleWS)

	return mux
}

// ListenAndServe serves Handler on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("HTTP server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Printf("HTTP server shutdown error: %v", err)
		}
		return ctx.Err()
	}
}

// StatusResponse represents the status endpoint response.
type StatusResponse struct {
	Status          string `json:"status"`
	Uptime          string `json:"uptime"`
	Session         string `json:"session"`
	Account         string `json:"account,omitempty"`
	SnapshotVersion uint64 `json:"snapshot_version"`
	SnapshotEvents  int    `json:"snapshot_events"`
	WSClients       int64  `json:"ws_clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, version := s.snapshots.Latest()
	session := s.dash.Session()

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:          "running",
		Uptime:          time.Since(s.started).Round(time.Second).String(),
		Session:         string(session.State),
		Account:         session.Account,
		SnapshotVersion: version,
		SnapshotEvents:  snap.Len(),
		WSClients:       s.wsClients.Load(),
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	theme, ok := themeParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.dash.View(theme))
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	theme, ok := themeParam(w, r)
	if !ok {
		return
	}

	raw := r.PathValue("name")
	var format render.Format
	if i := strings.LastIndexByte(raw, '.'); i >= 0 {
		f, err := render.ParseFormat(raw[i+1:])
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		format = f
		raw = raw[:i]
	}
	name := domain.ChartName(raw)
	if !name.Valid() {
		writeError(w, http.StatusNotFound, "unknown chart "+strconv.Quote(raw))
		return
	}

	if format == "" {
		s.serveChartJSON(w, r, name, theme)
		return
	}
	s.serveChartImage(w, r, name, theme, format)
}

func (s *Server) serveChartJSON(w http.ResponseWriter, r *http.Request, name domain.ChartName, theme series.Theme) {
	payload, status, err := s.dash.ChartJSON(r.Context(), name, theme)
	switch {
	case errors.Is(err, dashboard.ErrDisconnected):
		writeError(w, http.StatusConflict, dashboard.UnlockPrompt)
	case err != nil:
		s.logger.Printf("Chart %s: %v", name, err)
		writeError(w, http.StatusInternalServerError, "chart unavailable")
	case status == dashboard.StatusLoading:
		writeJSON(w, http.StatusAccepted, map[string]string{"name": string(name), "status": string(status)})
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	}
}

func (s *Server) serveChartImage(w http.ResponseWriter, r *http.Request, name domain.ChartName, theme series.Theme, format render.Format) {
	width, _ := strconv.Atoi(r.URL.Query().Get("width"))
	height, _ := strconv.Atoi(r.URL.Query().Get("height"))

	payload, status, err := s.dash.ChartImage(r.Context(), name, theme, format, width, height)
	switch {
	case errors.Is(err, dashboard.ErrDisconnected):
		writeError(w, http.StatusConflict, dashboard.UnlockPrompt)
	case errors.Is(err, render.ErrEmptyChart):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		s.logger.Printf("Render %s: %v", name, err)
		writeError(w, http.StatusInternalServerError, "render failed")
	case status == dashboard.StatusLoading:
		writeJSON(w, http.StatusAccepted, map[string]string{"name": string(name), "status": string(status)})
	default:
		w.Header().Set("Content-Type", format.ContentType())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	}
}

// DefaultPriceWindow is the price history span served when no range is given.
const DefaultPriceWindow = 24 * time.Hour

type priceHistoryResponse struct {
	Asset        domain.Asset               `json:"asset"`
	From         int64                      `json:"from"`
	To           int64                      `json:"to"`
	Observations []*domain.PriceObservation `json:"observations"`
}

// handlePriceHistory serves recorded prices of one asset. from and to are
// Unix milliseconds; the default is the last DefaultPriceWindow.
func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	asset, err := domain.ParseAsset(r.PathValue("asset"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	q := r.URL.Query()
	to := time.Now().UnixMilli()
	if v := q.Get("to"); v != "" {
		if to, err = strconv.ParseInt(v, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "invalid to")
			return
		}
	}
	from := to - DefaultPriceWindow.Milliseconds()
	if v := q.Get("from"); v != "" {
		if from, err = strconv.ParseInt(v, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "invalid from")
			return
		}
	}
	if from > to {
		writeError(w, http.StatusBadRequest, "from is after to")
		return
	}

	obs, err := s.prices.History(r.Context(), asset, from, to)
	if err != nil {
		s.logger.Printf("Price history %s: %v", asset, err)
		writeError(w, http.StatusInternalServerError, "price history unavailable")
		return
	}
	if obs == nil {
		obs = []*domain.PriceObservation{}
	}
	writeJSON(w, http.StatusOK, priceHistoryResponse{Asset: asset, From: from, To: to, Observations: obs})
}

type connectRequest struct {
	Account string `json:"account"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session, err := s.dash.Connect(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionJSON(session))
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionJSON(s.dash.Disconnect(r.Context())))
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionJSON(s.dash.OpenUnlockModal()))
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionJSON(s.dash.DismissUnlockModal()))
}

type sessionResponse struct {
	Status          dashboard.SessionState `json:"status"`
	Account         string                 `json:"account,omitempty"`
	UnlockModalOpen bool                   `json:"unlock_modal_open"`
}

func sessionJSON(s dashboard.Session) sessionResponse {
	return sessionResponse{Status: s.State, Account: s.Account, UnlockModalOpen: s.UnlockModalOpen}
}

func themeParam(w http.ResponseWriter, r *http.Request) (series.Theme, bool) {
	theme, err := series.ParseTheme(r.URL.Query().Get("theme"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return theme, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
