package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Zyldzkie/gas-guard/internal/alerts"
	"github.com/Zyldzkie/gas-guard/internal/config"
	"github.com/Zyldzkie/gas-guard/internal/export"
	"github.com/Zyldzkie/gas-guard/internal/feed"
	"github.com/Zyldzkie/gas-guard/internal/model"
	"github.com/Zyldzkie/gas-guard/internal/storage"
)

// SessionStatus is the read-only view of the running monitor session.
type SessionStatus interface {
	Identity() string
	Online() bool
	FeedState() feed.State
	Current() (model.LiveReading, model.AlertLevel, bool)
}

type Server struct {
	cfg     *config.Manager
	store   storage.Store
	recent  *alerts.Store
	session SessionStatus
	logger  *slog.Logger
	version string
}

type statusResponse struct {
	Status       string   `json:"status"`
	Time         string   `json:"time"`
	Version      string   `json:"version"`
	ConfigPath   string   `json:"config_path"`
	Connectivity string   `json:"connectivity"`
	FeedState    string   `json:"feed_state,omitempty"`
	Identity     string   `json:"identity,omitempty"`
	CurrentPPM   *float64 `json:"current_ppm,omitempty"`
	CurrentLevel string   `json:"current_level,omitempty"`
}

func Start(ctx context.Context, cfg *config.Manager, store storage.Store, recent *alerts.Store, session SessionStatus, logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:     cfg,
		store:   store,
		recent:  recent,
		session: session,
		logger:  logger,
		version: version,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/alerts", server.handleAlerts)
	mux.HandleFunc("/alerts/recent", server.handleRecent)
	mux.HandleFunc("/alerts/export", server.handleExport)
	mux.HandleFunc("/users/count", server.handleUserCount)
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{Addr: current.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp := statusResponse{
		Status:       "ok",
		Time:         time.Now().UTC().Format(time.RFC3339Nano),
		Version:      s.version,
		ConfigPath:   s.cfg.Path(),
		Connectivity: "offline",
	}
	if s.session != nil {
		resp.Identity = s.session.Identity()
		resp.FeedState = s.session.FeedState().String()
		if s.session.Online() {
			resp.Connectivity = "online"
		}
		if cur, level, ok := s.session.Current(); ok {
			ppm := cur.PPM
			resp.CurrentPPM = &ppm
			resp.CurrentLevel = string(level)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAlerts serves the durable alert feed, newest first. Without a
// user filter it is the admin "All Users" view.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q, ok := parseAlertQuery(w, r)
	if !ok {
		return
	}
	list, err := s.store.ListAlerts(r.Context(), q)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("alert query failed", "err", err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": list,
		"count":  len(list),
	})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	var list []model.AlertRecord
	if s.recent != nil {
		list = s.recent.List(limit)
		// The ring holds oldest first; the read contract is newest first.
		for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
			list[i], list[j] = list[j], list[i]
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": list,
		"count":  len(list),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q, ok := parseAlertQuery(w, r)
	if !ok {
		return
	}
	list, err := s.store.ListAlerts(r.Context(), q)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("alert export failed", "err", err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="alerts.csv"`)
		if err := export.WriteCSV(w, list); err != nil && s.logger != nil {
			s.logger.Error("csv write failed", "err", err)
		}
		return
	}
	book, err := export.Workbook(list)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("workbook build failed", "err", err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="alerts.xlsx"`)
	_, _ = w.Write(book)
}

func (s *Server) handleUserCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	total, active, err := s.store.CountProfiles(r.Context())
	if err != nil {
		if s.logger != nil {
			s.logger.Error("user count failed", "err", err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":  total,
		"active": active,
	})
}

func parseAlertQuery(w http.ResponseWriter, r *http.Request) (storage.AlertQuery, bool) {
	q := storage.AlertQuery{
		UserEmail: r.URL.Query().Get("user"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			w.WriteHeader(http.StatusBadRequest)
			return storage.AlertQuery{}, false
		}
		q.Limit = n
	}
	if v := r.URL.Query().Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return storage.AlertQuery{}, false
		}
		q.Since = ts
	}
	return q, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
