package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"truthlens/database"
	"truthlens/logger"
)

type StatsReader interface {
	Stats(ctx context.Context, since time.Time) (database.ArchiveStats, error)
}

type AdminHandler struct {
	token    string
	analyzer *AnalyzerHandler
	stats    StatsReader
	logs     *logger.Broadcaster
	log      *zap.Logger
}

func NewAdminHandler(token string, analyzer *AnalyzerHandler, stats StatsReader, logs *logger.Broadcaster, log *zap.Logger) *AdminHandler {
	if log == nil {
		log = zap.NewNop()
	}
	if logs == nil {
		logs = logger.Instance
	}
	return &AdminHandler{token: token, analyzer: analyzer, stats: stats, logs: logs, log: log.Named("admin")}
}

func (h *AdminHandler) authorized(token string) bool {
	return h.token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) == 1
}

// AuthMiddleware checks the X-Admin-Token header.
func (h *AdminHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.authorized(r.Header.Get("X-Admin-Token")) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func (h *AdminHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.analyzer.IsPaused.Store(true)
	h.log.Info("analysis paused by admin")
	w.WriteHeader(http.StatusOK)
}

func (h *AdminHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.analyzer.IsPaused.Store(false)
	h.log.Info("analysis resumed by admin")
	w.WriteHeader(http.StatusOK)
}

func (h *AdminHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"is_paused": h.analyzer.IsPaused.Load(),
		"limits":    h.analyzer.limits.Snapshot(),
	})
}

// GetStats: all-time archive aggregates.
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context(), time.Time{})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "database not available")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamLogs pushes every log line to an admin websocket. Browsers cannot set
// headers on websocket requests, so the token comes in the query string.
func (h *AdminHandler) StreamLogs(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r.URL.Query().Get("token")) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	logsChan := h.logs.Subscribe()
	defer h.logs.Unsubscribe(logsChan)

	done := make(chan struct{})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(done)
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-logsChan:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
