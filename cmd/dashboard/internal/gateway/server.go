package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gobwas/ws"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/hub"
)

// Health reports the streaming state and session count for /healthz.
type Health struct {
	Status   string `json:"status"`
	Stream   string `json:"stream"`
	Sessions int    `json:"sessions"`
	Loading  bool   `json:"loading"`
}

// NewHandler serves /ws and /healthz.
func NewHandler(h *hub.Hub, health func() Health, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			logger.Debug("Upgrade failed", zap.Error(err))
			return
		}

		client := NewClient(conn, h, logger)
		client.Start()
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		report := health()
		report.Sessions = h.Count()
		if report.Status == "" {
			report.Status = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	})
	return mux
}
