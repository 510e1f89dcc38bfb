package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/stockroom/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stockroom/internal/logger"
	"github.com/MrSnakeDoc/stockroom/internal/utils"
)

type reloadResponse struct {
	Queued  bool   `json:"queued"`
	Message string `json:"message"`
}

// Reload queues a feed re-ingestion without waiting for it.
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remote := logger.String("remote_ip", utils.ClientKey(r, d.TrustProxy))

		if !d.Reloader.Trigger() {
			d.Logger.Warn("feed reload already pending", remote)
			writeJSON(w, http.StatusTooManyRequests, reloadResponse{
				Message: "reload already pending, please wait",
			})
			return
		}

		d.Logger.Info("manual feed reload triggered via endpoint", remote)
		writeJSON(w, http.StatusAccepted, reloadResponse{
			Queued:  true,
			Message: "reload triggered",
		})
	}
}
