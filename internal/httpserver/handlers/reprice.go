package handlers

import (
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/stockroom/internal/domain"
	"github.com/MrSnakeDoc/stockroom/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stockroom/internal/logger"
)

type repriceResponse struct {
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// Reprice recomputes every feed-sourced price against the current feed.
func Reprice(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		updated, failed, err := d.Catalog.RecomputeAllFromFeed()
		if err != nil {
			d.Logger.Error("reprice failed", logger.Error(err))
			status, msg := http.StatusInternalServerError, "catalog could not be saved"
			if errors.Is(err, domain.ErrFeedUnavailable) || errors.Is(err, domain.ErrFeedMalformed) {
				status, msg = http.StatusBadGateway, "feed unavailable"
			}
			writeJSON(w, status, errorResponse{Error: msg})
			return
		}

		writeJSON(w, http.StatusOK, repriceResponse{Updated: updated, Failed: failed})
	}
}
