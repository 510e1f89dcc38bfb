package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/stockroom/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready   bool `json:"ready"`
	Entries int  `json:"entries"`
}

// Readyz answers 503 until the catalog has been loaded once.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !d.Catalog.Loaded() {
			writeJSON(w, http.StatusServiceUnavailable, readyzResponse{})
			return
		}
		total, _ := d.Catalog.Count()
		writeJSON(w, http.StatusOK, readyzResponse{Ready: true, Entries: total})
	}
}
