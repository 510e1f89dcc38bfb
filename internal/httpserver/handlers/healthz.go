package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/stockroom/internal/httpserver/deps"
)

type healthzResponse struct {
	Status        string  `json:"status"`
	CatalogLoaded bool    `json:"catalog_loaded"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Version       string  `json:"version,omitempty"`
	Commit        string  `json:"commit,omitempty"`
	BuildDate     string  `json:"build_date,omitempty"`
	GoVersion     string  `json:"go_version,omitempty"`
}

// Healthz always answers 200. Status reads "starting" until the catalog is
// first loaded. Readiness is reported by /readyz.
func Healthz(d deps.Deps) http.HandlerFunc {
	start := d.StartTime
	return func(w http.ResponseWriter, r *http.Request) {
		loaded := d.Catalog != nil && d.Catalog.Loaded()
		status := "ok"
		if !loaded {
			status = "starting"
		}
		writeJSON(w, http.StatusOK, healthzResponse{
			Status:        status,
			CatalogLoaded: loaded,
			Version:       d.Version,
			Commit:        d.Commit,
			BuildDate:     d.BuildDate,
			GoVersion:     d.GoVersion,
			UptimeSeconds: time.Since(start).Seconds(),
		})
	}
}
