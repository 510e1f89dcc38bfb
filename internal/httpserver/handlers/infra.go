package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/stockroom/internal/catalog"
	"github.com/MrSnakeDoc/stockroom/internal/httpserver/deps"
)

type componentStatus struct {
	OK        bool   `json:"ok"`
	Entries   *int   `json:"entries,omitempty"`
	Available *int   `json:"available,omitempty"`
	Mirrored  *int64 `json:"mirrored,omitempty"`
	LastRun   string `json:"last_run,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Error     string `json:"error,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
	LastIngest *catalog.IngestReport      `json:"last_ingest,omitempty"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		total, available := d.Catalog.Count()

		components := map[string]componentStatus{
			"catalog": {
				OK:        d.Catalog.Loaded(),
				Entries:   &total,
				Available: &available,
			},
			"feed":  feedStatus(d),
			"redis": mirrorStatus(r.Context(), d),
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Status:     overallStatus(components),
			Components: components,
			LastIngest: d.Catalog.LastIngest(),
		})
	}
}

func overallStatus(components map[string]componentStatus) string {
	if !components["catalog"].OK {
		return "critical"
	}
	if !components["feed"].OK {
		return "degraded" // serving the stored catalog
	}
	if redis := components["redis"]; !redis.OK && redis.Mode != "disabled" {
		return "degraded"
	}
	return "ok"
}

func feedStatus(d deps.Deps) componentStatus {
	if d.Reloader == nil {
		return componentStatus{OK: true, Mode: "disabled"}
	}
	lastRun, err := d.Reloader.Status()
	st := componentStatus{OK: err == nil, LastRun: "never"}
	if !lastRun.IsZero() {
		st.LastRun = lastRun.Format("2006-01-02 15:04:05")
	}
	if err != nil {
		st.Error = "last reload failed"
	}
	return st
}

func mirrorStatus(ctx context.Context, d deps.Deps) componentStatus {
	if d.Mirror == nil {
		return componentStatus{OK: false, Mode: "disabled"}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.Mirror.Ping(ctx); err != nil {
		return componentStatus{OK: false, Mode: "degraded", Error: "unreachable"}
	}
	st := componentStatus{OK: true, Mode: "mirroring"}
	if n, err := d.Mirror.Count(ctx); err == nil {
		st.Mirrored = &n
	}
	return st
}
