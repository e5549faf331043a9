package handlers

import (
	"net/http"
	"sync"
	"time"
)

var (
	startTime time.Time
	startOnce sync.Once
)

// InitStartTime records the server start time once.
func InitStartTime() {
	startOnce.Do(func() {
		startTime = time.Now()
	})
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    int64  `json:"uptime"`
	Tokenizer string `json:"tokenizer"`
	Journal   bool   `json:"journal"`
}

// HealthHandler returns a health check handler.
func HealthHandler(version, tokenizerKind string, journal bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(0)
		if !startTime.IsZero() {
			uptime = int64(time.Since(startTime).Seconds())
		}

		SendJSON(w, http.StatusOK, HealthResponse{
			Status:    "ok",
			Version:   version,
			Uptime:    uptime,
			Tokenizer: tokenizerKind,
			Journal:   journal,
		})
	}
}
