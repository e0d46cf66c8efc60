package api

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
	Redis    string `json:"redis,omitempty"`
}

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler answers 503 when the database or, if given, Redis does not
// respond.
func HealthHandler(db, redis pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := HealthResponse{Status: "healthy", Version: version, Database: "ok"}
		status := http.StatusOK

		if err := db.Ping(ctx); err != nil {
			resp.Database = "unreachable"
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
		if redis != nil {
			resp.Redis = "ok"
			if err := redis.Ping(ctx); err != nil {
				resp.Redis = "unreachable"
				resp.Status = "unhealthy"
				status = http.StatusServiceUnavailable
			}
		}

		respondJSON(w, status, resp)
	}
}

type bannerResponse struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

func RootHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, bannerResponse{
			Service: "showing-webhooks",
			Version: version,
			Status:  "running",
		})
	}
}
