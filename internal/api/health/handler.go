package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"meridian/internal/adapters/clickhouse"
	"meridian/internal/adapters/ledger"
	"meridian/internal/adapters/postgres"
	"meridian/internal/adapters/redis"
	"meridian/pkg/logger"
)

// Handler provides health check endpoints
type Handler struct {
	log         *logger.Logger
	postgres    *postgres.Client
	clickhouse  *clickhouse.Client
	redis       *redis.Client
	gateway     *ledger.Gateway
	startTime   time.Time
	serviceName string
	version     string
}

// New creates a new health check handler
func New(
	log *logger.Logger,
	pg *postgres.Client,
	ch *clickhouse.Client,
	rd *redis.Client,
	gateway *ledger.Gateway,
	serviceName string,
	version string,
) *Handler {
	return &Handler{
		log:         log,
		postgres:    pg,
		clickhouse:  ch,
		redis:       rd,
		gateway:     gateway,
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                     `json:"status"` // "healthy", "degraded", "unhealthy"
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Uptime    string                     `json:"uptime"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// HandleLiveness returns 200 OK if the service is running
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "alive",
	})
}

// HandleReadiness checks if the service is ready to accept traffic.
// The ledger gateway is reported but does not gate readiness: workflows
// degrade to SERVICE_UNAVAILABLE rather than failing the whole process.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]ComponentHealth)
	allHealthy := true

	for name, check := range map[string]func(context.Context) ComponentHealth{
		"postgres":   h.checkPostgres,
		"clickhouse": h.checkClickHouse,
		"redis":      h.checkRedis,
	} {
		result := check(ctx)
		checks[name] = result
		if result.Status != "healthy" {
			allHealthy = false
		}
	}
	checks["ledger"] = h.checkLedger()

	status := HealthStatus{
		Status:    "healthy",
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    checks,
	}

	statusCode := http.StatusOK
	if !allHealthy {
		status.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
		h.log.Warnw("Readiness check failed", "checks", checks)
	} else if checks["ledger"].Status != "healthy" {
		status.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(status)
}

// HandleHealth is the full health report, same body as readiness
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.HandleReadiness(w, r)
}

func (h *Handler) checkPostgres(ctx context.Context) ComponentHealth {
	if h.postgres == nil {
		return ComponentHealth{Status: "disabled"}
	}
	start := time.Now()
	if err := h.postgres.Health(ctx); err != nil {
		return ComponentHealth{Status: "unhealthy", Error: err.Error()}
	}
	return ComponentHealth{Status: "healthy", ResponseTime: time.Since(start).String()}
}

func (h *Handler) checkClickHouse(ctx context.Context) ComponentHealth {
	if h.clickhouse == nil {
		return ComponentHealth{Status: "disabled"}
	}
	start := time.Now()
	if err := h.clickhouse.Health(ctx); err != nil {
		return ComponentHealth{Status: "unhealthy", Error: err.Error()}
	}
	return ComponentHealth{Status: "healthy", ResponseTime: time.Since(start).String()}
}

func (h *Handler) checkRedis(ctx context.Context) ComponentHealth {
	if h.redis == nil {
		return ComponentHealth{Status: "disabled"}
	}
	start := time.Now()
	if err := h.redis.Health(ctx); err != nil {
		return ComponentHealth{Status: "unhealthy", Error: err.Error()}
	}
	return ComponentHealth{Status: "healthy", ResponseTime: time.Since(start).String()}
}

func (h *Handler) checkLedger() ComponentHealth {
	if h.gateway == nil {
		return ComponentHealth{Status: "disabled"}
	}
	if !h.gateway.Ready() {
		return ComponentHealth{Status: "unhealthy", Error: "gateway not initialized"}
	}
	return ComponentHealth{Status: "healthy"}
}
