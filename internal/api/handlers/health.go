package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/es0612/health-insight-go/internal/telemetry"
)

// Global start time for uptime calculation
var startTime = time.Now()

// DatabaseHealthChecker interface for database health checks.
type DatabaseHealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// RedisHealthChecker interface for redis health checks.
type RedisHealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler manages the health probe endpoints.
type HealthHandler struct {
	db    DatabaseHealthChecker
	redis RedisHealthChecker
}

// SystemStats carries host level resource usage.
type SystemStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	Goroutines    int     `json:"goroutines"`
}

// HealthResponse represents the health status response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	System    *SystemStats      `json:"system,omitempty"`
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db DatabaseHealthChecker, redis RedisHealthChecker) *HealthHandler {
	return &HealthHandler{
		db:    db,
		redis: redis,
	}
}

// HealthCheck reports the status of the service and its dependencies. Only a
// failing database turns the response into a 503, Redis outages degrade the
// service but analyses can still run uncached.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	services := make(map[string]string)
	status := "healthy"
	criticalUnhealthy := false

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			services["database"] = "unhealthy: " + err.Error()
			status = "degraded"
			criticalUnhealthy = true
		} else {
			services["database"] = "healthy"
		}
	} else {
		services["database"] = "unhealthy: not configured"
		status = "degraded"
		criticalUnhealthy = true
	}

	if h.redis != nil {
		if err := h.redis.HealthCheck(ctx); err != nil {
			services["redis"] = "unhealthy: " + err.Error()
			status = "degraded"
		} else {
			services["redis"] = "healthy"
		}
	} else {
		services["redis"] = "unhealthy: not configured"
		status = "degraded"
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Services:  services,
		Version:   telemetry.ServiceVersion,
		Uptime:    time.Since(startTime).String(),
		System:    systemStats(ctx),
	}

	statusCode := http.StatusOK
	if criticalUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, response)
}

// ReadinessCheck requires every dependency to answer before the service
// accepts traffic.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	services := make(map[string]string)
	ready := true

	if h.db == nil || h.db.HealthCheck(ctx) != nil {
		services["database"] = "not ready"
		ready = false
	} else {
		services["database"] = "ready"
	}

	if h.redis == nil || h.redis.HealthCheck(ctx) != nil {
		services["redis"] = "not ready"
		ready = false
	} else {
		services["redis"] = "ready"
	}

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, gin.H{
		"ready":    ready,
		"services": services,
	})
}

// LivenessCheck confirms the process is responsive.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// systemStats samples host resource usage. Sampling failures zero the field
// rather than failing the probe. The zero CPU interval reads the delta since
// the previous call instead of blocking the request.
func systemStats(ctx context.Context) *SystemStats {
	stats := &SystemStats{Goroutines: runtime.NumGoroutine()}

	if cpuPercent, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(cpuPercent) > 0 {
		stats.CPUPercent = cpuPercent[0]
	}
	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemoryPercent = memInfo.UsedPercent
	}

	return stats
}
