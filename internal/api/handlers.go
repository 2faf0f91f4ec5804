package api

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/scholarship-tracker/finder/internal/pipeline"
	"github.com/scholarship-tracker/finder/internal/storage"
)

const defaultRecentLimit = 20

const maxRecentLimit = 100

// Handlers contains the HTTP handlers for the status API
type Handlers struct {
	store   storage.Store
	runner  *pipeline.Runner
	bus     *pipeline.EventBus
	metrics *storage.SimpleMetricsCollector
}

// NewHandlers creates a new handlers instance. runner, bus, and metrics may
// be nil when the API fronts a store without an active pipeline.
func NewHandlers(store storage.Store, runner *pipeline.Runner, bus *pipeline.EventBus, metrics *storage.SimpleMetricsCollector) *Handlers {
	return &Handlers{
		store:   store,
		runner:  runner,
		bus:     bus,
		metrics: metrics,
	}
}

// Health returns the service health status
func (h *Handlers) Health(c *fiber.Ctx) error {
	status := "healthy"
	if err := h.store.Health(c.Context()); err != nil {
		status = "degraded"
	}
	return c.JSON(fiber.Map{
		"status":    status,
		"service":   "scholarship-finder",
		"version":   "0.1.0",
		"timestamp": time.Now().UTC(),
	})
}

// Stats returns pipeline run counters and store totals
func (h *Handlers) Stats(c *fiber.Ctx) error {
	total, err := h.store.Count(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to count scholarships",
			"details": err.Error(),
		})
	}

	resp := fiber.Map{"total_scholarships": total}
	if h.runner != nil {
		resp["run"] = h.runner.Stats()
	}
	if h.bus != nil {
		resp["events"] = h.bus.GetStats()
	}
	if h.metrics != nil {
		ops := fiber.Map{}
		for op, stats := range h.metrics.GetMetricsSummary() {
			ops[op] = fiber.Map{
				"count":           stats.Count,
				"success_rate":    stats.GetSuccessRate(),
				"avg_duration_ms": stats.GetAvgDurationMs(),
			}
		}
		resp["storage_operations"] = ops
	}
	return c.JSON(resp)
}

// RecentScholarships returns the most recently updated records
func (h *Handlers) RecentScholarships(c *fiber.Ctx) error {
	limit := defaultRecentLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRecentLimit {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "limit must be an integer between 1 and 100",
			})
		}
		limit = n
	}

	scholarships, err := h.store.Recent(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to list scholarships",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"count":        len(scholarships),
		"scholarships": scholarships,
	})
}
