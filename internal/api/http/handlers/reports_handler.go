package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repairshop-service/internal/api/dto"
	"github.com/spec-kit/repairshop-service/internal/service"
)

// ReportsHandler serves the analytics endpoints.
type ReportsHandler struct {
	reports *service.ReportService
}

// NewReportsHandler constructs handler.
func NewReportsHandler(reports *service.ReportService) *ReportsHandler {
	return &ReportsHandler{reports: reports}
}

// Turnaround GET /reports/turnaround.
func (h *ReportsHandler) Turnaround(c *fiber.Ctx) error {
	if _, err := requireActor(c); err != nil {
		return err
	}
	query := service.TurnaroundQuery{
		Preset:      c.Query("preset"),
		Granularity: c.Query("granularity"),
	}
	if fromStr := c.Query("from"); fromStr != "" {
		if ts, err := time.Parse(time.RFC3339, fromStr); err == nil {
			query.From = &ts
		}
	}
	if toStr := c.Query("to"); toStr != "" {
		if ts, err := time.Parse(time.RFC3339, toStr); err == nil {
			query.To = &ts
		}
	}
	report, err := h.reports.Turnaround(c.Context(), query)
	if err != nil {
		return err
	}

	// Periods and summary ship whole; only the per-task detail is paged.
	page, pageSize := parsePage(c)
	total := len(report.Tasks)
	report.Tasks = pageSlice(report.Tasks, page, pageSize)
	return c.JSON(fiber.Map{
		"data":       report,
		"pagination": dto.NewPagination(page, pageSize, total),
	})
}

func pageSlice(tasks []service.TaskTurnaround, page, pageSize int) []service.TaskTurnaround {
	start := (page - 1) * pageSize
	if start >= len(tasks) {
		return []service.TaskTurnaround{}
	}
	end := start + pageSize
	if end > len(tasks) {
		end = len(tasks)
	}
	return tasks[start:end]
}

// Workload GET /reports/workload.
func (h *ReportsHandler) Workload(c *fiber.Ctx) error {
	if _, err := requireActor(c); err != nil {
		return err
	}
	workloads, err := h.reports.Workload(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workloads})
}

// Performance GET /reports/performance.
func (h *ReportsHandler) Performance(c *fiber.Ctx) error {
	if _, err := requireActor(c); err != nil {
		return err
	}
	from, to, err := parseWindow(c)
	if err != nil {
		return err
	}
	performance, err := h.reports.Performance(c.Context(), from, to)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": performance})
}
