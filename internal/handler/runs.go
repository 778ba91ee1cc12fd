package handler

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/subhajitsr/data-assignment-SPH/internal/model"
)

// RunSource lists recent ledger rows. Implemented by repository.RunRepo.
type RunSource interface {
	Recent(ctx context.Context, limit int) ([]model.LoadRun, error)
}

type RunsHandler struct {
	src RunSource
}

func NewRunsHandler(src RunSource) *RunsHandler {
	return &RunsHandler{src: src}
}

// List handles GET /runs?limit=N
func (h *RunsHandler) List(c fiber.Ctx) error {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    "INVALID_LIMIT",
					"message": "limit must be an integer between 1 and 500",
				},
			})
		}
		limit = n
	}

	runs, err := h.src.Recent(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to fetch load runs",
			},
		})
	}

	out := make([]fiber.Map, 0, len(runs))
	for _, r := range runs {
		m := fiber.Map{
			"run_id":     r.RunID,
			"record_set": r.RecordSet,
			"file_key":   r.FileKey,
			"status":     r.Status,
			"started_at": r.StartedAt,
		}
		if r.Error != "" {
			m["error"] = r.Error
		}
		if r.FinishedAt != nil {
			m["finished_at"] = *r.FinishedAt
		}
		out = append(out, m)
	}
	return c.JSON(fiber.Map{"runs": out})
}
