package jobs

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	service *Service
}

// JobResponse is a wrapper for the Job struct to include API links
type JobResponse struct {
	Job
	Links map[string]string `json:"_links"`
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) response(c *fiber.Ctx, job Job) JobResponse {
	base := fmt.Sprintf("%s/api/jobs/%s", c.BaseURL(), job.ID)
	return JobResponse{
		Job: job,
		Links: map[string]string{
			"self":   base,
			"logs":   base + "/logs",
			"cancel": base + "/cancel",
		},
	}
}

func (h *Handler) HandleStartJob(c *fiber.Ctx) error {
	jobType := c.Params("type")
	jobID, err := h.service.StartJob(jobType, c.Query("name"))
	if errors.Is(err, ErrUnknownJobType) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error(), "types": h.service.Types()})
	}
	if err != nil {
		return err
	}
	job, _ := h.service.GetJob(jobID)
	return c.Status(fiber.StatusAccepted).JSON(h.response(c, job))
}

func (h *Handler) HandleJobStatus(c *fiber.Ctx) error {
	job, exists := h.service.GetJob(c.Params("id"))
	if !exists {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": ErrJobNotFound.Error()})
	}
	return c.JSON(h.response(c, job))
}

func (h *Handler) HandleJobLogs(c *fiber.Ctx) error {
	logs, err := h.service.JobLogs(c.Params("id"))
	if errors.Is(err, ErrJobNotFound) {
		return c.Status(fiber.StatusNotFound).SendString("Job not found")
	}
	if err != nil {
		return err
	}
	if logs == "" {
		return c.SendString("No logs for this job.")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(logs)
}

func (h *Handler) HandleJobList(c *fiber.Ctx) error {
	jobs := h.service.GetJobs()
	responses := make([]JobResponse, len(jobs))
	for i, job := range jobs {
		responses[i] = h.response(c, job)
	}
	return c.JSON(responses)
}

func (h *Handler) HandleCancelJob(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.service.CancelJob(id); errors.Is(err, ErrJobNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	} else if err != nil {
		return err
	}
	job, _ := h.service.GetJob(id)
	return c.JSON(h.response(c, job))
}

func (h *Handler) HandleClearFinishedJobs(c *fiber.Ctx) error {
	removed := h.service.ClearFinishedJobs()
	return c.JSON(fiber.Map{"removed": removed})
}
