package jobs

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(app *fiber.App, service *Service) {
	handler := NewHandler(service)
	jobs := app.Group("/api/jobs")
	jobs.Get("/", handler.HandleJobList)
	jobs.Delete("/finished", handler.HandleClearFinishedJobs)
	jobs.Post("/start/:type", handler.HandleStartJob)
	jobs.Get("/:id", handler.HandleJobStatus)
	jobs.Get("/:id/logs", handler.HandleJobLogs)
	jobs.Post("/:id/cancel", handler.HandleCancelJob)
}
