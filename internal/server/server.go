// Package server assembles the HTTP API.
package server

import (
	"errors"
	"strings"
	"time"

	"residence-backend/internal/accesslog"
	"residence-backend/internal/audit"
	"residence-backend/internal/auth"
	"residence-backend/internal/bootstrap"
	"residence-backend/internal/dashboard"
	"residence-backend/internal/guest"
	"residence-backend/internal/models"
	"residence-backend/internal/resident"
	"residence-backend/internal/scanner"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const bodyLimit = 10 << 20

func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var e *fiber.Error
		if errors.As(err, &e) {
			return c.Status(e.Code).JSON(fiber.Map{
				"error": e.Message,
			})
		}
		logger.Error("unexpected error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unexpected server error",
		})
	}
}

func requestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			var e *fiber.Error
			if errors.As(err, &e) {
				status = e.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		logger.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)))
		return err
	}
}

// New builds the Fiber app with every route registered.
func New(s *bootstrap.Services) *fiber.App {
	cfg := s.Config
	app := fiber.New(fiber.Config{
		AppName:               "residence-backend",
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(s.Logger),
	})

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(requestid.New())
	app.Use(requestLogger(s.Logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/login", auth.LoginHandler(cfg.JWTSecret, s.Users))

	protected := api.Group("")
	protected.Use(auth.CurrentUserMiddleware(cfg.JWTSecret, s.Users, s.Logger))

	protected.Get("/auth/me", auth.MeHandler())

	// Residents
	manage := auth.RequireRole(models.RoleAdmin, models.RoleManagement)
	protected.Get("/residents", resident.ListHandler(s.Residents))
	protected.Get("/residents/buildings", resident.BuildingsHandler(s.Residents))
	protected.Get("/residents/:id", resident.GetHandler(s.Residents))
	protected.Get("/residents/:id/credential.png", resident.CredentialImageHandler(s.Residents))
	protected.Post("/residents", manage, resident.CreateHandler(s.Residents))
	protected.Put("/residents/:id", manage, resident.UpdateHandler(s.Residents))
	protected.Delete("/residents/:id", manage, resident.DeleteHandler(s.Residents))
	protected.Post("/residents/:id/credential", manage, resident.ReissueCredentialHandler(s.Residents))

	// Access logs
	protected.Get("/access-logs", accesslog.ListHandler(s.AccessLogs))
	protected.Get("/access-logs/export", accesslog.ExportHandler(s.AccessLogs))
	protected.Post("/access-logs", accesslog.CreateHandler(s.AccessLogs))

	// Gate
	gate := auth.RequireRole(models.RoleAdmin, models.RoleSecurity)
	protected.Post("/scanner/scan", gate, scanner.ScanHandler(s.Scanner))
	protected.Post("/scanner/scan-image", gate, scanner.ScanImageHandler(s.Scanner))
	protected.Post("/scanner/manual", gate, scanner.ManualHandler(s.Scanner))

	// Guests
	protected.Get("/guests", guest.ListHandler(s.Guests))
	protected.Post("/guests", guest.CreateHandler(s.Guests))
	protected.Post("/guests/:id/arrive", gate, guest.ArriveHandler(s.Guests))
	protected.Post("/guests/:id/depart", gate, guest.DepartHandler(s.Guests))

	// Dashboard
	protected.Get("/dashboard/stats", dashboard.StatsHandler(s.Dashboard))
	protected.Get("/dashboard/activity", dashboard.ActivityHandler(s.Dashboard))

	// Audit
	protected.Get("/audit-logs", audit.ListHandler(s.Audit))
	protected.Post("/audit-logs/:id/undo", auth.RequireRole(models.RoleAdmin), audit.UndoHandler(s.Audit))

	return app
}
