// Package server wires the HTTP edge: middleware, routes and error mapping.
package server

import (
	"strings"
	"time"

	"farmops-backend/internal/auth"
	"farmops-backend/internal/models"
	"farmops-backend/internal/orders"
	"farmops-backend/internal/records"
	"farmops-backend/internal/tenant"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

type Deps struct {
	JWTSecret   string
	CORSOrigins string
	Log         *zap.Logger

	Orders  *orders.Service
	Records *records.Service
	Tenant  *tenant.Service
}

func New(d Deps) *fiber.App {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          ErrorHandler(log),
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestLogger(log))

	origins := strings.Split(d.CORSOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(origins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PATCH,OPTIONS",
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	api.Use(auth.JWTMiddleware(d.JWTSecret))

	api.Post("/orders", orders.CreateOrderHandler(d.Orders))
	api.Patch("/orders/:id/status",
		auth.RequireRole(models.RoleAdmin, models.RoleFarmOwner, models.RoleManager),
		orders.UpdateOrderStatusHandler(d.Orders))
	api.Post("/flocks/:id/daily-records", records.CreateDailyRecordHandler(d.Records))
	api.Post("/farms", tenant.CreateFarmHandler(d.Tenant))

	return app
}

func requestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		log.Debug("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("took", time.Since(start)))
		return err
	}
}
