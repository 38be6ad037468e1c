package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/karobarhq/karobar/internal/pkg/cache"
	"github.com/karobarhq/karobar/internal/pkg/database"
	"github.com/karobarhq/karobar/internal/pkg/env"
	"github.com/karobarhq/karobar/internal/pkg/metrics"
	"github.com/karobarhq/karobar/internal/pkg/quota"
	"github.com/karobarhq/karobar/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	if err := quota.SeedPlanLimits(database.GetDB()); err != nil {
		log.Printf("plan limit seeding failed: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName: "karobar",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics dashboard + prometheus scrape endpoint
	app.Get("/metrics", monitor.New())
	app.Get("/metrics/prometheus", adaptor.HTTPHandler(metrics.Handler()))

	// ROUTER
	router.InstallRouter(app)

	return app
}
