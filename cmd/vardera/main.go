package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"

	"github.com/vkarlsson/vardera/app/controllers"
	"github.com/vkarlsson/vardera/app/repository"
	"github.com/vkarlsson/vardera/internal/pkg/aiclient"
	"github.com/vkarlsson/vardera/internal/pkg/appraisal"
	"github.com/vkarlsson/vardera/internal/pkg/cache"
	"github.com/vkarlsson/vardera/internal/pkg/database"
	"github.com/vkarlsson/vardera/internal/pkg/entitlements"
	"github.com/vkarlsson/vardera/internal/pkg/env"
	"github.com/vkarlsson/vardera/internal/pkg/metrics/counter"
	"github.com/vkarlsson/vardera/internal/pkg/payments"
	"github.com/vkarlsson/vardera/internal/pkg/router"
	"github.com/vkarlsson/vardera/internal/pkg/statistics"
	"github.com/vkarlsson/vardera/internal/pkg/storage"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "3000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	repository.InitializeFactory(db)

	provider, err := aiclient.NewClient(env.GetEnv("ANTHROPIC_API_KEY", ""))
	if err != nil {
		log.Fatalf("ai client setup failed: %v", err)
	}

	blobs, err := storage.NewS3Store(storage.ConfigFromEnv())
	if err != nil {
		log.Fatalf("object storage setup failed: %v", err)
	}

	entRepo := entitlements.NewRepository(db)
	evaluator := entitlements.NewEvaluator(entRepo)
	appraisals := appraisal.NewService(
		repository.GetGlobalFactory().GetAppraisalRepository(),
		evaluator,
		provider,
		blobs,
	)
	pay := payments.NewService(db, entRepo, env.GetEnv("PAYMENT_PROVIDER", "stripe"), env.GetEnv("PAYMENT_WEBHOOK_SECRET", ""))

	controllers.Initialize(appraisals, evaluator, pay, blobs)

	// Background workers: stale-analysis sweeper, view counter flush,
	// cached landing page statistics.
	appraisals.StartSweeper(context.Background(), time.Minute, 10*time.Minute)
	go func() {
		for range time.Tick(time.Minute) {
			if err := counter.FlushAll(); err != nil {
				log.Printf("view counter flush: %v", err)
			}
		}
	}()
	go func() {
		for range time.Tick(5 * time.Minute) {
			statistics.UpdateCacheIfNeeded()
		}
	}()

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/vardera to project root
		"../../../", // Fallback
	}

	// Find the correct base path
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "views"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		Views:     html.New(basePath+"views", ".html"),
		BodyLimit: 52428800, // 50 MiB, appraisal uploads are capped per image
	})

	// ignore and cache favicon
	app.Use(favicon.New(favicon.Config{
		File:         basePath + "public/assets/icons/favicon.ico",
		URL:          "/favicon.ico",
		CacheControl: "public, max-age=604800",
	}))

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			"admin": env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// static files
	app.Static("/", basePath+"public/assets", fiber.Static{
		CacheDuration: 15 * time.Second,
		Compress:      true,
	})

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	return app
}
