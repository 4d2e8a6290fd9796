package main

import (
	"log"

	"lms/config"
	controllers "lms/controllers/course"
	"lms/database"
	courseRoutes "lms/routers/courseRoutes"
	"lms/services"
	"lms/services/certification"
	"lms/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	config.LoadConfig()
	database.ConnectDb()

	cfg := config.AppConfig
	db := database.Database.Db

	var notifier certification.Notifier
	if mailer := utils.NewCertificateMailer(db, cfg.SendgridAPIKey, cfg.EmailSender, cfg.CertVerifyBaseURL); mailer != nil {
		notifier = mailer
	}
	engine := services.NewEngine(db, services.OptionsFromConfig(cfg, notifier))
	controllers.UseEngine(engine)

	if _, err := utils.InitializeEngineScheduler(engine, cfg.SweepCron); err != nil {
		log.Fatalf("Invalid SWEEP_CRON %q: %v", cfg.SweepCron, err)
	}

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE",        // Allowed HTTP methods
		AllowHeaders: "Content-Type,Authorization", // Allowed headers
	}))

	// Enable the built-in logger middleware to log all requests
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
	}))

	courseRoutes.SetupCourseRoutes(app)
	courseRoutes.SetupAdminCourseRoutes(app)

	log.Printf("Server is running on port %s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
