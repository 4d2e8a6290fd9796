package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port   string
	JWTKey string

	DBDriver   string // postgres, mysql, sqlite
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Progress tracking
	MaxTimeSpentDeltaSeconds      int     // upper bound for a single time-spent report
	DefaultMinWatchPercent        float64 // used when a lesson has no threshold of its own
	ProgressReportIntervalSeconds int     // client reporting interval advertised to players

	// Scheduler
	SweepCron string // empty disables the sweeper

	// Certificates
	CertVerifyBaseURL string
	SendgridAPIKey    string
	EmailSender       string
}

// AppConfig is a global variable to access configuration
var AppConfig *Config

// LoadConfig initializes configuration from environment variables or defaults
func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	AppConfig = &Config{
		Port:   getEnv("PORT", "3000"),
		JWTKey: getEnv("JWT_SECRET_KEY", "defaultSecret"),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "lms"),

		MaxTimeSpentDeltaSeconds:      getEnvInt("MAX_TIME_SPENT_DELTA_SECONDS", 300),
		DefaultMinWatchPercent:        getEnvFloat("DEFAULT_MIN_WATCH_PERCENT", 80),
		ProgressReportIntervalSeconds: getEnvInt("PROGRESS_REPORT_INTERVAL_SECONDS", 15),

		SweepCron: getEnv("SWEEP_CRON", "@every 1m"),

		CertVerifyBaseURL: getEnv("CERT_VERIFY_BASE_URL", "http://localhost:3000/certificate/verify/"),
		SendgridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		EmailSender:       getEnv("EMAIL_SENDER", "no-reply@example.com"),
	}

	// Validate critical configuration
	if AppConfig.JWTKey == "defaultSecret" {
		log.Println("Warning: Using default JWT_SECRET_KEY. Update it in your environment.")
	}
	if AppConfig.DefaultMinWatchPercent <= 0 || AppConfig.DefaultMinWatchPercent > 100 {
		log.Printf("Warning: DEFAULT_MIN_WATCH_PERCENT %.2f out of range, using 80", AppConfig.DefaultMinWatchPercent)
		AppConfig.DefaultMinWatchPercent = 80
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns the default integer value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return intValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Error converting environment variable %s to float: %v", key, err)
		return defaultValue
	}
	return floatValue
}
