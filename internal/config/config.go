package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration values.
type Config struct {
	Secret         string
	DatabaseDriver string
	DatabaseDSN    string
	HTTPPort       string
	LogLevel       string
	LogFormat      string
	CheckoutRate   float64
	CheckoutBurst  int
	CORSOrigins    []string
}

// Load reads configuration from the environment, after applying a .env file
// when one exists, with reasonable defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("unable to read .env file: %v", err)
	}

	secret := getenv("SECRET", "dev_secret")

	port := getenv("HTTP_PORT", "8080")
	// Validate that port is numeric.
	if _, err := strconv.Atoi(port); err != nil {
		log.Printf("invalid HTTP_PORT value %q, defaulting to 8080", port)
		port = "8080"
	}

	driver := getenv("DATABASE_DRIVER", "sqlite")
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		if driver == "pgx" {
			dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
				getenv("USER", "postgres"),
				os.Getenv("PASSWORD"),
				getenv("HOST", "localhost"),
				getenv("PORT", "5432"),
				getenv("NAME", "pharmapos"))
		} else {
			dsn = "pharmapos.db"
		}
	}

	rate, err := strconv.ParseFloat(getenv("CHECKOUT_RATE", "5"), 64)
	if err != nil || rate <= 0 {
		log.Printf("invalid CHECKOUT_RATE value %q, defaulting to 5", os.Getenv("CHECKOUT_RATE"))
		rate = 5
	}
	burst, err := strconv.Atoi(getenv("CHECKOUT_BURST", "10"))
	if err != nil || burst <= 0 {
		log.Printf("invalid CHECKOUT_BURST value %q, defaulting to 10", os.Getenv("CHECKOUT_BURST"))
		burst = 10
	}

	var origins []string
	for _, o := range strings.Split(getenv("CORS_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return Config{
		Secret:         secret,
		DatabaseDriver: driver,
		DatabaseDSN:    dsn,
		HTTPPort:       port,
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogFormat:      getenv("LOG_FORMAT", "console"),
		CheckoutRate:   rate,
		CheckoutBurst:  burst,
		CORSOrigins:    origins,
	}
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
