package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"tablebook-backend/reservation"

	"github.com/joho/godotenv"
)

func LoadEnv() error {
	// A missing .env is fine: in production the variables are set directly.
	if err := godotenv.Load(); err != nil {
		return nil
	}
	return nil
}

// ValidateEnv checks that critical environment variables are set.
// Returns an error if any critical variable is missing.
func ValidateEnv() error {
	var missing []string

	if os.Getenv("JWT_SECRET") == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if os.Getenv("DATABASE_URL") == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return fmt.Errorf("critical environment variables not set: %v", missing)
	}

	if os.Getenv("FIREBASE_STORAGE_BUCKET") == "" {
		log.Println("WARNING: FIREBASE_STORAGE_BUCKET not set - image uploads will fail")
	}
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		log.Println("WARNING: GOOGLE_APPLICATION_CREDENTIALS not set - Firebase features may not work")
	}
	if os.Getenv("FRONTEND_URL") == "" {
		log.Println("WARNING: FRONTEND_URL not set - CORS may not work correctly")
	}
	if os.Getenv("ADMIN_URL") == "" {
		log.Println("WARNING: ADMIN_URL not set")
	}
	if os.Getenv("SMTP_HOST") == "" || os.Getenv("SMTP_PORT") == "" || os.Getenv("SMTP_FROM") == "" {
		log.Println("WARNING: SMTP_HOST/SMTP_PORT/SMTP_FROM not set - booking emails will not be sent")
	}
	if os.Getenv("AMQP_URL") == "" {
		log.Println("WARNING: AMQP_URL not set - booking events will not be published")
	}

	if _, err := ReservationPolicy(); err != nil {
		return err
	}

	return nil
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// ReservationPolicy reads booking rule overrides from the environment.
func ReservationPolicy() (reservation.Policy, error) {
	policy := reservation.DefaultPolicy()

	lead, err := minutesFromEnv("RESERVATION_MIN_LEAD_MINUTES", policy.MinLead)
	if err != nil {
		return policy, err
	}
	buffer, err := minutesFromEnv("RESERVATION_CLOSING_BUFFER_MINUTES", policy.MinClosingBuffer)
	if err != nil {
		return policy, err
	}
	policy.MinLead = lead
	policy.MinClosingBuffer = buffer

	if v := os.Getenv("RESERVATION_LEGACY_OVERNIGHT"); v != "" {
		legacy, err := strconv.ParseBool(v)
		if err != nil {
			return policy, fmt.Errorf("invalid RESERVATION_LEGACY_OVERNIGHT %q: %w", v, err)
		}
		policy.ShiftPostMidnight = !legacy
	}

	return policy, nil
}

func minutesFromEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def, fmt.Errorf("invalid %s %q: must be a non-negative number of minutes", key, v)
	}
	return time.Duration(n) * time.Minute, nil
}

// AllowedOrigins returns the configured CORS origins, skipping empty values.
func AllowedOrigins() []string {
	var origins []string
	for _, key := range []string{"FRONTEND_URL", "ADMIN_URL"} {
		for _, o := range strings.Split(os.Getenv(key), ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
		log.Println("WARNING: No CORS origins configured, defaulting to http://localhost:3000")
	}
	return origins
}

// IntEnv reads a positive integer from key, returning def when unset.
func IntEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def, fmt.Errorf("invalid %s %q: must be a positive integer", key, v)
	}
	return n, nil
}
