package env

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
)

var Env map[string]string

func GetEnv(key, def string) string {
	// Loaded .env values win over the process environment
	if val, ok := Env[key]; ok {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetEnvDuration parses values such as "5m" or "90s".
func GetEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(GetEnv(key, ""))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Warnf("[Env] Invalid duration for %s=%q, using %s", key, raw, def)
		return def
	}
	return d
}

func GetEnvBool(key string, def bool) bool {
	raw := strings.TrimSpace(GetEnv(key, ""))
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		log.Warnf("[Env] Invalid bool for %s=%q, using %t", key, raw, def)
		return def
	}
	return b
}

// SetupEnvFile loads the first .env found between the working directory and
// the project root. Missing files are fine in containers, where everything
// comes from the process environment.
func SetupEnvFile() {
	envFiles := []string{
		".env",
		"../../.env",    // from cmd/paygate
		"../../../.env", // deeper nesting
	}

	for _, envFile := range envFiles {
		vals, err := godotenv.Read(envFile)
		if err == nil {
			Env = vals
			log.Infof("[Env] Loaded %s", envFile)
			return
		}
	}

	Env = map[string]string{}
	log.Info("[Env] No .env file found, using process environment")
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
