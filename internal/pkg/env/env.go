package env

import (
	"os"

	"github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
)

var Env map[string]string

// GetEnv resolves a key from the loaded .env file first, then the process
// environment, then the given default.
func GetEnv(key, def string) string {
	if val, ok := Env[key]; ok {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// SetupEnvFile loads the first .env file it finds. VARDERA_ENV_FILE overrides
// the search; otherwise the current directory and the project root relative
// to cmd/vardera are tried. A missing file is not fatal since containerized
// deployments and test binaries configure everything through the process
// environment.
func SetupEnvFile() {
	envFiles := []string{
		".env",
		"../../.env",
		"../../../.env",
	}
	if override := os.Getenv("VARDERA_ENV_FILE"); override != "" {
		envFiles = []string{override}
	}

	var err error
	for _, envFile := range envFiles {
		Env, err = godotenv.Read(envFile)
		if err == nil {
			return
		}
	}

	Env = map[string]string{}
	log.Warn("no .env file found, using process environment only")
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
