package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Exec     ExecConfig
	Keys     APIKeys
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

// ExecConfig bounds the execution sandbox. Workers caps simultaneous child
// processes, Timeout bounds each job end to end.
type ExecConfig struct {
	TempDir           string
	Workers           int
	Timeout           time.Duration
	CppCompiler       string
	PythonInterpreter string
}

type APIKeys struct {
	OpenRouter string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "5000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:5000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Exec: ExecConfig{
			TempDir:           getEnv("EXEC_TEMP_DIR", "temp"),
			Workers:           getEnvAsInt("EXEC_WORKERS", 4),
			Timeout:           time.Duration(getEnvAsInt("EXEC_TIMEOUT_SECONDS", 15)) * time.Second,
			CppCompiler:       getEnv("EXEC_CPP_COMPILER", "g++"),
			PythonInterpreter: getEnv("EXEC_PYTHON_INTERPRETER", "python3"),
		},
		Keys: APIKeys{
			OpenRouter: getEnv("OPENROUTER_API_KEY", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
