// Package config loads plate-api settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/Brownie44l1/plate-api/internal/log"
)

// Defaults used when the corresponding variable is unset.
const (
	DefaultPort         = "8080"
	DefaultModelPath    = "models/plate_detection.onnx"
	DefaultMetadataPath = "models/plate_detection.json"
	DefaultCacheSize    = 256
)

type Config struct {
	ServerPort string

	ModelPath      string
	MetadataPath   string
	ORTLibraryPath string
	IntraOpThreads int

	DatabaseURL       string
	RegistryCacheSize int

	LogLevel  string
	LogFormat string

	CORSOrigins []string
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("could not load .env file", "err", err)
	}

	return &Config{
		ServerPort: getEnv("PORT", DefaultPort),

		ModelPath:      getEnv("MODEL_PATH", DefaultModelPath),
		MetadataPath:   getEnv("METADATA_PATH", DefaultMetadataPath),
		ORTLibraryPath: getEnv("ONNXRUNTIME_LIB", ""),
		IntraOpThreads: getEnvInt("ORT_INTRA_OP_THREADS", 0),

		DatabaseURL:       getEnv("DATABASE_URL", ""),
		RegistryCacheSize: getEnvInt("REGISTRY_CACHE_SIZE", DefaultCacheSize),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn("ignoring non-integer env value", "key", key, "value", raw)
		return fallback
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
