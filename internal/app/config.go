package app

import (
	"github.com/ellyeware/idiombot/internal/platform/envutil"
	"github.com/ellyeware/idiombot/internal/platform/logger"
)

type Config struct {
	HTTPAddr       string
	AllowedOrigins []string
	IndexPath      string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		HTTPAddr:       envutil.GetEnv("HTTP_ADDR", ":8080", log),
		AllowedOrigins: envutil.GetEnvAsList("HUB_ALLOWED_ORIGINS", []string{"http://localhost:3000"}, log),
		IndexPath:      envutil.GetEnv("SEARCH_INDEX_PATH", "idiom.bleve", log),
	}
}
