package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmorgan81/pixelgen/internal/image"
	"github.com/dmorgan81/pixelgen/internal/log"
	"github.com/samber/lo"
)

type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderImagen Provider = "imagen"
)

// Config is read from the environment once per process.
type Config struct {
	Provider Provider

	OpenAIAPIKey      string
	OpenAIAPIKeyParam string
	OpenAIBaseURL     string
	GeminiAPIKey      string
	GeminiAPIKeyParam string

	Model    string
	Size     string
	Quality  string
	Style    string
	Encoding image.Encoding

	UpstreamTimeout time.Duration
	AllowedOrigins  []string
	LogLevel        slog.Level
	Addr            string
}

func Load() (*Config, error) {
	provider := Provider(strings.ToLower(getEnv("IMAGE_PROVIDER", string(ProviderOpenAI))))
	if provider != ProviderOpenAI && provider != ProviderImagen {
		return nil, fmt.Errorf("IMAGE_PROVIDER %q is not one of openai, imagen", provider)
	}

	defaultModel := lo.Ternary(provider == ProviderImagen, image.DefaultImagenModel, "dall-e-3")
	defaultEncoding := lo.Ternary(provider == ProviderImagen, image.EncodingBase64, image.EncodingURL)

	cfg := &Config{
		Provider:          provider,
		OpenAIAPIKey:      strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIAPIKeyParam: os.Getenv("OPENAI_API_KEY_PARAM"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", image.DefaultOpenAIBaseURL),
		GeminiAPIKey:      strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiAPIKeyParam: os.Getenv("GEMINI_API_KEY_PARAM"),
		Model:             getEnv("IMAGE_MODEL", defaultModel),
		Size:              getEnv("IMAGE_SIZE", "1024x1024"),
		Quality:           os.Getenv("IMAGE_QUALITY"),
		Style:             os.Getenv("IMAGE_STYLE"),
		Encoding:          image.Encoding(strings.ToLower(getEnv("IMAGE_RESPONSE_FORMAT", string(defaultEncoding)))),
		UpstreamTimeout:   time.Second * time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 60)),
		AllowedOrigins:    getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		LogLevel:          log.ParseLevel(os.Getenv("LOG_LEVEL")),
		Addr:              getEnv("ADDR", ":8080"),
	}

	if !cfg.Encoding.Valid() {
		return nil, fmt.Errorf("IMAGE_RESPONSE_FORMAT %q is not one of url, b64_json", cfg.Encoding)
	}
	if provider == ProviderImagen && cfg.Encoding != image.EncodingBase64 {
		return nil, fmt.Errorf("IMAGE_RESPONSE_FORMAT %q is not supported by the imagen provider", cfg.Encoding)
	}

	return cfg, nil
}

// ImageParams returns the outbound request defaults; the prompt is filled per request.
func (c *Config) ImageParams() image.Params {
	return image.Params{
		Model:    c.Model,
		N:        1,
		Size:     c.Size,
		Quality:  c.Quality,
		Style:    c.Style,
		Encoding: c.Encoding,
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && i > 0 {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	items := lo.Filter(lo.Map(strings.Split(v, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}), func(s string, _ int) bool {
		return s != ""
	})
	return lo.Ternary(len(items) > 0, items, fallback)
}
