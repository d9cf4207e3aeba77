package inject

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	appconfig "github.com/dmorgan81/pixelgen/internal/config"
	"github.com/dmorgan81/pixelgen/internal/cors"
	"github.com/dmorgan81/pixelgen/internal/handler"
	"github.com/dmorgan81/pixelgen/internal/image"
	"github.com/dmorgan81/pixelgen/internal/log"
	"github.com/dmorgan81/pixelgen/internal/page"
	"github.com/dmorgan81/pixelgen/internal/param"
	"github.com/samber/do"
	"github.com/samber/lo"
)

func Setup(ctx context.Context, cfg *appconfig.Config) *do.Injector {
	log := log.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		},
	})
	do.ProvideValue[*appconfig.Config](injector, cfg)
	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return config.LoadDefaultConfig(ctx)
	})
	do.Provide[*ssm.Client](injector, func(i *do.Injector) (*ssm.Client, error) {
		awsCfg, err := do.Invoke[aws.Config](i)
		if err != nil {
			return nil, err
		}
		return ssm.NewFromConfig(awsCfg), nil
	})
	do.ProvideValue[*http.Client](injector, &http.Client{})

	do.Provide[param.Fetcher](injector, param.NewParameterStoreFetcher)
	do.Provide[*cors.Policy](injector, func(i *do.Injector) (*cors.Policy, error) {
		return cors.NewPolicy(cfg.AllowedOrigins), nil
	})
	do.Provide[*page.Templator](injector, page.NewTemplator)

	do.ProvideNamed[string](injector, "api_key", func(i *do.Injector) (string, error) {
		imagen := cfg.Provider == appconfig.ProviderImagen
		return resolveKey(ctx, i,
			lo.Ternary(imagen, cfg.GeminiAPIKey, cfg.OpenAIAPIKey),
			lo.Ternary(imagen, cfg.GeminiAPIKeyParam, cfg.OpenAIAPIKeyParam))
	})
	do.Provide[image.Generator](injector, func(i *do.Injector) (image.Generator, error) {
		return newGenerator(ctx, i, cfg)
	})

	do.Provide[*handler.Handler](injector, handler.NewHandler)

	return injector
}

// resolveKey prefers the literal value and only reaches Parameter Store when a
// path is configured.
func resolveKey(ctx context.Context, i *do.Injector, value, path string) (string, error) {
	if value != "" {
		return value, nil
	}
	if path == "" {
		return "", image.ErrMissingCredential
	}
	fetcher, err := do.Invoke[param.Fetcher](i)
	if err != nil {
		return "", err
	}
	key, err := fetcher.Fetch(ctx, path)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", image.ErrMissingCredential
	}
	return key, nil
}

func newGenerator(ctx context.Context, i *do.Injector, cfg *appconfig.Config) (image.Generator, error) {
	key, err := do.InvokeNamed[string](i, "api_key")
	if err != nil {
		return nil, &image.ConfigError{Provider: string(cfg.Provider), Err: err}
	}
	client := do.MustInvoke[*http.Client](i)

	if cfg.Provider == appconfig.ProviderImagen {
		gen, err := image.NewImagenGenerator(ctx, client, key, cfg.UpstreamTimeout)
		if err != nil {
			return nil, err
		}
		return gen, nil
	}
	gen, err := image.NewOpenAIGenerator(client, cfg.OpenAIBaseURL, key, cfg.UpstreamTimeout)
	if err != nil {
		return nil, err
	}
	return gen, nil
}
