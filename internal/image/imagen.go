package image

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmorgan81/pixelgen/internal/log"
	"google.golang.org/genai"
)

const DefaultImagenModel = "imagen-4.0-generate-001"

type imagesAPI interface {
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// ImagenGenerator calls Imagen through the GenAI SDK. Imagen only returns raw
// bytes, so results are always base64 encoded.
type ImagenGenerator struct {
	models  imagesAPI
	timeout time.Duration
}

func NewImagenGenerator(ctx context.Context, client *http.Client, key string, timeout time.Duration) (*ImagenGenerator, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, &ConfigError{Provider: "imagen", Err: ErrMissingCredential}
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: client,
	})
	if err != nil {
		return nil, &ConfigError{Provider: "imagen", Err: err}
	}
	return &ImagenGenerator{models: genaiClient.Models, timeout: timeout}, nil
}

func (g *ImagenGenerator) Generate(ctx context.Context, params Params) (Result, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("imagen").With("model", params.Model, "size", params.Size)
	log.Info("generating image via genai")

	if params.Encoding != EncodingBase64 {
		return Result{}, fmt.Errorf("imagen cannot return %q images", params.Encoding)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.models.GenerateImages(ctx, params.Model, params.Prompt, &genai.GenerateImagesConfig{
		NumberOfImages: int32(params.N),
		AspectRatio:    aspectRatio(params.Size),
	})
	if err != nil {
		return Result{}, classifyGenAIError(err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 {
		return Result{}, &MalformedResponseError{Reason: "no generated images"}
	}

	first := resp.GeneratedImages[0]
	if first.Image == nil || len(first.Image.ImageBytes) == 0 {
		if first.RAIFilteredReason != "" {
			return Result{}, &UpstreamError{
				StatusCode: http.StatusBadRequest,
				Message:    first.RAIFilteredReason,
				Code:       "content_policy_violation",
			}
		}
		return Result{}, &MalformedResponseError{Reason: "first image has no bytes"}
	}

	data := base64.StdEncoding.EncodeToString(first.Image.ImageBytes)
	log.Info("received image via genai", "mime", first.Image.MIMEType, "length", len(data))
	return Result{Data: data, Encoding: EncodingBase64}, nil
}

func classifyGenAIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{StatusCode: apiErr.Code, Message: apiErr.Message, Type: apiErr.Status}
	}
	return &TransportError{Err: err}
}

// aspectRatio turns a WxH size into the reduced W:H ratio Imagen expects.
func aspectRatio(size string) string {
	w, h, ok := strings.Cut(size, "x")
	if !ok {
		return "1:1"
	}
	width, errW := strconv.Atoi(w)
	height, errH := strconv.Atoi(h)
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		return "1:1"
	}
	d := gcd(width, height)
	return fmt.Sprintf("%d:%d", width/d, height/d)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
