package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmorgan81/pixelgen/internal/config"
	"github.com/dmorgan81/pixelgen/internal/cors"
	"github.com/dmorgan81/pixelgen/internal/image"
	"github.com/dmorgan81/pixelgen/internal/log"
	"github.com/dmorgan81/pixelgen/internal/normalize"
	"github.com/dmorgan81/pixelgen/internal/page"
	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/samber/lo"
)

const GeneratePath = "/api/generate"

// Request is the transport-neutral view of an inbound call. Header keys are
// lower case.
type Request struct {
	Method    string
	Path      string
	Headers   map[string]string
	Body      []byte
	RequestID string
	// BodyErr is set by an adapter that could not read or decode the body.
	// It is only reported once the method checks have passed.
	BodyErr error
}

type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

type Options struct {
	Generator image.Generator
	// SetupErr is the error from building Generator, if any. Requests that
	// reach the generator step are answered with a configuration error.
	SetupErr error
	Defaults image.Params
	CORS     *cors.Policy
	Page     *page.Templator
}

type Handler struct {
	generator image.Generator
	setupErr  error
	defaults  image.Params
	cors      *cors.Policy
	page      *page.Templator
}

func New(opts Options) *Handler {
	h := &Handler{
		generator: opts.Generator,
		setupErr:  opts.SetupErr,
		defaults:  opts.Defaults,
		cors:      lo.Ternary(opts.CORS != nil, opts.CORS, cors.NewPolicy(nil)),
		page:      lo.Ternary(opts.Page != nil, opts.Page, &page.Templator{}),
	}
	if h.generator == nil && h.setupErr == nil {
		h.setupErr = &image.ConfigError{Provider: "unknown", Err: image.ErrMissingCredential}
	}
	return h
}

func NewHandler(i *do.Injector) (*Handler, error) {
	cfg := do.MustInvoke[*config.Config](i)
	generator, err := do.Invoke[image.Generator](i)
	return New(Options{
		Generator: generator,
		SetupErr:  err,
		Defaults:  cfg.ImageParams(),
		CORS:      do.MustInvoke[*cors.Policy](i),
		Page:      do.MustInvoke[*page.Templator](i),
	}), nil
}

// Generate answers one call to the generate route. It never returns an error;
// every outcome is mapped to a status code.
func (h *Handler) Generate(ctx context.Context, req Request) Response {
	requestID := lo.Ternary(req.RequestID != "", req.RequestID, uuid.NewString())
	log := log.FromContextOrDiscard(ctx).WithGroup("Handler").With("request_id", requestID, "method", req.Method)
	log.Info("handling generate request")

	headers := h.cors.Headers(req.Headers["origin"])
	headers["X-Request-ID"] = requestID

	switch req.Method {
	case http.MethodOptions:
		return Response{StatusCode: http.StatusOK, Headers: headers}
	case http.MethodPost:
	default:
		headers["Allow"] = http.MethodPost
		headers["Content-Type"] = "text/plain; charset=utf-8"
		return Response{
			StatusCode: http.StatusMethodNotAllowed,
			Headers:    headers,
			Body:       []byte(fmt.Sprintf("Method %s Not Allowed", req.Method)),
		}
	}

	if h.setupErr != nil {
		log.Error("image generator is not configured", "error", h.setupErr)
		return jsonResponse(headers, normalize.Error(http.StatusInternalServerError, normalize.MessageMissingCredential))
	}

	prompt, resp, ok := parsePrompt(req)
	if !ok {
		log.Warn("rejecting request", "error", resp.Body["error"])
		return jsonResponse(headers, resp)
	}

	params := h.defaults
	params.Prompt = prompt
	log.Info("requesting image generation", "params", params)

	result, err := h.generator.Generate(ctx, params)
	if err != nil {
		out := normalize.Failure(err)
		log.Error("image generation failed", "error", err, "status", out.StatusCode)
		return jsonResponse(headers, out)
	}

	out := normalize.Success(result)
	if out.StatusCode != http.StatusOK {
		log.Error("image generation returned no image data", "encoding", result.Encoding)
	} else {
		log.Info("image generated", "encoding", result.Encoding, "length", len(result.Data), "revised_prompt", result.RevisedPrompt)
	}
	return jsonResponse(headers, out)
}

// Page renders the browser page that calls the generate route.
func (h *Handler) Page(ctx context.Context, req Request) Response {
	headers := map[string]string{
		"X-Request-ID": lo.Ternary(req.RequestID != "", req.RequestID, uuid.NewString()),
	}
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		headers["Allow"] = http.MethodGet
		return Response{StatusCode: http.StatusMethodNotAllowed, Headers: headers}
	}

	html, err := h.page.Template(ctx, page.Params{
		Endpoint:    GeneratePath,
		ResponseKey: normalize.Key(h.defaults.Encoding),
		Base64:      h.defaults.Encoding == image.EncodingBase64,
	})
	if err != nil {
		log.FromContextOrDiscard(ctx).Error("rendering page failed", "error", err)
		headers["Content-Type"] = "text/plain; charset=utf-8"
		return Response{StatusCode: http.StatusInternalServerError, Headers: headers, Body: []byte(normalize.MessageGeneric)}
	}
	headers["Content-Type"] = "text/html; charset=utf-8"
	if req.Method == http.MethodHead {
		return Response{StatusCode: http.StatusOK, Headers: headers}
	}
	return Response{StatusCode: http.StatusOK, Headers: headers, Body: html}
}

func parsePrompt(req Request) (string, normalize.Response, bool) {
	if req.BodyErr != nil {
		return "", normalize.Error(http.StatusBadRequest, normalize.MessageInvalidBody), false
	}
	var payload map[string]any
	if err := json.Unmarshal(req.Body, &payload); err != nil || payload == nil {
		return "", normalize.Error(http.StatusBadRequest, normalize.MessageInvalidBody), false
	}
	prompt, ok := payload["prompt"].(string)
	if !ok || strings.TrimSpace(prompt) == "" {
		return "", normalize.Error(http.StatusBadRequest, normalize.MessageInvalidPrompt), false
	}
	return strings.TrimSpace(prompt), normalize.Response{}, true
}

func jsonResponse(headers map[string]string, resp normalize.Response) Response {
	body, err := json.Marshal(resp.Body)
	if err != nil {
		body = []byte(`{"error":"` + normalize.MessageGeneric + `"}`)
		resp.StatusCode = http.StatusInternalServerError
	}
	headers["Content-Type"] = "application/json"
	return Response{StatusCode: resp.StatusCode, Headers: headers, Body: body}
}
