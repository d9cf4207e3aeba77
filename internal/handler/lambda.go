package handler

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/dmorgan81/pixelgen/internal/log"
	"github.com/samber/lo"
)

var pagePaths = []string{"", "/", "/index.html"}

// HandleLambda serves API Gateway HTTP API and function URL events. The page is
// served from the root; every other path is the generate route.
func (h *Handler) HandleLambda(ctx context.Context, event events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("lambda").With("path", event.RawPath)
	log.Debug("handling lambda invocation")

	req := Request{
		Method:    strings.ToUpper(event.RequestContext.HTTP.Method),
		Path:      event.RawPath,
		Headers:   lowerKeys(event.Headers),
		Body:      []byte(event.Body),
		RequestID: event.RequestContext.RequestID,
	}
	if event.IsBase64Encoded {
		body, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			log.Warn("undecodable request body", "error", err)
			req.BodyErr = err
		}
		req.Body = body
	}

	if lo.Contains(pagePaths, req.Path) {
		return toLambda(h.Page(ctx, req)), nil
	}
	return toLambda(h.Generate(ctx, req)), nil
}

func toLambda(resp Response) events.APIGatewayV2HTTPResponse {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       string(resp.Body),
	}
}

func lowerKeys(headers map[string]string) map[string]string {
	return lo.MapKeys(headers, func(_ string, k string) string {
		return strings.ToLower(k)
	})
}
