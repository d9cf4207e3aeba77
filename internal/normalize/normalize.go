// Package normalize maps the outcome of an image generation call onto the
// client-facing contract: {"error": ...} or {"imageUrl"|"b64Json": ...}.
package normalize

import (
	"errors"
	"net/http"

	"github.com/dmorgan81/pixelgen/internal/image"
)

const (
	MessageMissingCredential = "server configuration error: missing API key"
	MessageInvalidPrompt     = "prompt is required"
	MessageInvalidBody       = "request body must be a JSON object"
	MessageDataNotFound      = "image data not found in upstream response"
	MessageContentPolicy     = "the prompt was rejected by the content policy; please try a different description"
	MessageRateLimited       = "too many requests; please try again later"
	MessageGeneric           = "an internal server error occurred"
)

type Response struct {
	StatusCode int
	Body       map[string]string
}

// Key is the response field the image string is returned under.
func Key(encoding image.Encoding) string {
	if encoding == image.EncodingBase64 {
		return "b64Json"
	}
	return "imageUrl"
}

func Error(status int, message string) Response {
	return Response{StatusCode: status, Body: map[string]string{"error": message}}
}

func Success(result image.Result) Response {
	if result.Data == "" {
		return Error(http.StatusInternalServerError, MessageDataNotFound)
	}
	return Response{
		StatusCode: http.StatusOK,
		Body:       map[string]string{Key(result.Encoding): result.Data},
	}
}

func Failure(err error) Response {
	var upstream *image.UpstreamError
	if errors.As(err, &upstream) {
		switch {
		case upstream.ContentPolicyViolation():
			return Error(http.StatusBadRequest, MessageContentPolicy)
		case upstream.RateLimited():
			return Error(http.StatusTooManyRequests, MessageRateLimited)
		}
		status := upstream.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusInternalServerError
		}
		message := upstream.Message
		if message == "" {
			message = MessageGeneric
		}
		return Error(status, message)
	}

	var malformed *image.MalformedResponseError
	if errors.As(err, &malformed) {
		return Error(http.StatusInternalServerError, MessageDataNotFound)
	}

	return Error(http.StatusInternalServerError, MessageGeneric)
}
