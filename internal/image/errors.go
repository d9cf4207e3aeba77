package image

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var ErrMissingCredential = errors.New("api credential is not configured")

// ConfigError reports a generator that could not be built at startup.
type ConfigError struct {
	Provider string
	Err      error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s generator: %v", e.Provider, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// TransportError means no usable answer came back from upstream: the request
// could not be sent, timed out, or its error body could not be read.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("image service unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UpstreamError is a non-2xx answer from the image service. Message, Type and
// Code come from the vendor error envelope when one was present.
type UpstreamError struct {
	StatusCode int
	Message    string
	Type       string
	Code       string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("image service returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("image service returned %d: %s", e.StatusCode, e.Message)
}

func (e *UpstreamError) ContentPolicyViolation() bool {
	switch {
	case e.Code == "content_policy_violation", e.Type == "content_policy_violation":
		return true
	case e.Code == "moderation_blocked":
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "safety system")
}

func (e *UpstreamError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// MalformedResponseError is a 2xx answer without a usable image field.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return "malformed image response: " + e.Reason
}
