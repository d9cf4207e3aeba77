package image

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func newTestGenerator(t *testing.T, handler http.HandlerFunc) *OpenAIGenerator {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	g, err := NewOpenAIGenerator(ts.Client(), ts.URL+"/v1/", "test-key", 5*time.Second)
	if err != nil {
		t.Fatalf("NewOpenAIGenerator returned error: %v", err)
	}
	return g
}

func testParams(enc Encoding) Params {
	return Params{Model: "dall-e-3", Prompt: "a red fox", N: 1, Size: "1024x1024", Encoding: enc}
}

func TestOpenAIGeneratorURL(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/images/generations" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", got)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload["prompt"] != "a red fox" || payload["n"] != float64(1) || payload["size"] != "1024x1024" {
			t.Errorf("unexpected payload: %v", payload)
		}
		if payload["response_format"] != "url" || payload["model"] != "dall-e-3" {
			t.Errorf("unexpected payload: %v", payload)
		}
		if _, ok := payload["quality"]; ok {
			t.Errorf("empty quality should be omitted: %v", payload)
		}
		_, _ = w.Write([]byte(`{"created":1,"data":[{"url":"https://x/y.png","revised_prompt":"a red fox in snow"}]}`))
	})

	res, err := g.Generate(context.Background(), testParams(EncodingURL))
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if res.Data != "https://x/y.png" || res.Encoding != EncodingURL {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.RevisedPrompt != "a red fox in snow" {
		t.Fatalf("RevisedPrompt = %q", res.RevisedPrompt)
	}
}

func TestOpenAIGeneratorBase64(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"b64_json":"aGVsbG8="}]}`))
	})

	res, err := g.Generate(context.Background(), testParams(EncodingBase64))
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if res.Data != "aGVsbG8=" || res.Encoding != EncodingBase64 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestOpenAIGeneratorMalformed(t *testing.T) {
	cases := []struct {
		name string
		body string
		enc  Encoding
	}{
		{name: "empty_data", body: `{"data":[]}`, enc: EncodingURL},
		{name: "missing_url", body: `{"data":[{"b64_json":"aGVsbG8="}]}`, enc: EncodingURL},
		{name: "missing_b64", body: `{"data":[{"url":"https://x/y.png"}]}`, enc: EncodingBase64},
		{name: "not_json", body: `<html>`, enc: EncodingURL},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := g.Generate(context.Background(), testParams(tc.enc))
			var malformed *MalformedResponseError
			assert.ErrorAs(t, err, &malformed)
		})
	}
}

func TestOpenAIGeneratorUpstreamError(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		message string
		code    string
		policy  bool
	}{
		{
			name:    "rate_limit",
			status:  http.StatusTooManyRequests,
			body:    `{"error":{"message":"Rate limit exceeded","type":"requests","code":"rate_limit_exceeded"}}`,
			message: "Rate limit exceeded",
			code:    "rate_limit_exceeded",
		},
		{
			name:    "content_policy",
			status:  http.StatusBadRequest,
			body:    `{"error":{"message":"Your request was rejected as a result of our safety system.","type":"invalid_request_error","code":"content_policy_violation","param":null}}`,
			message: "Your request was rejected as a result of our safety system.",
			code:    "content_policy_violation",
			policy:  true,
		},
		{
			name:   "no_envelope",
			status: http.StatusBadGateway,
			body:   `bad gateway`,
		},
		{
			name:    "null_code",
			status:  http.StatusUnauthorized,
			body:    `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":null}}`,
			message: "Incorrect API key provided",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := g.Generate(context.Background(), testParams(EncodingURL))
			var upstream *UpstreamError
			require.ErrorAs(t, err, &upstream)
			assert.Equal(t, tc.status, upstream.StatusCode)
			assert.Equal(t, tc.message, upstream.Message)
			assert.Equal(t, tc.code, upstream.Code)
			assert.Equal(t, tc.policy, upstream.ContentPolicyViolation())
		})
	}
}

func TestOpenAIGeneratorTransportError(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})}
	g, err := NewOpenAIGenerator(client, "", "test-key", 0)
	if err != nil {
		t.Fatalf("NewOpenAIGenerator returned error: %v", err)
	}
	if g.BaseURL != DefaultOpenAIBaseURL {
		t.Fatalf("BaseURL = %q, want default", g.BaseURL)
	}

	_, err = g.Generate(context.Background(), testParams(EncodingURL))
	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("err = %v, want TransportError", err)
	}
}

func TestOpenAIGeneratorTimeout(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		<-r.Context().Done()
		return nil, r.Context().Err()
	})}
	g, err := NewOpenAIGenerator(client, "", "test-key", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewOpenAIGenerator returned error: %v", err)
	}

	_, err = g.Generate(context.Background(), testParams(EncodingURL))
	var transport *TransportError
	require.ErrorAs(t, err, &transport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewOpenAIGeneratorMissingKey(t *testing.T) {
	_, err := NewOpenAIGenerator(nil, "", "  ", 0)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, ErrMissingCredential)
}
