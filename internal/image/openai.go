package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmorgan81/pixelgen/internal/log"
	"github.com/samber/lo"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	maxErrorBody = 1 << 20
)

type openAIResponse struct {
	Created int64 `json:"created"`
	Data    []struct {
		URL           string `json:"url"`
		B64JSON       string `json:"b64_json"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

type openAIErrorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
		Param   any    `json:"param"`
	} `json:"error"`
}

type OpenAIGenerator struct {
	Client  *http.Client
	BaseURL string
	Key     string
	Timeout time.Duration
}

func NewOpenAIGenerator(client *http.Client, baseURL, key string, timeout time.Duration) (*OpenAIGenerator, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, &ConfigError{Provider: "openai", Err: ErrMissingCredential}
	}
	return &OpenAIGenerator{
		Client:  lo.Ternary(client != nil, client, http.DefaultClient),
		BaseURL: strings.TrimRight(lo.Ternary(baseURL != "", baseURL, DefaultOpenAIBaseURL), "/"),
		Key:     key,
		Timeout: timeout,
	}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, params Params) (Result, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("openai").With("model", params.Model, "size", params.Size)
	log.Info("generating image via images api", "response_format", params.Encoding)

	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(params)
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.Key)

	resp, err := g.Client.Do(req)
	if err != nil {
		return Result{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, upstreamError(resp)
	}

	var out openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, &MalformedResponseError{Reason: fmt.Sprintf("decode body: %v", err)}
	}
	if len(out.Data) == 0 {
		return Result{}, &MalformedResponseError{Reason: "no image descriptors"}
	}

	first := out.Data[0]
	data := lo.Ternary(params.Encoding == EncodingBase64, first.B64JSON, first.URL)
	if data == "" {
		return Result{}, &MalformedResponseError{Reason: fmt.Sprintf("first descriptor has no %s field", params.Encoding)}
	}
	log.Info("received image via images api", "length", len(data))

	return Result{Data: data, Encoding: params.Encoding, RevisedPrompt: first.RevisedPrompt}, nil
}

func upstreamError(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &TransportError{Err: fmt.Errorf("read %d response: %w", resp.StatusCode, err)}
	}

	upstream := &UpstreamError{StatusCode: resp.StatusCode}
	var envelope openAIErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		upstream.Message = strings.TrimSpace(envelope.Error.Message)
		upstream.Type = envelope.Error.Type
		if envelope.Error.Code != nil {
			upstream.Code = fmt.Sprint(envelope.Error.Code)
		}
	}
	return upstream
}
