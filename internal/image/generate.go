package image

import "context"

type Encoding string

const (
	EncodingURL    Encoding = "url"
	EncodingBase64 Encoding = "b64_json"
)

func (e Encoding) Valid() bool {
	return e == EncodingURL || e == EncodingBase64
}

type Params struct {
	Model    string   `json:"model"`
	Prompt   string   `json:"prompt"`
	N        int      `json:"n"`
	Size     string   `json:"size"`
	Quality  string   `json:"quality,omitempty"`
	Style    string   `json:"style,omitempty"`
	Encoding Encoding `json:"response_format"`
}

// Result holds the first image descriptor returned upstream. Data is either a
// URL or a base64 blob depending on Encoding.
type Result struct {
	Data          string
	Encoding      Encoding
	RevisedPrompt string
}

type Generator interface {
	Generate(context.Context, Params) (Result, error)
}
