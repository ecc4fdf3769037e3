package providers

import (
	"net/http"
	"os"

	"github.com/c360studio/driftwatch/llm"
)

// OpenAIProvider targets the hosted OpenAI API. It shares the wire codec
// with OllamaProvider; only the default URL and authentication differ.
type OpenAIProvider struct {
	OllamaProvider
}

func init() {
	llm.RegisterProvider(&OpenAIProvider{})
}

// Name returns the provider identifier.
func (o *OpenAIProvider) Name() string {
	return "openai"
}

// BuildURL constructs the chat completions endpoint against the hosted API.
func (o *OpenAIProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return o.OllamaProvider.BuildURL(baseURL)
}

// SetHeaders sets the bearer credential. The hosted API rejects anonymous
// requests, unlike the local endpoints the ollama provider usually fronts.
func (o *OpenAIProvider) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}
