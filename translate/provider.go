package translate

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Provider IDs
// ---------------------------------------------------------------------------

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// defaultTemperature keeps the model close to the source text without
// making retries deterministic failures.
const defaultTemperature = 0.3

// defaultMaxTokens leaves room for a full batch of translated lines.
const defaultMaxTokens = 8192

// ErrEmptyReply reports a successful API call whose reply carried no text.
// The transport already succeeded, so this is never retried; it fails the
// file being translated.
var ErrEmptyReply = errors.New("model reply was empty")

// Provider is an LLM endpoint configuration.
type Provider struct {
	// ID selects the request shape (ProviderOpenAI or ProviderGemini).
	ID string
	// Name is the display name.
	Name string
	// BaseURL is the API base URL. For the openai shape any
	// chat-completion-compatible service works (Groq, Ollama, vLLM, ...).
	BaseURL string
	// APIKey is the authentication key.
	APIKey string
	// Model is the model identifier.
	Model string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout is the request timeout.
	Timeout time.Duration
}

// DefaultProviders returns the pre-configured provider definitions.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		ProviderOpenAI: {
			ID:      ProviderOpenAI,
			Name:    "OpenAI",
			BaseURL: "https://api.openai.com/v1",
			Model:   "",
			Timeout: 120 * time.Second,
		},
		ProviderGemini: {
			ID:      ProviderGemini,
			Name:    "Google AI (Gemini)",
			BaseURL: "https://generativelanguage.googleapis.com",
			Model:   "",
			Timeout: 120 * time.Second,
		},
	}
}

// ---------------------------------------------------------------------------
// Request shapes
// ---------------------------------------------------------------------------

// requestShape is one provider wire format: how to wrap a prompt in the
// provider's request envelope and where the reply text lives in its
// response envelope. The shape is fixed once at configuration time; there
// is no response-format sniffing.
type requestShape interface {
	buildRequest(prov Provider, prompt string) (endpoint string, headers map[string]string, body []byte, err error)
	responseText(body []byte) (string, error)
}

// shapeFor maps a provider ID to its wire format.
func shapeFor(id string) (requestShape, error) {
	switch id {
	case ProviderOpenAI, "":
		return openAIShape{}, nil
	case ProviderGemini:
		return geminiShape{}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", id)
	}
}

// apiError is the error object both provider envelopes may carry.
type apiError struct {
	Message string `json:"message"`
}

// ---------------------------------------------------------------------------
// OpenAI chat-completion shape
// ---------------------------------------------------------------------------

type openAIShape struct{}

func (openAIShape) buildRequest(prov Provider, prompt string) (string, map[string]string, []byte, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	req := struct {
		Model       string  `json:"model"`
		Messages    []msg   `json:"messages"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
	}{
		Model:       prov.Model,
		Messages:    []msg{{Role: "user", Content: prompt}},
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", nil, nil, err
	}

	endpoint := strings.TrimRight(prov.BaseURL, "/")
	if !strings.HasSuffix(endpoint, "/chat/completions") {
		endpoint += "/chat/completions"
	}
	headers := map[string]string{"Content-Type": "application/json"}
	if prov.APIKey != "" {
		headers["Authorization"] = "Bearer " + prov.APIKey
	}
	return endpoint, headers, body, nil
}

func (openAIShape) responseText(body []byte) (string, error) {
	var envelope struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}
	if envelope.Error != nil && envelope.Error.Message != "" {
		return "", fmt.Errorf("API error: %s", envelope.Error.Message)
	}
	if len(envelope.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return envelope.Choices[0].Message.Content, nil
}

// ---------------------------------------------------------------------------
// Gemini generate-content shape
// ---------------------------------------------------------------------------

type geminiShape struct{}

func (geminiShape) buildRequest(prov Provider, prompt string) (string, map[string]string, []byte, error) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role"`
		Parts []part `json:"parts"`
	}
	type genConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	}
	req := struct {
		Contents         []content `json:"contents"`
		GenerationConfig genConfig `json:"generationConfig"`
	}{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
		GenerationConfig: genConfig{
			Temperature:     defaultTemperature,
			MaxOutputTokens: defaultMaxTokens,
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", nil, nil, err
	}

	// Google AI: POST /v1beta/models/{model}:generateContent, key in the URL.
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(prov.BaseURL, "/"), prov.Model)
	if prov.APIKey != "" {
		endpoint += "?key=" + url.QueryEscape(prov.APIKey)
	}
	headers := map[string]string{"Content-Type": "application/json"}
	return endpoint, headers, body, nil
}

func (geminiShape) responseText(body []byte) (string, error) {
	var envelope struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}
	if envelope.Error != nil && envelope.Error.Message != "" {
		return "", fmt.Errorf("API error: %s", envelope.Error.Message)
	}
	if len(envelope.Candidates) == 0 || len(envelope.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyReply
	}
	return envelope.Candidates[0].Content.Parts[0].Text, nil
}

// redactKey masks an API key carried in the endpoint URL so verbose status
// output never leaks it.
func redactKey(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	q := u.Query()
	if q.Has("key") {
		q.Set("key", "...")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
