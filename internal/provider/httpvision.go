package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPVisionProvider calls a remote captioning model over HTTP, the way
// internal/embed's OllamaEmbedder calls a local Ollama instance. An
// empty Endpoint means no vision model is configured; Available then
// reports false and Caption returns ErrUnavailable, which never aborts
// ingestion.
type HTTPVisionProvider struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPVisionProvider builds a provider targeting endpoint with the
// given request timeout. An empty endpoint yields a permanently
// unavailable provider.
func NewHTTPVisionProvider(endpoint string, timeout time.Duration) *HTTPVisionProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPVisionProvider{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: timeout},
	}
}

type visionCaptionRequest struct {
	Prompt string `json:"prompt"`
	Image  []byte `json:"image"`
}

type visionCaptionResponse struct {
	Caption string `json:"caption"`
}

// Available reports whether an endpoint is configured and responds to a
// lightweight health probe. A transport error is treated as
// unavailable, never as a fatal error.
func (p *HTTPVisionProvider) Available(ctx context.Context) bool {
	if p == nil || p.Endpoint == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.Endpoint+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

// Caption sends imageBytes and prompt to the configured endpoint and
// returns the model's caption text.
func (p *HTTPVisionProvider) Caption(ctx context.Context, imageBytes []byte, prompt string) (string, error) {
	if p == nil || p.Endpoint == "" {
		return "", ErrUnavailable
	}

	body, err := json.Marshal(visionCaptionRequest{Prompt: prompt, Image: imageBytes})
	if err != nil {
		return "", fmt.Errorf("encode vision request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint+"/caption", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build vision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", ErrUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("vision provider returned %d: %s", resp.StatusCode, string(data))
	}

	var out visionCaptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode vision response: %w", err)
	}
	return out.Caption, nil
}

// HTTPOCREngine calls a remote OCR engine over HTTP. Same availability
// semantics as HTTPVisionProvider.
type HTTPOCREngine struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPOCREngine builds an engine targeting endpoint. An empty
// endpoint yields a permanently unavailable engine.
func NewHTTPOCREngine(endpoint string, timeout time.Duration) *HTTPOCREngine {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPOCREngine{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: timeout},
	}
}

type ocrExtractRequest struct {
	Lang  string `json:"lang,omitempty"`
	Image []byte `json:"image"`
}

type ocrExtractResponse struct {
	Text string `json:"text"`
}

// Available reports whether an endpoint is configured and reachable.
func (e *HTTPOCREngine) Available(ctx context.Context) bool {
	if e == nil || e.Endpoint == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.Endpoint+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := e.Client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

// Extract sends imageBytes to the configured OCR endpoint and returns
// recognized text, optionally hinted by lang (e.g. "eng", "ces").
func (e *HTTPOCREngine) Extract(ctx context.Context, imageBytes []byte, lang string) (string, error) {
	if e == nil || e.Endpoint == "" {
		return "", ErrUnavailable
	}

	body, err := json.Marshal(ocrExtractRequest{Lang: lang, Image: imageBytes})
	if err != nil {
		return "", fmt.Errorf("encode ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Endpoint+"/ocr", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		return "", ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", ErrUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ocr engine returned %d: %s", resp.StatusCode, string(data))
	}

	var out ocrExtractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ocr response: %w", err)
	}
	return out.Text, nil
}
