package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	DefaultHost         = "https://api.elevenlabs.io"
	DefaultModelID      = "eleven_flash_v2_5"
	DefaultOutputFormat = "mp3_44100_128"
)

type Client struct {
	host         string
	apiKey       string
	modelID      string
	outputFormat string
	httpClient   *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host, apiKey, modelID, outputFormat string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if host == "" {
		host = DefaultHost
	}
	if modelID == "" {
		modelID = DefaultModelID
	}
	if outputFormat == "" {
		outputFormat = DefaultOutputFormat
	}
	return &Client{
		host:         strings.TrimRight(host, "/"),
		apiKey:       apiKey,
		modelID:      modelID,
		outputFormat: outputFormat,
		httpClient:   httpClient,
	}
}

type ttsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// TextToSpeech converts text with the given voice and returns the whole
// audio stream as one buffer.
func (c *Client) TextToSpeech(ctx context.Context, voiceID, text string) ([]byte, error) {
	if strings.TrimSpace(voiceID) == "" {
		return nil, fmt.Errorf("voice_id is required")
	}
	raw, err := json.Marshal(ttsRequest{Text: text, ModelID: c.modelID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	query := url.Values{}
	query.Set("output_format", c.outputFormat)
	fullURL := c.host + "/v1/text-to-speech/" + url.PathEscape(voiceID) + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio stream: %w", err)
	}
	return audio, nil
}
