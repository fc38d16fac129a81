package supabase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// StorageClient talks to Supabase Storage with the service role key.
type StorageClient struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body)
}

func NewStorageClient(httpClient *http.Client, baseURL, serviceKey string) *StorageClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &StorageClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: httpClient,
	}
}

// Upload stores body at bucket/object and returns its public URL.
func (c *StorageClient) Upload(ctx context.Context, bucket, object, contentType string, body []byte) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("storage base url is not configured")
	}
	if bucket == "" || object == "" {
		return "", fmt.Errorf("bucket and object are required")
	}
	fullURL := c.baseURL + "/storage/v1/object/" + url.PathEscape(bucket) + "/" + escapeObject(object)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("x-upsert", "false")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}
	return c.PublicURL(bucket, object), nil
}

func (c *StorageClient) PublicURL(bucket, object string) string {
	return c.baseURL + "/storage/v1/object/public/" + url.PathEscape(bucket) + "/" + escapeObject(object)
}

func escapeObject(object string) string {
	parts := strings.Split(strings.TrimLeft(object, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
