package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Remote calls an OCR service over HTTP. The engine receives the raw PDF
// bytes plus a page number and does its own rasterization and recognition;
// everything behind the endpoint is a black box to this process.
type Remote struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewRemote builds a client for the OCR endpoint. rps bounds outbound
// request rate so page batches respect the engine's limits.
func NewRemote(baseURL, apiKey, model string, rps float64) *Remote {
	if rps <= 0 {
		rps = 2
	}
	return &Remote{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

type recognizeRequest struct {
	Model     string   `json:"model,omitempty"`
	Document  string   `json:"document"` // base64 PDF
	Page      int      `json:"page"`     // 1-based
	Languages []string `json:"languages,omitempty"`
}

type recognizeResponse struct {
	Text          string          `json:"text"`
	Confidence    float64         `json:"confidence"`
	Language      string          `json:"language"`
	Preprocessing map[string]bool `json:"preprocessing_applied"`
	Error         *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Recognize converts one page to text. 429 and 5xx responses surface as
// RetryableError so callers can back off and retry.
func (r *Remote) Recognize(ctx context.Context, document []byte, page int, languages []string) (RecognizedPage, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return RecognizedPage{}, err
	}
	start := time.Now()

	body, err := json.Marshal(recognizeRequest{
		Model:     r.model,
		Document:  base64.StdEncoding.EncodeToString(document),
		Page:      page,
		Languages: languages,
	})
	if err != nil {
		return RecognizedPage{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/recognize", bytes.NewReader(body))
	if err != nil {
		return RecognizedPage{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return RecognizedPage{}, fmt.Errorf("ocr api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return RecognizedPage{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return RecognizedPage{}, &RetryableError{StatusCode: resp.StatusCode, Message: truncate(string(respBody), 200)}
	}
	if resp.StatusCode != http.StatusOK {
		return RecognizedPage{}, fmt.Errorf("ocr api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var parsed recognizeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return RecognizedPage{}, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return RecognizedPage{}, fmt.Errorf("ocr error: %s", parsed.Error.Message)
	}

	return RecognizedPage{
		Page:       page,
		Text:       parsed.Text,
		Confidence: parsed.Confidence,
		Language:   parsed.Language,
		Duration:   time.Since(start),
		Preprocess: parsed.Preprocessing,
	}, nil
}

// Close releases idle connections.
func (r *Remote) Close() {
	r.httpClient.CloseIdleConnections()
}

// RetryableError indicates a transient engine failure worth retrying.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable ocr error (status %d): %s", e.StatusCode, e.Message)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
