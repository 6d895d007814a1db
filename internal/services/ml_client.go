package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/agrosentry/backend/internal/logger"
	"github.com/agrosentry/backend/internal/prediction"
	"github.com/agrosentry/backend/internal/utils"
)

// MLClient talks to the external pest classification service. It is
// constructed once and injected; callers never reach for a shared
// instance, which keeps fakes trivial in tests.
type MLClient interface {
	Predict(ctx context.Context, image []byte, filename string) (*prediction.RawResponse, error)
	Health(ctx context.Context) (*MLHealthStatus, error)
}

type MLHealthStatus struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Message     string `json:"message"`
}

type MLClientOptions struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type mlClient struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
}

func NewMLClient(baseLog *logger.Logger, opts MLClientOptions) (MLClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("ML service base URL is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &mlClient{
		log:        baseLog.With("service", "MLClient"),
		baseURL:    baseURL,
		httpClient: hc,
	}, nil
}

func NewMLClientFromEnv(baseLog *logger.Logger) (MLClient, error) {
	timeoutSeconds := utils.GetEnvAsInt("ML_TIMEOUT_SECONDS", 30, baseLog)
	return NewMLClient(baseLog, MLClientOptions{
		BaseURL: utils.GetEnv("ML_SERVICE_URL", "http://localhost:5001", baseLog),
		Timeout: time.Duration(timeoutSeconds) * time.Second,
	})
}

type mlHTTPError struct {
	StatusCode int
	Body       string
}

func (e *mlHTTPError) Error() string {
	return fmt.Sprintf("ml service http %d: %s", e.StatusCode, e.Body)
}

// Predict posts the image to the classifier. Transport failures and
// non-2xx statuses come back as errors; a 2xx answer that cannot be
// decoded returns a nil response so the normalizer can apply its
// fallback instead of failing the request.
func (mc *mlClient) Predict(ctx context.Context, image []byte, filename string) (*prediction.RawResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("Failed to build multipart body: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("Failed to write image to multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("Failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, mc.baseURL+"/predict", body)
	if err != nil {
		return nil, fmt.Errorf("Failed to build predict request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := mc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ML service connection failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("Failed to read predict response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &mlHTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var parsed prediction.RawResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		mc.log.Warn("Predict response was not decodable, falling back", "error", err)
		return nil, nil
	}
	return &parsed, nil
}

func (mc *mlClient) Health(ctx context.Context) (*MLHealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mc.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("Failed to build health request: %w", err)
	}
	resp, err := mc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ML service health check failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("Failed to read health response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &mlHTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var status MLHealthStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("Failed to decode health response: %w", err)
	}
	return &status, nil
}
