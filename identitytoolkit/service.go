// Package identitytoolkit wraps the Firebase Auth (Identity Toolkit) REST
// API for account operations like password sign-in and sign-up.
package identitytoolkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://identitytoolkit.googleapis.com"

// Request describes one Identity Toolkit call.
type Request interface {
	Endpoint() string
	Body() any
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// APIKey is the Firebase web API key appended to every call.
	APIKey string
	// BaseURL overrides the API host, mainly for tests.
	BaseURL string
	// HTTPClient overrides the client used for calls.
	HTTPClient *http.Client
	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

// Service issues authenticated REST calls against the Identity Toolkit API.
type Service struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  *zap.Logger
}

// NewService builds a Service from the given configuration.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{
		client:  cfg.HTTPClient,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		logger:  cfg.Logger,
	}, nil
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Do posts req to its endpoint and decodes the JSON response into out.
func (s *Service) Do(ctx context.Context, req Request, out any) error {
	body, err := json.Marshal(req.Body())
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s%s?key=%s", s.baseURL, req.Endpoint(), url.QueryEscape(s.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-Id", requestID)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("call %s: %w", req.Endpoint(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("call %s: %s (status %d)", req.Endpoint(), apiErr.Error.Message, resp.StatusCode)
		}
		return fmt.Errorf("call %s: unexpected status %d", req.Endpoint(), resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	s.logger.Debug("identity toolkit call succeeded",
		zap.String("endpoint", req.Endpoint()),
		zap.String("request_id", requestID))
	return nil
}
