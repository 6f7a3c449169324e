package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://fcm.googleapis.com"

// SenderConfig describes how messages are delivered for one project.
type SenderConfig struct {
	// ProjectID is the Firebase project the messages belong to.
	ProjectID string
	// TokenSource mints the OAuth2 access tokens used to call the API.
	TokenSource oauth2.TokenSource
	// BaseURL overrides the FCM endpoint, mainly for tests.
	BaseURL string
	// HTTPClient overrides the delivery client.
	HTTPClient *http.Client
	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

// Sender delivers notifications to individual devices, users and groups.
type Sender struct {
	client    *http.Client
	baseURL   string
	projectID string
	tokens    oauth2.TokenSource
	logger    *zap.Logger
}

// NewSender builds a Sender from the given configuration.
func NewSender(cfg SenderConfig) (*Sender, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("project id is required")
	}
	if cfg.TokenSource == nil {
		return nil, errors.New("token source is required")
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
	return &Sender{
		client:    cfg.HTTPClient,
		baseURL:   cfg.BaseURL,
		projectID: cfg.ProjectID,
		tokens:    cfg.TokenSource,
		logger:    cfg.Logger,
	}, nil
}

// SendToToken delivers one message to a single registration token.
func (s *Sender) SendToToken(ctx context.Context, token string, n Notification, data map[string]string) error {
	if token == "" {
		return ErrNoToken
	}

	tok, err := s.tokens.Token()
	if err != nil {
		return fmt.Errorf("mint access token: %w", err)
	}

	body, err := json.Marshal(payload{Message: message{
		Token:        token,
		Notification: n,
		Data:         data,
	}})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/messages:send", s.baseURL, s.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	tok.SetAuthHeader(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send message: status %d: %s", resp.StatusCode, snippet)
	}

	s.logger.Debug("notification sent", zap.String("title", n.Title))
	return nil
}

// SendToUser resolves the user's registration token and delivers the message.
func (s *Sender) SendToUser(ctx context.Context, repo TokenRepository, email string, n Notification, data map[string]string) error {
	token, err := repo.UserToken(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup token for %s: %w", email, err)
	}
	if token == "" {
		return fmt.Errorf("lookup token for %s: %w", email, ErrNoToken)
	}
	return s.SendToToken(ctx, token, n, data)
}

// SendToGroup delivers the message to every member of the group. A failed
// delivery does not stop the remaining ones; the error aggregates all
// failures and the returned count reports successful sends.
func (s *Sender) SendToGroup(ctx context.Context, repo TokenRepository, groupID int, n Notification, data map[string]string) (int, error) {
	groups, ok := repo.(GroupTokenRepository)
	if !ok {
		return 0, ErrUnsupportedOperation
	}

	tokens, err := groups.GroupTokens(ctx, groupID)
	if err != nil {
		return 0, fmt.Errorf("lookup group %d tokens: %w", groupID, err)
	}

	var (
		sent int
		errs []error
	)
	for _, token := range tokens {
		if err := s.SendToToken(ctx, token, n, data); err != nil {
			s.logger.Warn("group delivery failed", zap.Int("group_id", groupID), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}
