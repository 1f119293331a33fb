package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"sendqueue/internal/constants"
	apperrors "sendqueue/internal/errors"
	"sendqueue/internal/models"
	"sendqueue/internal/retry"
)

const sendEndpoint = "/api/sendMessage"

// Client delivers queued payloads to the chat backend over HTTP.
type Client struct {
	baseURL    string
	authToken  string
	client     *http.Client
	retryCount int
	logger     *logrus.Logger
}

func NewClient(baseURL string, opts ClientOptions, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	timeout := opts.TimeoutSec
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeoutSec
	}
	retryCount := opts.SendRetryCount
	if retryCount <= 0 {
		retryCount = constants.DefaultSendRetryCount
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		authToken:  opts.AuthToken,
		client:     &http.Client{Timeout: time.Duration(timeout) * time.Second},
		retryCount: retryCount,
		logger:     logger,
	}
}

// Deliver posts a single queued payload to the backend. Transient backend
// errors are retried in-process up to the configured send retry count; the
// caller owns the per-message retry budget across sync runs.
func (c *Client) Deliver(ctx context.Context, chatID string, payload json.RawMessage) (*models.DeliveryResult, error) {
	var result *SendMessageResponse

	backoffConfig := retry.DefaultBackoffConfig()
	backoffConfig.MaxAttempts = c.retryCount
	backoff := retry.NewBackoff(backoffConfig)

	err := backoff.RetryWithPredicate(ctx, func() error {
		resp, err := c.send(ctx, chatID, payload)
		if err != nil {
			return err
		}
		result = resp
		return nil
	}, apperrors.IsRetryable)
	if err != nil {
		return nil, err
	}

	return &models.DeliveryResult{
		Success:     true,
		DeliveredID: result.MessageID,
	}, nil
}

// HealthCheck verifies the backend is reachable and accepting requests.
func (c *Client) HealthCheck(ctx context.Context, healthPath string) error {
	if healthPath == "" {
		healthPath = constants.DefaultConnectivityHealthPath
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.WrapRetryable(err, apperrors.ErrCodeBackendAPI, "backend health check failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return apperrors.New(apperrors.ErrCodeBackendAPI, fmt.Sprintf("backend health check returned status %d", resp.StatusCode))
	}
	return nil
}

func (c *Client) send(ctx context.Context, chatID string, payload json.RawMessage) (*SendMessageResponse, error) {
	jsonData, err := json.Marshal(SendMessageRequest{
		ChatID:  chatID,
		Message: payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+sendEndpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// Connection-level failures carry status 0 and stay retryable.
		return nil, apperrors.NewDeliveryError(chatID, 0, err)
	}
	defer resp.Body.Close()

	var result SendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperrors.NewDeliveryError(chatID, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"error":  result.Error,
		}).Debug("Backend rejected send request")
		return nil, apperrors.NewDeliveryError(chatID, resp.StatusCode, fmt.Errorf("backend returned status %d: %s", resp.StatusCode, result.Error))
	}

	return &result, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}
