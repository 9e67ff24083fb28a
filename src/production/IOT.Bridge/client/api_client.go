package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	api_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/api"
)

// ErrCircuitOpen is returned while the API service is considered down.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState represents the state of the circuit breaker
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

// CircuitBreaker implements circuit breaker pattern for resilience
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration
	state        CircuitBreakerState
	failureCount int
	lastFailTime time.Time
	mutex        sync.RWMutex
	now          func() time.Time
}

// APIError is a response the API service rejected. 4xx errors are final
// and never retried.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.Status, e.Message)
}

// Permanent reports whether sending the same request again cannot succeed.
func (e *APIError) Permanent() bool {
	return e.Status >= 400 && e.Status < 500
}

// APIClient posts input reports to the panel API service
type APIClient struct {
	baseURL        string
	httpClient     *http.Client
	apiSecret      string
	circuitBreaker *CircuitBreaker
	maxRetries     int
	retryDelay     time.Duration
}

// Option customises an APIClient.
type Option func(*APIClient)

// WithRetry sets how many times a transient failure is retried and the
// first backoff delay.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *APIClient) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
	}
}

// WithCircuitBreaker sets the failure threshold and the open period.
func WithCircuitBreaker(maxFailures int, resetTimeout time.Duration) Option {
	return func(c *APIClient) {
		c.circuitBreaker.maxFailures = maxFailures
		c.circuitBreaker.resetTimeout = resetTimeout
	}
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL, apiSecret string, timeout time.Duration, opts ...Option) *APIClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &APIClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		apiSecret: apiSecret,
		circuitBreaker: &CircuitBreaker{
			maxFailures:  5,
			resetTimeout: 30 * time.Second,
			state:        StateClosed,
			now:          time.Now,
		},
		maxRetries: 3,
		retryDelay: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReportResponse is the API answer to an input report
type ReportResponse struct {
	Control map[string]interface{} `json:"control,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Circuit breaker methods
func (cb *CircuitBreaker) canExecute() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if cb.now().Sub(cb.lastFailTime) > cb.resetTimeout {
			cb.state = StateHalfOpen
			return true
		}
		return false
	default:
		return false
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failureCount = 0
	cb.state = StateClosed
}

func (cb *CircuitBreaker) onFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failureCount++
	cb.lastFailTime = cb.now()

	if cb.state == StateHalfOpen || cb.failureCount >= cb.maxFailures {
		cb.state = StateOpen
	}
}

// retryWithBackoff executes a function with exponential backoff retry logic.
// Permanent API errors end the loop at once and count as a healthy service.
func (c *APIClient) retryWithBackoff(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if !c.circuitBreaker.canExecute() {
			return ErrCircuitOpen
		}

		err := operation()
		if err == nil {
			c.circuitBreaker.onSuccess()
			return nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Permanent() {
			c.circuitBreaker.onSuccess()
			return err
		}

		lastErr = err
		c.circuitBreaker.onFailure()

		// Don't retry on last attempt
		if attempt == c.maxRetries {
			break
		}

		delay := time.Duration(float64(c.retryDelay) * math.Pow(2, float64(attempt)))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// ReportInputs posts the input values of project and returns the project's
// control values.
func (c *APIClient) ReportInputs(ctx context.Context, project string, values map[string]string) (map[string]interface{}, error) {
	var control map[string]interface{}

	err := c.retryWithBackoff(ctx, func() error {
		req := api_models.ReportRequest{Project: project, Values: values}

		resp, err := c.makeRequest(ctx, http.MethodPost, "/internal/reports", req)
		if err != nil {
			return fmt.Errorf("failed to post report: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		var response ReportResponse
		if len(body) > 0 {
			if err := json.Unmarshal(body, &response); err != nil && resp.StatusCode == http.StatusOK {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}

		if resp.StatusCode != http.StatusOK {
			msg := response.Error
			if msg == "" {
				msg = string(body)
			}
			return &APIError{Status: resp.StatusCode, Message: msg}
		}

		control = response.Control
		if control == nil {
			control = map[string]interface{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return control, nil
}

// makeRequest makes an HTTP request to the API Service
func (c *APIClient) makeRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Add service-to-service authentication
	req.Header.Set("Authorization", "Bearer "+c.apiSecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "iot-bridge")

	return c.httpClient.Do(req)
}

// Health checks if the API Service is healthy
func (c *APIClient) Health(ctx context.Context) error {
	resp, err := c.makeRequest(ctx, http.MethodGet, "/health/live", nil)
	if err != nil {
		return fmt.Errorf("failed to check API health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API health check failed with status %d", resp.StatusCode)
	}

	return nil
}

// GetCircuitBreakerStatus returns the current circuit breaker status for monitoring
func (c *APIClient) GetCircuitBreakerStatus() map[string]interface{} {
	c.circuitBreaker.mutex.RLock()
	defer c.circuitBreaker.mutex.RUnlock()

	stateStr := "unknown"
	switch c.circuitBreaker.state {
	case StateClosed:
		stateStr = "closed"
	case StateOpen:
		stateStr = "open"
	case StateHalfOpen:
		stateStr = "half-open"
	}

	return map[string]interface{}{
		"state":          stateStr,
		"failure_count":  c.circuitBreaker.failureCount,
		"last_fail_time": c.circuitBreaker.lastFailTime,
		"max_failures":   c.circuitBreaker.maxFailures,
		"reset_timeout":  c.circuitBreaker.resetTimeout.String(),
	}
}
