package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/labverse/sentinel-core/internal/config"
	"github.com/labverse/sentinel-core/pkg/logger"
	"github.com/labverse/sentinel-core/pkg/models"
)

// BackendClient talks to the backup backend: status snapshots and run/stop
// triggers for the default method. Every call goes through a circuit breaker
// so a dead backend is not hammered by the 2s status poll.
type BackendClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *logger.Logger
}

// statusPayload mirrors the backend /api/status body
type statusPayload struct {
	Running    *bool                          `json:"running"`
	Logs       []string                       `json:"logs"`
	CPUHistory []models.UtilizationSample     `json:"cpu_history"`
	Methods    map[string]methodStatusPayload `json:"methods"`
}

type methodStatusPayload struct {
	Running    *bool   `json:"running"`
	Progress   *int    `json:"progress"`
	LastResult *string `json:"last_result"`
}

func NewBackendClient(cfg *config.Config) *BackendClient {
	log := logger.New("backend-client")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.Backend.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.Backend.BreakerMaxFailures)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Str("action", "breaker_state_change").
				Msg("Backend circuit breaker changed state")
		},
	})

	return &BackendClient{
		baseURL: strings.TrimRight(cfg.Backend.BaseURL, "/"),
		client: &http.Client{
			Timeout: time.Duration(cfg.Backend.Timeout) * time.Second,
		},
		breaker: breaker,
		logger:  log,
	}
}

// PullStatus fetches one status snapshot
func (c *BackendClient) PullStatus(ctx context.Context) (*models.StatusSnapshot, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.getStatus(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.StatusSnapshot), nil
}

// RunBackup asks the backend to start the default method
func (c *BackendClient) RunBackup(ctx context.Context) error {
	return c.post(ctx, "/api/run")
}

// StopBackup asks the backend to cancel the default method
func (c *BackendClient) StopBackup(ctx context.Context) error {
	return c.post(ctx, "/api/stop")
}

func (c *BackendClient) getStatus(ctx context.Context) (*models.StatusSnapshot, error) {
	url := fmt.Sprintf("%s/api/status", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var payload statusPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return payload.snapshot(), nil
}

func (c *BackendClient) post(ctx context.Context, path string) error {
	url := c.baseURL + path
	start := time.Now()

	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to make request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
		}
		return resp.StatusCode, nil
	})

	status := 0
	if err == nil {
		status = http.StatusNoContent
	}
	c.logger.LogAPICall(http.MethodPost, url, status, time.Since(start), err)
	return err
}

func (p statusPayload) snapshot() *models.StatusSnapshot {
	snap := &models.StatusSnapshot{
		Logs:               p.Logs,
		Running:            p.Running,
		UtilizationHistory: p.CPUHistory,
	}

	if len(p.Methods) > 0 {
		snap.Methods = make(map[models.MethodID]models.MethodStatus, len(p.Methods))
		for key, ms := range p.Methods {
			id, err := models.ParseMethodID(key)
			if err != nil {
				continue
			}
			snap.Methods[id] = models.MethodStatus{
				Running:    ms.Running,
				Progress:   ms.Progress,
				LastResult: ms.LastResult,
			}
		}
	}

	return snap
}

// IsBreakerOpen reports whether the backend breaker is rejecting calls
func (c *BackendClient) IsBreakerOpen() bool {
	return c.breaker.State() == gobreaker.StateOpen
}

// IsUnavailable reports whether err came from an open or saturated breaker
func IsUnavailable(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
