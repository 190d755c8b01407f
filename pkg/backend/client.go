package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/tradepulse/riskcore/pkg/models"
)

// Client is the boundary to the external execution backend. The backend
// owns order execution and position storage; this side only reads
// snapshots and forwards validated commands.
type Client interface {
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)
	ListPositions(ctx context.Context, accountID string) ([]*models.Position, error)
	SubmitCommand(ctx context.Context, cmd *models.PositionCommand) (*models.CommandResult, error)
}

type HTTPClient struct {
	baseURL    string
	auth       Authenticator
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
}

// NewHTTPClient builds a backend client. requestsPerSec caps the polling
// rate so a tight evaluation loop never hammers the backend.
func NewHTTPClient(baseURL string, auth Authenticator, requestsPerSec float64, logger *logrus.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		auth:       auth,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSec), 5),
		logger:     logger,
	}
}

func (c *HTTPClient) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	var dto accountDTO
	path := fmt.Sprintf("/v1/accounts/%s", accountID)
	if err := c.get(ctx, path, &dto); err != nil {
		return nil, err
	}
	return parseAccount(&dto)
}

func (c *HTTPClient) ListPositions(ctx context.Context, accountID string) ([]*models.Position, error) {
	var dtos []positionDTO
	path := fmt.Sprintf("/v1/accounts/%s/positions", accountID)
	if err := c.get(ctx, path, &dtos); err != nil {
		return nil, err
	}

	positions := make([]*models.Position, 0, len(dtos))
	for i := range dtos {
		pos, err := parsePosition(&dtos[i])
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

func (c *HTTPClient) SubmitCommand(ctx context.Context, cmd *models.PositionCommand) (*models.CommandResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"type":          cmd.Type,
		"positionId":    cmd.PositionID,
		"symbol":        cmd.Symbol,
		"targetPercent": cmd.TargetPercent,
	})
	if err != nil {
		return nil, err
	}

	var result models.CommandResult
	if err := c.do(ctx, http.MethodPost, "/v1/commands", body, &result); err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"type":        cmd.Type,
		"position_id": cmd.PositionID,
		"command_id":  result.CommandID,
		"status":      result.Status,
	}).Info("Command submitted to execution backend")

	return &result, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if c.auth != nil {
		if err := c.auth.AddAuthHeaders(req, method, path, string(body)); err != nil {
			return fmt.Errorf("failed to sign request: %w", err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("backend returned %d for %s %s: %s", resp.StatusCode, method, path, payload)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode backend response: %w", err)
	}
	return nil
}
