package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/blockpreventer/bridge/pkg/circuitbreaker"
	"github.com/blockpreventer/bridge/pkg/logger"
	"github.com/blockpreventer/bridge/pkg/security"
)

// Config for the HTTP provider client.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
}

// httpSender talks to the provider's REST API. A process-wide limiter keeps
// the engine under the provider's global request ceiling regardless of how
// many profiles are in rotation; per-profile pacing is the cooldown's job.
type httpSender struct {
	cfg       Config
	client    *http.Client
	limiter   *rate.Limiter
	cb        *circuitbreaker.CircuitBreaker
	encryptor security.Encryptor
	logger    *logger.Logger
}

func NewHTTPSender(cfg Config, encryptor security.Encryptor, log *logger.Logger) Sender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}

	return &httpSender{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "provider-api",
			MaxFailures: 10,
			Timeout:     time.Minute,
		}),
		encryptor: encryptor,
		logger:    log.WithComponent("sender"),
	}
}

type sendPayload struct {
	Recipient string `json:"recipient"`
	Body      string `json:"body"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

func (s *httpSender) Send(ctx context.Context, req *Request) (*Result, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	uuid, err := s.encryptor.DecryptString(req.Profile.ProviderUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt provider uuid: %w", err)
	}
	token, err := s.encryptor.DecryptString(req.Profile.ProviderToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt provider token: %w", err)
	}

	body, err := json.Marshal(sendPayload{
		Recipient: req.Recipient,
		Body:      req.Content,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send payload: %w", err)
	}

	url := fmt.Sprintf("%s/instances/%s/messages", s.cfg.BaseURL, uuid)

	var result *Result
	start := time.Now()
	err = s.cb.Execute(func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+token)

		resp, err := s.client.Do(httpReq)
		if err != nil {
			return fmt.Errorf("provider request failed: %w", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("failed to read provider response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(raw))
		}

		var parsed sendResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return fmt.Errorf("failed to decode provider response: %w", err)
		}
		if parsed.Error != "" {
			return fmt.Errorf("provider rejected send: %s", parsed.Error)
		}

		result = &Result{
			ProviderMessageID: parsed.MessageID,
			ResponseTime:      time.Since(start),
		}
		return nil
	})
	if err != nil {
		s.logger.Debug("send failed", "profile_id", req.Profile.ID.String(), "error", err.Error())
		return nil, err
	}
	return result, nil
}
