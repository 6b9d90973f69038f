package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/model"
)

const (
	requestTimeout = 15 * time.Second
	maxAttempts    = 3
	baseBackoff    = 2 * time.Second
)

// CredentialSource resolves a tenant's secret material for one provider.
// Adapters never cache credentials themselves; the source decides.
type CredentialSource interface {
	Credentials(ctx context.Context, tenantID, provider string) (model.ProviderCredentials, error)
}

// httpClient wraps net/http with bounded retries. Provider APIs flake; a
// request that keeps failing after the retry budget surfaces as
// ErrProviderUnavailable so callers can fall back or tell the user.
type httpClient struct {
	c   *http.Client
	log *zerolog.Logger
}

// NewHTTPClient builds the shared retrying client all adapters use.
func NewHTTPClient(logger *zerolog.Logger) *httpClient {
	l := logger.With().Str("component", "payment-http").Logger()
	return &httpClient{
		c:   &http.Client{Timeout: requestTimeout},
		log: &l,
	}
}

// postJSON sends the payload and decodes the JSON response into out.
// Network errors and 5xx responses are retried with linear backoff;
// a 4xx is returned to the caller immediately.
func (h *httpClient) postJSON(ctx context.Context, url string, headers map[string]string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(baseBackoff * time.Duration(attempt-1)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := h.c.Do(req)
		if err != nil {
			lastErr = err
			h.log.Warn().Err(err).Str("url", url).Int("attempt", attempt).Msg("provider request failed")
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("provider returned %d", resp.StatusCode)
			h.log.Warn().Int("status", resp.StatusCode).Str("url", url).Int("attempt", attempt).Msg("provider server error")
			continue
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("provider rejected request: %d: %s", resp.StatusCode, string(respBody))
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}

	h.log.Error().Err(lastErr).Str("url", url).Msg("provider unreachable after retries")
	return domain.ErrProviderUnavailable
}
