// File: internal/infra/redis/settings_cache.go
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"telegram-vpn-billing/internal/domain/model"
	"telegram-vpn-billing/internal/domain/ports/repository"
)

var _ repository.TenantSettingsRepository = (*SettingsCache)(nil)

// SettingsCache fronts the Postgres settings repo with a short-TTL cache.
// Settings are read on every quote and every webhook, so they are the
// hottest read path in the system; staleness up to the TTL is acceptable.
type SettingsCache struct {
	client *Client
	inner  repository.TenantSettingsRepository
	ttl    time.Duration
	log    *zerolog.Logger
}

func NewSettingsCache(client *Client, inner repository.TenantSettingsRepository, ttl time.Duration, logger *zerolog.Logger) *SettingsCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	l := logger.With().Str("component", "settings-cache").Logger()
	return &SettingsCache{client: client, inner: inner, ttl: ttl, log: &l}
}

func settingsKey(tenantID string) string { return "tenant_settings:" + tenantID }

func (c *SettingsCache) Get(ctx context.Context, tenantID string) (*model.TenantSettings, error) {
	raw, err := c.client.Get(ctx, settingsKey(tenantID))
	if err == nil {
		s := &model.TenantSettings{}
		if err := json.Unmarshal([]byte(raw), s); err == nil {
			return s, nil
		}
		// Corrupt cache entry, fall through to the source of truth.
		_ = c.client.Del(ctx, settingsKey(tenantID))
	} else if !IsNil(err) {
		c.log.Warn().Err(err).Str("tenant_id", tenantID).Msg("settings cache read failed")
	}

	s, err := c.inner.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(s); err == nil {
		if err := c.client.Set(ctx, settingsKey(tenantID), data, c.ttl); err != nil {
			c.log.Warn().Err(err).Str("tenant_id", tenantID).Msg("settings cache write failed")
		}
	}
	return s, nil
}

// Invalidate drops a tenant's cached settings, used after admin edits.
func (c *SettingsCache) Invalidate(ctx context.Context, tenantID string) error {
	return c.client.Del(ctx, settingsKey(tenantID))
}
