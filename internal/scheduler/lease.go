package scheduler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/parkway/internal/config"
)

const sweepLeaseKey = "parkway:scheduler:sweep"

const leaseReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// SweepLease is a redis-backed lease so only one scheduler instance runs
// the expiry sweep at a time. A nil lease means single-instance mode and
// every TryAcquire succeeds.
type SweepLease struct {
	client *redis.Client
	script *redis.Script
}

// NewSweepLease returns nil when no redis address is configured.
func NewSweepLease(cfg config.Config) *SweepLease {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
	})
	return &SweepLease{
		client: client,
		script: redis.NewScript(leaseReleaseScript),
	}
}

func (l *SweepLease) TryAcquire(ctx context.Context, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", true, nil
	}
	if ttl <= 0 {
		return "", false, errors.New("lease ttl must be positive")
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, sweepLeaseKey, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release deletes the lease only while our token still holds it, so an
// expired lease taken over by another instance is never clobbered.
func (l *SweepLease) Release(ctx context.Context, token string) error {
	if l == nil || l.client == nil || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{sweepLeaseKey}, token).Err()
}
