package notifications

import (
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/ratelimit"
)

type RateLimiterConfig struct {
	SendsPerSecond uint `envconfig:"NEPHRAWN_NOTIFY_SENDS_PER_SECOND_LIMIT" default:"10"`
}

// RateLimiter paces outbound sends so an alert storm cannot flood the mail
// gateway. It is independent of the per-alert and per-recipient cooldowns.
type RateLimiter struct {
	rl ratelimit.Limiter
}

func NewRateLimiter() (*RateLimiter, error) {
	cfg := RateLimiterConfig{}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	return &RateLimiter{
		rl: ratelimit.New(int(cfg.SendsPerSecond)),
	}, nil
}

// WaitOrContinue blocks if the rate limit is exceeded
func (r *RateLimiter) WaitOrContinue() {
	r.rl.Take()
}
