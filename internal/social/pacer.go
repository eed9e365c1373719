package social

import (
	"context"
	"time"
)

// pacer spaces out sequential pipeline items and backs off after provider
// rate limiting. The sleep function is injectable so tests run instantly.
type pacer struct {
	delay    time.Duration
	cooldown time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

func newPacer(delay, cooldown time.Duration) *pacer {
	return &pacer{delay: delay, cooldown: cooldown, sleep: sleepCtx}
}

// Wait blocks for the inter-item delay.
func (p *pacer) Wait(ctx context.Context) error {
	return p.sleep(ctx, p.delay)
}

// CoolOff blocks for the rate-limit cooldown.
func (p *pacer) CoolOff(ctx context.Context) error {
	return p.sleep(ctx, p.cooldown)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
