package crawler

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

type timerPauseController struct{}

// Pause sleeps for delay or until ctx ends, whichever comes first.
func (p *timerPauseController) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// politenessDelay picks a uniform delay in [minDelay, maxDelay].
func politenessDelay(minDelay, maxDelay time.Duration) time.Duration {
	if maxDelay <= minDelay {
		return max(minDelay, 0)
	}
	span := int64(maxDelay - minDelay)
	n, err := rand.Int(rand.Reader, big.NewInt(span+1))
	if err != nil {
		return minDelay
	}
	return minDelay + time.Duration(n.Int64())
}
