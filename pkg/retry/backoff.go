package retry

import (
	"context"
	"math/rand"
	"time"

	errs "imageharvester/pkg/errors"
)

// Schedule gives the pause after a failed attempt. attempt starts at 1;
// zero or less means no attempt has failed yet.
type Schedule interface {
	Delay(attempt int) time.Duration
}

// ExponentialBackoff grows the pause by Factor after every failed attempt
// up to Cap. Jitter spreads each pause by up to +/- that fraction.
type ExponentialBackoff struct {
	Base   time.Duration
	Cap    time.Duration
	Factor float64
	Jitter float64

	// rand returns values in [0,1); nil uses math/rand
	rand func() float64
}

// SearchBackoff is the pause between search provider attempts:
// 1s, 2s, 4s, ... capped at 30s with 10% jitter
func SearchBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		Base:   time.Second,
		Cap:    30 * time.Second,
		Factor: 2,
		Jitter: 0.1,
	}
}

func (b *ExponentialBackoff) Delay(attempt int) time.Duration {
	if attempt <= 0 || b.Base <= 0 {
		return 0
	}

	d := float64(b.Base)
	for i := 1; i < attempt && (b.Cap <= 0 || d < float64(b.Cap)); i++ {
		d *= b.Factor
	}
	if b.Cap > 0 && d > float64(b.Cap) {
		d = float64(b.Cap)
	}

	if b.Jitter > 0 {
		r := rand.Float64
		if b.rand != nil {
			r = b.rand
		}
		d += d * b.Jitter * (2*r() - 1)
	}
	return max(time.Duration(d), 0)
}

// ConstantBackoff pauses the same amount after every failed attempt.
// Downloads use it with the configured retry delay.
type ConstantBackoff struct {
	Pause time.Duration
}

func (b *ConstantBackoff) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return b.Pause
}

// Sleep pauses for d. It returns a canceled error as soon as ctx is done,
// including when d is zero and ctx is already done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if err := ctx.Err(); err != nil {
			return errs.NewCanceled(err)
		}
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return errs.NewCanceled(ctx.Err())
	}
}
