package reservationsvc

import (
	"context"
	"log/slog"
	"time"
)

type Repo interface {
	CancelExpired(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper cancels pending reservations past their expiry. Each sweep is a
// single conditional update, so overlapping runs are harmless.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
	Run(ctx context.Context, every time.Duration)
}

type sweeper struct {
	r   Repo
	log *slog.Logger
}

func New(r Repo, log *slog.Logger) Sweeper { return &sweeper{r: r, log: log} }

func (s *sweeper) Sweep(ctx context.Context) (int64, error) {
	return s.r.CancelExpired(ctx, time.Now().UTC())
}

func (s *sweeper) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.log.Error("reservation sweep failed", "err", err)
				continue
			}
			if n > 0 {
				s.log.Info("expired reservations cancelled", "count", n)
			}
		}
	}
}
