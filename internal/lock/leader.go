package lock

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Leader runs fn only while this process holds the lease on key. fn's
// context is cancelled as soon as the lease cannot be renewed. Leader
// returns when ctx ends.
func (l *Locker) Leader(ctx context.Context, log *zap.Logger, key string, ttl time.Duration, fn func(context.Context)) {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	retry := ttl / 3

	for {
		token, ok, err := l.TryLock(ctx, key, ttl)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			log.Warn("leader lock attempt failed", zap.String("key", key), zap.Error(err))
		case ok:
			log.Info("leader lock acquired", zap.String("key", key))
			l.lead(ctx, log, key, token, ttl, fn)
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			if err := l.Release(releaseCtx, key, token); err != nil {
				log.Warn("leader lock release failed", zap.String("key", key), zap.Error(err))
			}
			cancel()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}

func (l *Locker) lead(ctx context.Context, log *zap.Logger, key, token string, ttl time.Duration, fn func(context.Context)) {
	leadCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(leadCtx)
	}()

	ticker := time.NewTicker(ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := l.Renew(leadCtx, key, token, ttl); err != nil {
				if errors.Is(err, ErrLost) {
					log.Warn("leader lock lost", zap.String("key", key))
				} else {
					log.Warn("leader lock renew failed", zap.String("key", key), zap.Error(err))
				}
				cancel()
				<-done
				return
			}
		}
	}
}
