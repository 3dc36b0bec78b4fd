package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// watch subscribes to channel and re-reads the collection on every message.
// Payloads are not trusted: a notification only means "something changed".
// The returned channel holds at most one pending value; an unread value is
// replaced by a newer one.
func watch[T any](
	ctx context.Context,
	client *redis.Client,
	channel string,
	logger *zap.SugaredLogger,
	load func(context.Context) (T, bool, error),
) (<-chan T, func(), error) {
	pubsub := client.Subscribe(ctx, channel)
	// wait for the subscription before reading, so no change is missed in between
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	initial, ok, err := load(ctx)
	if err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan T, 1)
	if ok {
		out <- initial
	}

	subCtx, cancelSub := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(out)
		defer pubsub.Close()
		messages := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, open := <-messages:
				if !open {
					return
				}
				value, ok, err := load(subCtx)
				if err != nil {
					if subCtx.Err() == nil {
						logger.Warnw("reload after notification failed", "channel", channel, "error", err)
					}
					continue
				}
				if !ok {
					continue
				}
				select {
				case out <- value:
				default:
					select {
					case <-out:
					default:
					}
					out <- value
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			cancelSub()
			<-done
		})
	}
	return out, cancel, nil
}
