package session

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/soramane/tidecast/internal/api"
	"github.com/soramane/tidecast/internal/domain/entity"
)

// Prefetcher bulk-fetches album metadata with a bounded worker pool. One
// worker hitting a rate limit aborts the whole batch by draining the shared
// queue so its siblings run out of work.
type Prefetcher struct {
	s       *Session
	workers int
	limiter *rate.Limiter
}

// NewPrefetcher creates a prefetcher over the session.
func NewPrefetcher(s *Session, workers int, requestsPerSecond float64) *Prefetcher {
	if workers <= 0 {
		workers = 4
	}
	return &Prefetcher{
		s:       s,
		workers: workers,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// Albums fetches metadata for the given album IDs. The result holds every
// album fetched before an abort or context cancellation; missing entries are
// simply absent, never nil placeholders.
func (p *Prefetcher) Albums(ctx context.Context, ids []string) map[string]*entity.Album {
	queue := make(chan string, len(ids))
	for _, id := range ids {
		queue <- id
	}
	close(queue)

	var aborted atomic.Bool
	results := make(map[string]*entity.Album, len(ids))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range queue {
				if aborted.Load() || ctx.Err() != nil {
					continue
				}
				if err := p.limiter.Wait(ctx); err != nil {
					return
				}

				album, err := p.s.GetAlbum(ctx, id)
				if err != nil {
					if isRateLimited(err) {
						zlog.Warn().Str("album", id).Msg("rate limited, aborting prefetch batch")
						aborted.Store(true)
						// Drain the queue so sibling workers stop pulling work.
						for range queue {
						}
						return
					}
					zlog.Debug().Err(err).Str("album", id).Msg("album prefetch failed")
					continue
				}

				mu.Lock()
				results[id] = album
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return results
}

func isRateLimited(err error) bool {
	var herr *api.HTTPError
	return errors.As(err, &herr) && herr.Status == http.StatusTooManyRequests
}
