package fetch

import (
	"context"
	"fmt"
	"sync"

	"github.com/quotadash/quotadash/internal/models"
)

// Fetcher is the minimal provider surface the orchestrator needs.
type Fetcher interface {
	ID() string
	Fetch(ctx context.Context) models.SubscriptionInfo
}

// FetchAll fetches every provider concurrently and returns a record per
// provider ID. Providers are fully independent: a failure or panic in one
// provider's chain never blocks or alters another's result. The
// onComplete callback, when non-nil, fires as each provider finishes.
func FetchAll(ctx context.Context, fetchers []Fetcher, maxConcurrent int, onComplete func(string, models.SubscriptionInfo)) map[string]models.SubscriptionInfo {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	results := make(map[string]models.SubscriptionInfo, len(fetchers))
	var mu sync.Mutex
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for _, f := range fetchers {
		wg.Add(1)
		go func(f Fetcher) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			info := fetchOne(ctx, f)

			mu.Lock()
			results[f.ID()] = info
			mu.Unlock()

			if onComplete != nil {
				onComplete(f.ID(), info)
			}
		}(f)
	}

	wg.Wait()
	return results
}

// fetchOne runs a single provider fetch with panic isolation and enforces
// the never-empty display invariant on whatever comes back.
func fetchOne(ctx context.Context, f Fetcher) (info models.SubscriptionInfo) {
	defer func() {
		if r := recover(); r != nil {
			info = models.SubscriptionInfo{
				Name:  f.ID(),
				Error: fmt.Sprintf("internal error: %v", r),
			}
			info.EnsureDisplayable()
		}
	}()

	info = f.Fetch(ctx)
	if info.Name == "" {
		info.Name = f.ID()
	}
	info.EnsureDisplayable()
	return info
}
