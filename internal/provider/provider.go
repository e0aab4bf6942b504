// Package provider defines the common contract the four providers implement
// and the registry the CLI polls them through.
package provider

import (
	"context"
	"sort"

	"github.com/quotadash/quotadash/internal/config"
	"github.com/quotadash/quotadash/internal/fetch"
	"github.com/quotadash/quotadash/internal/models"
)

type Metadata struct {
	ID           string
	Name         string
	Description  string
	DashboardURL string
	// CLIName is the companion command-line tool, when one exists.
	CLIName string
}

// Provider is the capability surface each provider exposes: a usage fetch
// that always yields a displayable record, and an externally triggerable
// re-authentication launch.
type Provider interface {
	Meta() Metadata
	Fetch(ctx context.Context) models.SubscriptionInfo
	AutoLogin(ctx context.Context) bool
}

var registry = map[string]Provider{}

func Register(p Provider) {
	registry[p.Meta().ID] = p
}

func Get(id string) (Provider, bool) {
	p, ok := registry[id]
	return p, ok
}

func ListIDs() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EnabledIDs returns registered provider IDs enabled in the given config,
// sorted.
func EnabledIDs(cfg config.Config) []string {
	var ids []string
	for id := range registry {
		if cfg.IsProviderEnabled(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// runner adapts a Provider to fetch.Fetcher, layering manual overrides onto
// failed fetches and enforcing the never-empty display rule.
type runner struct {
	p   Provider
	cfg config.Config
}

func (r runner) ID() string { return r.p.Meta().ID }

func (r runner) Fetch(ctx context.Context) models.SubscriptionInfo {
	info := r.p.Fetch(ctx)
	if info.Name == "" {
		info.Name = r.p.Meta().Name
	}
	if info.DashboardURL == "" {
		info.DashboardURL = r.p.Meta().DashboardURL
	}

	// Manual overrides cover only what a failed fetch left blank;
	// live data always wins.
	if info.Error != "" {
		if o, ok := r.cfg.OverrideFor(r.p.Meta().ID); ok {
			info.ApplyFallback(o.UsageText, o.ResetTime, o.LimitNote)
		}
	}

	info.EnsureDisplayable()
	return info
}

// Fetchers returns the enabled providers wrapped for the orchestrator.
func Fetchers(cfg config.Config) []fetch.Fetcher {
	var fetchers []fetch.Fetcher
	for _, id := range EnabledIDs(cfg) {
		p := registry[id]
		fetchers = append(fetchers, runner{p: p, cfg: cfg})
	}
	return fetchers
}
