package jagriti

import (
	"context"
	"fmt"
	"sync/atomic"

	"jagriti-backend/lib/telemetry"

	"golang.org/x/sync/errgroup"
)

// Portal wires a Client, an IdentifierCache and a Searcher from one Config.
type Portal struct {
	Client   *Client
	Cache    *IdentifierCache
	Searcher *Searcher

	tel telemetry.API
}

func New(cfg Config, opts ClientOptions) (*Portal, error) {
	client, err := NewClient(cfg.Transport, opts)
	if err != nil {
		return nil, fmt.Errorf("create portal client: %w", err)
	}
	cache := NewIdentifierCache(client, cfg.Endpoints, opts.Telemetry)
	searcher := NewSearcher(cache, client, cfg.Endpoints, client.BaseURL(), opts.Telemetry)

	return &Portal{
		Client:   client,
		Cache:    cache,
		Searcher: searcher,
		tel:      telemetry.NewScopedAPI("jagriti", opts.Telemetry),
	}, nil
}

func (p *Portal) States(ctx context.Context) ([]State, error) {
	return p.Cache.ListStates(ctx)
}

// Commissions lists the commissions of a state given by id or by name.
func (p *Portal) Commissions(ctx context.Context, stateRef string) (State, []Commission, error) {
	state, err := p.Cache.LookupState(ctx, stateRef)
	if err != nil {
		return State{}, nil, err
	}
	commissions, err := p.Cache.ListCommissions(ctx, state.ID)
	if err != nil {
		return State{}, nil, err
	}
	return state, commissions, nil
}

func (p *Portal) Search(ctx context.Context, q Query) (SearchResult, error) {
	return p.Searcher.Search(ctx, q)
}

func (p *Portal) ClearCache() {
	p.Cache.Clear()
}

type WarmStats struct {
	States      int `json:"states"`
	Commissions int `json:"commissions"`
	Failed      int `json:"failed"`
}

// Warm loads the state list and the commissions of every state, at most
// concurrency states at a time. it stops on the first captcha, other
// per-state failures are counted and reported.
func (p *Portal) Warm(ctx context.Context, concurrency int) (WarmStats, error) {
	ctx, span := tracer.Start(ctx, "portal:Warm")
	defer span.End()

	states, err := p.Cache.ListStates(ctx)
	if err != nil {
		return WarmStats{}, err
	}
	if concurrency < 1 {
		concurrency = 1
	}

	var commissions, failed atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for _, state := range states {
		group.Go(func() error {
			list, err := p.Cache.ListCommissions(groupCtx, state.ID)
			if IsCaptcha(err) {
				return err
			}
			if err != nil {
				failed.Add(1)
				p.tel.ReportWarning(report_portal_warm, state.Name, err)
				return nil
			}
			commissions.Add(int64(len(list)))
			return nil
		})
	}
	err = group.Wait()

	stats := WarmStats{
		States:      len(states),
		Commissions: int(commissions.Load()),
		Failed:      int(failed.Load()),
	}
	p.tel.ReportDebug(report_portal_warm, stats.States, stats.Commissions, stats.Failed)
	return stats, err
}
