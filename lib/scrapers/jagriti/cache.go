package jagriti

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"jagriti-backend/lib/telemetry"
	"jagriti-backend/lib/textutil"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type State struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Commission struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	StateID string `json:"state_id"`
}

const maxSuggestions = 3

type stateIndex struct {
	ordered []State
	byKey   map[string]State
	byID    map[string]State
}

type commissionIndex struct {
	ordered []Commission
	byKey   map[string]Commission
}

// IdentifierCache maps human readable state and commission names onto the
// portal's internal ids. lists are fetched once, on first use, and kept for
// the life of the process or until Clear.
type IdentifierCache struct {
	transport Transport
	endpoints Endpoints
	tel       telemetry.API

	mu          sync.RWMutex
	generation  uint64
	states      *stateIndex
	commissions map[string]*commissionIndex

	stateFlights      flightGroup[*stateIndex]
	commissionFlights flightGroup[*commissionIndex]
}

func NewIdentifierCache(transport Transport, endpoints Endpoints, tel telemetry.API) *IdentifierCache {
	return &IdentifierCache{
		transport:   transport,
		endpoints:   endpoints.withFallbacks(),
		tel:         telemetry.NewScopedAPI("jagriti", tel),
		commissions: map[string]*commissionIndex{},
	}
}

// ListStates returns every state the portal offers, in portal order.
func (c *IdentifierCache) ListStates(ctx context.Context) ([]State, error) {
	idx, err := c.loadStates(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]State, len(idx.ordered))
	copy(out, idx.ordered)
	return out, nil
}

// ResolveState finds a state by name, compared after whitespace
// normalization and case folding.
func (c *IdentifierCache) ResolveState(ctx context.Context, name string) (State, error) {
	key := textutil.CanonicalKey(name)
	if key == "" {
		return State{}, validationError("state name is empty")
	}
	idx, err := c.loadStates(ctx)
	if err != nil {
		return State{}, err
	}
	state, ok := idx.byKey[key]
	if !ok {
		return State{}, notFound("state", name, stateNames(idx.ordered))
	}
	return state, nil
}

// LookupState accepts either a state id or a state name.
func (c *IdentifierCache) LookupState(ctx context.Context, ref string) (State, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return State{}, validationError("state is empty")
	}
	idx, err := c.loadStates(ctx)
	if err != nil {
		return State{}, err
	}
	if state, ok := idx.byID[ref]; ok {
		return state, nil
	}
	if state, ok := idx.byKey[textutil.CanonicalKey(ref)]; ok {
		return state, nil
	}
	return State{}, notFound("state", ref, stateNames(idx.ordered))
}

// ListCommissions returns the district commissions of a state id.
func (c *IdentifierCache) ListCommissions(ctx context.Context, stateID string) ([]Commission, error) {
	idx, err := c.loadCommissions(ctx, stateID)
	if err != nil {
		return nil, err
	}
	out := make([]Commission, len(idx.ordered))
	copy(out, idx.ordered)
	return out, nil
}

// ResolveCommission finds a commission of the given state by name.
func (c *IdentifierCache) ResolveCommission(ctx context.Context, stateID, name string) (Commission, error) {
	key := textutil.CanonicalKey(name)
	if key == "" {
		return Commission{}, validationError("commission name is empty")
	}
	idx, err := c.loadCommissions(ctx, stateID)
	if err != nil {
		return Commission{}, err
	}
	commission, ok := idx.byKey[key]
	if !ok {
		return Commission{}, notFound("commission", name, commissionNames(idx.ordered))
	}
	return commission, nil
}

// Clear drops everything cached, loads already running finish but their
// results are not kept.
func (c *IdentifierCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.states = nil
	c.commissions = map[string]*commissionIndex{}
}

func (c *IdentifierCache) loadStates(ctx context.Context) (*stateIndex, error) {
	c.mu.RLock()
	idx := c.states
	generation := c.generation
	c.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}

	key := fmt.Sprintf("states@%d", generation)
	return c.stateFlights.Do(ctx, key, func(ctx context.Context) (*stateIndex, error) {
		idx, err := c.fetchStates(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.generation == generation {
			c.states = idx
		}
		c.mu.Unlock()
		return idx, nil
	})
}

func (c *IdentifierCache) fetchStates(ctx context.Context) (*stateIndex, error) {
	ctx, span := tracer.Start(ctx, "identifierCache:fetchStates")
	defer span.End()

	raw, err := c.transport.Fetch(ctx, Request{
		Method: http.MethodGet,
		URL:    c.endpoints.StatesPath,
		Query:  toValues(c.endpoints.StatesQuery, nil),
	})
	if err != nil {
		c.tel.ReportBroken(report_identifier_cache_load, fmt.Errorf("fetch states: %w", err))
		return nil, err
	}
	options, err := parseOptions(raw, c.endpoints.StateSelectors)
	if err != nil {
		c.tel.ReportBroken(report_identifier_cache_load, fmt.Errorf("parse states: %w", err))
		return nil, err
	}
	if len(options) == 0 {
		err := parseError(raw.Body, "portal returned no states")
		c.tel.ReportBroken(report_identifier_cache_load, err)
		return nil, err
	}

	idx := &stateIndex{
		byKey: map[string]State{},
		byID:  map[string]State{},
	}
	for _, o := range options {
		key := textutil.CanonicalKey(o.name)
		if _, exists := idx.byKey[key]; exists {
			c.tel.ReportWarning(report_identifier_cache_load, "duplicate state name", key, o.id)
			continue
		}
		state := State{ID: o.id, Name: key}
		idx.ordered = append(idx.ordered, state)
		idx.byKey[key] = state
		if _, exists := idx.byID[o.id]; !exists {
			idx.byID[o.id] = state
		}
	}

	cacheFetchCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("list", "states")))
	c.tel.ReportCount(report_identifier_cache_states, int64(len(idx.ordered)))
	c.tel.ReportDebug(report_identifier_cache_load, "states", describeOptions(options))
	return idx, nil
}

func (c *IdentifierCache) loadCommissions(ctx context.Context, stateID string) (*commissionIndex, error) {
	stateID = strings.TrimSpace(stateID)
	if stateID == "" {
		return nil, validationError("state id is empty")
	}

	c.mu.RLock()
	idx := c.commissions[stateID]
	generation := c.generation
	c.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}

	states, err := c.loadStates(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := states.byID[stateID]; !ok {
		return nil, &Error{
			Code:    CodeNotFound,
			Message: fmt.Sprintf("state id %q not found", stateID),
			Name:    stateID,
		}
	}

	key := fmt.Sprintf("commissions:%s@%d", stateID, generation)
	return c.commissionFlights.Do(ctx, key, func(ctx context.Context) (*commissionIndex, error) {
		idx, err := c.fetchCommissions(ctx, stateID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.generation == generation {
			c.commissions[stateID] = idx
		}
		c.mu.Unlock()
		return idx, nil
	})
}

func (c *IdentifierCache) fetchCommissions(ctx context.Context, stateID string) (*commissionIndex, error) {
	ctx, span := tracer.Start(ctx, "identifierCache:fetchCommissions")
	defer span.End()
	span.SetAttributes(attribute.String("state_id", stateID))

	query := toValues(c.endpoints.CommissionsQuery, nil)
	query.Set(c.endpoints.CommissionsStateParam, stateID)

	raw, err := c.transport.Fetch(ctx, Request{
		Method: http.MethodGet,
		URL:    c.endpoints.CommissionsPath,
		Query:  query,
	})
	if err != nil {
		c.tel.ReportBroken(report_identifier_cache_load, fmt.Errorf("fetch commissions of %s: %w", stateID, err))
		return nil, err
	}
	options, err := parseOptions(raw, c.endpoints.CommissionSelectors)
	if err != nil {
		c.tel.ReportBroken(report_identifier_cache_load, fmt.Errorf("parse commissions of %s: %w", stateID, err))
		return nil, err
	}

	idx := &commissionIndex{byKey: map[string]Commission{}}
	for _, o := range options {
		key := textutil.CanonicalKey(o.name)
		if _, exists := idx.byKey[key]; exists {
			c.tel.ReportWarning(report_identifier_cache_load, "duplicate commission name", stateID, key, o.id)
			continue
		}
		commission := Commission{ID: o.id, Name: o.name, StateID: stateID}
		idx.ordered = append(idx.ordered, commission)
		idx.byKey[key] = commission
	}
	if len(idx.ordered) == 0 {
		err := parseError(raw.Body, "portal returned no commissions for state %s", stateID)
		c.tel.ReportBroken(report_identifier_cache_load, err)
		return nil, err
	}

	cacheFetchCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("list", "commissions")))
	return idx, nil
}

func notFound(kind, name string, candidates []string) *Error {
	return &Error{
		Code:        CodeNotFound,
		Message:     fmt.Sprintf("%s %q not found", kind, strings.TrimSpace(name)),
		Name:        strings.TrimSpace(name),
		Suggestions: textutil.Closest(name, candidates, maxSuggestions),
	}
}

func stateNames(states []State) []string {
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = s.Name
	}
	return names
}

func commissionNames(commissions []Commission) []string {
	names := make([]string, len(commissions))
	for i, c := range commissions {
		names[i] = c.Name
	}
	return names
}

// toValues copies fields into a fresh url.Values, layered on top of base.
func toValues(fields map[string]string, base url.Values) url.Values {
	out := url.Values{}
	for k, vs := range base {
		out[k] = append([]string(nil), vs...)
	}
	for k, v := range fields {
		out.Set(k, v)
	}
	return out
}
