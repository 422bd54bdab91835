// Package session ties the selector state to its collaborators: it fetches
// elements and versions, evaluates the frozen pattern, projects it onto the
// scene and redraws the chart.
//
// Applies may overlap when fetches are slow. Every apply takes a request
// token; only the newest token may render, so an older response that
// arrives late is discarded instead of overwriting a newer chart.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/rolepattern/internal/datasource"
	"github.com/vanderheijden86/rolepattern/pkg/chart"
	"github.com/vanderheijden86/rolepattern/pkg/debug"
	"github.com/vanderheijden86/rolepattern/pkg/metrics"
	"github.com/vanderheijden86/rolepattern/pkg/model"
	"github.com/vanderheijden86/rolepattern/pkg/pattern"
	"github.com/vanderheijden86/rolepattern/pkg/render"
)

// Options tunes a session.
type Options struct {
	// ResetOnOpen resets the selector every time the dialog opens.
	ResetOnOpen bool
	Evaluate    pattern.EvaluateOptions
	// Collector receives apply metrics. Nil disables them.
	Collector *metrics.Collector
}

// Outcome describes one apply.
type Outcome struct {
	RequestID  string
	Token      uint64
	Pattern    pattern.Pattern
	Results    []pattern.MatchResult
	Projection render.Projection
	// FetchErr is the data failure that was degraded to an empty result.
	FetchErr error
	// Stale is set when a newer apply started before this one could
	// render; nothing was projected or drawn.
	Stale bool
}

// Session owns the selector state for one dialog. The projector and chart
// renderer are optional so the session also serves headless callers.
type Session struct {
	state     *pattern.State
	source    datasource.Source
	projector *render.Projector
	chart     *chart.Renderer
	opts      Options

	token atomic.Uint64

	// mu serializes evaluate, project and draw.
	mu   sync.Mutex
	last Outcome
	open bool
}

// New returns a session over state and its collaborators.
func New(state *pattern.State, source datasource.Source, projector *render.Projector, renderer *chart.Renderer, opts Options) *Session {
	return &Session{
		state:     state,
		source:    source,
		projector: projector,
		chart:     renderer,
		opts:      opts,
	}
}

// State returns the selector state.
func (s *Session) State() *pattern.State {
	return s.state
}

// Open shows the dialog and returns the control visibility for the
// current level.
func (s *Session) Open() pattern.Buttons {
	s.mu.Lock()
	s.open = true
	s.mu.Unlock()
	if s.opts.ResetOnOpen {
		s.state.Reset()
	}
	return s.state.Buttons()
}

// Close hides the dialog. State is kept.
func (s *Session) Close() {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
}

// IsOpen reports whether the dialog is shown.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Last returns the most recent rendered outcome.
func (s *Session) Last() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// LoadRoles returns the role universe of the source's current elements.
func (s *Session) LoadRoles(ctx context.Context) ([]string, error) {
	elems, err := s.source.Elements(ctx)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	return elems.Roles(), nil
}

// RefreshRoles reloads the role universe into the state. Selections for
// roles that still exist are kept. Not safe to call while another
// goroutine edits the state.
func (s *Session) RefreshRoles(ctx context.Context) error {
	roles, err := s.LoadRoles(ctx)
	if err != nil {
		return err
	}
	s.state.SetRoles(roles)
	return nil
}

// fetch loads elements and versions concurrently.
func (s *Session) fetch(ctx context.Context) (model.Elements, []model.Version, error) {
	defer metrics.Timer(metrics.Fetch)()

	var elems model.Elements
	var versions []model.Version
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		elems, err = s.source.Elements(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		versions, err = s.source.Versions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Elements{}, nil, err
	}
	return elems, versions, nil
}

// Request is one apply, frozen at the moment the user asked for it.
type Request struct {
	ID      string
	Token   uint64
	Pattern pattern.Pattern
}

// NewRequest snapshots the current pattern and takes the next token. It
// must run on the goroutine that edits the state; Run may then proceed
// elsewhere.
func (s *Session) NewRequest() Request {
	return Request{
		ID:      uuid.NewString(),
		Token:   s.token.Add(1),
		Pattern: s.state.Snapshot(),
	}
}

// Apply is NewRequest followed by Run.
func (s *Session) Apply(ctx context.Context) (Outcome, error) {
	return s.Run(ctx, s.NewRequest())
}

// Run evaluates req against freshly fetched data, hides non-matching
// scene elements and redraws the chart. A fetch failure is not an error:
// it yields empty results and an empty chart, with the cause in
// Outcome.FetchErr. Cancelling ctx is an error. If a newer request was
// issued meanwhile, nothing is rendered and the outcome is marked Stale.
func (s *Session) Run(ctx context.Context, req Request) (Outcome, error) {
	out := Outcome{
		RequestID: req.ID,
		Token:     req.Token,
		Pattern:   req.Pattern,
	}
	debug.Section("apply " + out.RequestID)
	defer debug.LogEnterExit("apply " + out.RequestID)()
	debug.Log("apply %s: token=%d pattern=%s", out.RequestID, out.Token, out.Pattern)

	start := time.Now()
	elems, versions, err := s.fetch(ctx)
	s.opts.Collector.ObserveStep("fetch", time.Since(start).Seconds())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}
		debug.Log("apply %s: fetch failed, continuing with no data: %v", out.RequestID, err)
		s.opts.Collector.ObserveFetchError()
		out.FetchErr = err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token.Load() != out.Token {
		debug.Log("apply %s: superseded, discarding", out.RequestID)
		s.opts.Collector.ObserveStale()
		out.Stale = true
		return out, nil
	}

	start = time.Now()
	out.Results = pattern.EvaluateWithOptions(elems, versions, out.Pattern, s.opts.Evaluate)
	s.opts.Collector.ObserveStep("evaluate", time.Since(start).Seconds())

	if s.projector != nil {
		start = time.Now()
		proj, err := s.projector.Apply(out.Pattern)
		s.opts.Collector.ObserveStep("project", time.Since(start).Seconds())
		if err != nil {
			return out, fmt.Errorf("apply %s: %w", out.RequestID, err)
		}
		out.Projection = proj
	}

	if s.chart != nil {
		start = time.Now()
		err := s.chart.Draw(out.Results)
		s.opts.Collector.ObserveStep("chart", time.Since(start).Seconds())
		if err != nil {
			return out, fmt.Errorf("apply %s: %w", out.RequestID, err)
		}
	}

	s.opts.Collector.ObserveApply(out.Pattern.Level, pattern.Counts(out.Results))
	s.last = out
	if debug.Enabled() {
		debug.Dump("timings", metrics.Snapshot())
	}
	return out, nil
}

// RemovePattern shows every scene element again. It does not touch the
// selector state or the chart.
func (s *Session) RemovePattern() error {
	if s.projector == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projector.Remove()
}
