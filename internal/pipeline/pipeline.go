// Package pipeline orchestrates indicator computation over a cached
// bar series. Indicators are requested by kind, computed concurrently
// and merged into a single per-bar view. Replacing the series starts
// a new generation; results computed against a stale generation are
// discarded rather than published.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mihcharts/chartcore/internal/metrics"
	"github.com/mihcharts/chartcore/internal/types"
	"github.com/mihcharts/chartcore/pkg/indicator"
)

// Kind identifies an indicator the pipeline can compute.
type Kind int

const (
	KindHeikenAshi Kind = iota + 1
	KindBands
	KindSequential
)

func (k Kind) String() string {
	switch k {
	case KindHeikenAshi:
		return "heiken_ashi"
	case KindBands:
		return "bands"
	case KindSequential:
		return "sequential"
	}
	return "unknown"
}

// Source selects the series an indicator is computed over.
type Source int

const (
	SourceRaw Source = iota
	SourceHeikenAshi
)

func (s Source) String() string {
	if s == SourceHeikenAshi {
		return "heiken_ashi"
	}
	return "raw"
}

// Request asks for one indicator with its parameters. The Heiken-Ashi
// transform is always computed from the raw series; for other kinds
// Source picks the input series.
type Request struct {
	Kind       Kind
	Source     Source
	Bands      indicator.BandConfig
	Sequential indicator.SequentialConfig
}

// BandsRequest builds a band request over the given source.
func BandsRequest(src Source, cfg indicator.BandConfig) Request {
	return Request{Kind: KindBands, Source: src, Bands: cfg}
}

// SequentialRequest builds a sequential request over the given source.
func SequentialRequest(src Source, cfg indicator.SequentialConfig) Request {
	return Request{Kind: KindSequential, Source: src, Sequential: cfg}
}

// HeikenAshiRequest builds a Heiken-Ashi transform request.
func HeikenAshiRequest() Request {
	return Request{Kind: KindHeikenAshi}
}

// MergedBar is the per-bar merged view. Indicator fields are nil when
// the indicator was not requested or failed.
type MergedBar struct {
	Index      int                      `json:"index"`
	Timestamp  time.Time                `json:"timestamp"`
	Bar        types.Bar                `json:"bar"`
	HeikenAshi *types.Bar               `json:"heiken_ashi,omitempty"`
	Bands      *indicator.BandBar       `json:"bands,omitempty"`
	Sequential *indicator.SequentialBar `json:"sequential,omitempty"`
}

// Result is one completed computation run.
type Result struct {
	ID         uuid.UUID
	Generation uint64
	Bars       []MergedBar
	// Errors holds per-indicator failures. A failed indicator leaves
	// its fields nil in Bars; the others are unaffected.
	Errors map[Kind]error
}

// Pipeline owns the cached series and runs computations against it.
type Pipeline struct {
	logger   *slog.Logger
	recorder *metrics.Recorder

	mu     sync.Mutex
	series *types.Series
	gen    uint64
	last   *Result

	// afterSnapshot runs after Compute snapshots the series, before
	// any indicator work. Test hook.
	afterSnapshot func()
}

// New creates a pipeline. The recorder may be nil.
func New(logger *slog.Logger, recorder *metrics.Recorder) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{logger: logger, recorder: recorder}
}

// SetSeries replaces the cached series wholesale and starts a new
// generation. In-flight computations against the old series will be
// discarded when they finish.
func (p *Pipeline) SetSeries(s *types.Series) {
	p.mu.Lock()
	p.series = s
	p.gen++
	p.last = nil
	p.mu.Unlock()

	if p.recorder != nil && s != nil {
		p.recorder.RecordSeriesLength(s.Len())
	}
}

// Last returns the most recently published result, or nil.
func (p *Pipeline) Last() *Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Compute runs the requested indicators over the current series and
// returns the merged result. Individual indicator failures are
// reported in Result.Errors; Compute itself fails only on an empty
// series, an invalid request set, cancellation, or supersession.
func (p *Pipeline) Compute(ctx context.Context, requests []Request) (*Result, error) {
	p.mu.Lock()
	series := p.series
	gen := p.gen
	p.mu.Unlock()

	if p.afterSnapshot != nil {
		p.afterSnapshot()
	}

	if series == nil || series.Len() == 0 {
		return nil, types.ErrEmptySeries
	}
	if len(requests) == 0 {
		return nil, fmt.Errorf("%w: no indicators requested", types.ErrInvalidParameters)
	}

	seen := make(map[Kind]bool, len(requests))
	needHA := false
	for _, req := range requests {
		if req.Kind < KindHeikenAshi || req.Kind > KindSequential {
			return nil, fmt.Errorf("%w: unknown indicator kind %d", types.ErrInvalidParameters, req.Kind)
		}
		if seen[req.Kind] {
			return nil, fmt.Errorf("%w: duplicate request for %s", types.ErrInvalidParameters, req.Kind)
		}
		seen[req.Kind] = true
		if req.Kind == KindHeikenAshi || req.Source == SourceHeikenAshi {
			needHA = true
		}
	}

	id := uuid.New()
	log := p.logger.With("computation_id", id.String(), "generation", gen)
	log.Info("computing indicators", "bars", series.Len(), "requests", len(requests))

	// The transform is an input to other indicators, so it runs once
	// up front rather than inside the fan-out.
	var haBars []types.Bar
	var haSeries *types.Series
	if needHA {
		timer := metrics.NewTimer()
		haBars = indicator.HeikenAshi(series)
		var err error
		haSeries, err = types.NewSeries(haBars)
		if err != nil {
			return nil, fmt.Errorf("heiken-ashi series: %w", err)
		}
		p.record(KindHeikenAshi.String(), nil, timer.Elapsed())
	}

	sourceFor := func(req Request) *types.Series {
		if req.Source == SourceHeikenAshi {
			return haSeries
		}
		return series
	}

	var (
		wg        sync.WaitGroup
		resMu     sync.Mutex
		bandBars  []indicator.BandBar
		seqBars   []indicator.SequentialBar
		indErrors = make(map[Kind]error)
	)
	fail := func(kind Kind, err error) {
		resMu.Lock()
		indErrors[kind] = err
		resMu.Unlock()
	}

	for _, req := range requests {
		if req.Kind == KindHeikenAshi {
			continue
		}
		req := req
		wg.Add(1)
		go func() {
			defer wg.Done()
			timer := metrics.NewTimer()
			var err error
			switch req.Kind {
			case KindBands:
				var out []indicator.BandBar
				out, err = indicator.Bands(sourceFor(req), req.Bands)
				if err == nil {
					resMu.Lock()
					bandBars = out
					resMu.Unlock()
				}
			case KindSequential:
				var out []indicator.SequentialBar
				out, err = indicator.Sequential(sourceFor(req), req.Sequential)
				if err == nil {
					resMu.Lock()
					seqBars = out
					resMu.Unlock()
				}
			}
			p.record(req.Kind.String(), err, timer.Elapsed())
			if err != nil {
				log.Warn("indicator failed", "indicator", req.Kind.String(), "err", err)
				fail(req.Kind, err)
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bars := series.Bars()
	merged := make([]MergedBar, len(bars))
	for i := range bars {
		merged[i] = MergedBar{Index: i, Timestamp: bars[i].Timestamp, Bar: bars[i]}
		if seen[KindHeikenAshi] && haBars != nil {
			merged[i].HeikenAshi = &haBars[i]
		}
		if bandBars != nil {
			merged[i].Bands = &bandBars[i]
		}
		if seqBars != nil {
			merged[i].Sequential = &seqBars[i]
		}
	}

	result := &Result{ID: id, Generation: gen, Bars: merged, Errors: indErrors}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen {
		if p.recorder != nil {
			p.recorder.RecordSuperseded()
		}
		log.Info("computation superseded", "current_generation", p.gen)
		return nil, types.ErrSuperseded
	}
	p.last = result

	log.Info("computation complete", "bars", len(merged), "failed_indicators", len(indErrors))
	return result, nil
}

func (p *Pipeline) record(indicator string, err error, d time.Duration) {
	if p.recorder != nil {
		p.recorder.RecordComputation(indicator, err, d)
	}
}
