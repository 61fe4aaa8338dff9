// Package pipeline wires the closed loop: feed → feature engine → signal
// generator → prediction ledger, with the feedback edge ledger → tuner →
// registry → signal config. Ticks are processed per (exchange, symbol) key
// in strict arrival order by one serialized worker per key; different keys
// proceed in parallel with no shared mutable state.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/domain"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/feature"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/ingestion"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/ledger"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/observability"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/registry"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/signal"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/storage"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/tuner"
)

const (
	// workerQueueSize bounds each per-key inbound queue. A full queue
	// applies backpressure to the dispatcher rather than dropping.
	workerQueueSize = 256

	// archiveBatchSize and archiveFlushInterval control the off-path
	// archive writer.
	archiveBatchSize     = 200
	archiveFlushInterval = 5 * time.Second
)

// Options configures a Pipeline.
type Options struct {
	VerifierConfig ledger.Config
	TunerConfig    tuner.Config

	// PromoteDeltaPct is the accuracy improvement over the production
	// version's recorded accuracy required to auto-version a cycle.
	PromoteDeltaPct float64

	// VersionStore backs the registry. Required.
	VersionStore storage.ModelVersionStore

	// Archive receives ticks and resolutions off the hot path. Optional.
	Archive storage.TickArchive

	// Metrics is optional; nil disables instrumentation.
	Metrics *observability.Metrics

	Logger zerolog.Logger
}

// Pipeline owns the engines and their background schedulers.
type Pipeline struct {
	features *feature.Engine
	signals  *signal.Generator
	ledger   *ledger.Ledger
	tuner    *tuner.Tuner
	registry *registry.Registry

	archive storage.TickArchive
	metrics *observability.Metrics
	logger  zerolog.Logger
	events  *broadcaster

	promoteDeltaPct float64

	mu      sync.Mutex
	workers map[domain.MarketKey]chan domain.Tick
	wg      sync.WaitGroup

	archiveCh chan archiveItem
}

type archiveItem struct {
	tick       *domain.Tick
	resolution *domain.Prediction
}

// New constructs a fully wired pipeline. Engines are explicit instances
// owned by the pipeline; tests can build isolated pipelines freely.
func New(ctx context.Context, opts Options) (*Pipeline, error) {
	p := &Pipeline{
		archive:         opts.Archive,
		metrics:         opts.Metrics,
		logger:          opts.Logger.With().Str("component", "pipeline").Logger(),
		events:          newBroadcaster(),
		promoteDeltaPct: opts.PromoteDeltaPct,
		workers:         make(map[domain.MarketKey]chan domain.Tick),
		archiveCh:       make(chan archiveItem, 4*archiveBatchSize),
	}
	if p.promoteDeltaPct <= 0 {
		p.promoteDeltaPct = 2.0
	}

	reg, err := registry.New(ctx, opts.VersionStore, opts.Logger)
	if err != nil {
		return nil, err
	}
	p.registry = reg

	p.features = feature.NewEngine(opts.Logger)
	p.ledger = ledger.New(opts.VerifierConfig, opts.Logger, p.onResolve)
	p.signals = signal.NewGenerator(registrarFunc(p.register), opts.Logger)
	p.tuner = tuner.New(opts.TunerConfig, p.ledger, p.onCycleApplied, opts.Logger)

	return p, nil
}

// registrarFunc adapts a function to signal.Registrar.
type registrarFunc func(domain.Signal)

func (f registrarFunc) Register(sig domain.Signal) { f(sig) }

// register forwards an emitted signal to the ledger and instrumentation.
func (p *Pipeline) register(sig domain.Signal) {
	before := p.ledger.DuplicateCount()
	p.ledger.Register(sig)

	if p.metrics != nil {
		p.metrics.PredictionsRegistered.Inc()
		p.metrics.SignalsEmitted.WithLabelValues(string(sig.Type)).Inc()
		p.metrics.SignalStrength.Observe(float64(sig.Strength))
		if p.ledger.DuplicateCount() > before {
			p.metrics.DuplicateSignals.Inc()
		}
		p.metrics.PendingPredictions.Set(float64(p.ledger.PendingCount()))
	}

	s := sig
	p.events.publish(Event{Type: EventSignal, Signal: &s})
}

// onResolve handles a terminal prediction: instrumentation, fan-out,
// archive.
func (p *Pipeline) onResolve(pred domain.Prediction) {
	if p.metrics != nil {
		p.metrics.PredictionsResolved.WithLabelValues(string(pred.Status)).Inc()
		p.metrics.PendingPredictions.Set(float64(p.ledger.PendingCount()))
		p.metrics.OverallAccuracy.Set(p.ledger.Metrics().OverallAccuracy)
	}

	pr := pred
	p.events.publish(Event{Type: EventResolution, Prediction: &pr})

	if p.archive != nil {
		select {
		case p.archiveCh <- archiveItem{resolution: &pr}:
		default:
			// Archive backlog full; drop rather than stall resolution.
			if p.metrics != nil {
				p.metrics.ArchiveErrors.Inc()
			}
		}
	}
}

// onCycleApplied implements the auto-versioning policy: snapshot and
// promote when the cycle's accuracy beats the production version's
// recorded accuracy by the configured delta. The first applied cycle
// bootstraps production.
func (p *Pipeline) onCycleApplied(cfg domain.TunedConfig, m domain.AccuracyMetrics) {
	ctx := context.Background()

	c := cfg
	p.events.publish(Event{Type: EventCycleApplied, Config: &c})
	if p.metrics != nil {
		p.metrics.ConfidenceThreshold.Set(cfg.ConfidenceThreshold)
	}

	prod, err := p.registry.Production(ctx)
	if err == nil && m.OverallAccuracy < prod.Accuracy+p.promoteDeltaPct {
		return
	}
	if err != nil && err != registry.ErrNotFound {
		p.logger.Error().Err(err).Msg("production lookup failed, skipping auto-version")
		return
	}

	v, err := p.registry.Snapshot(ctx, cfg, m.OverallAccuracy)
	if err != nil {
		p.logger.Error().Err(err).Msg("auto-version snapshot failed")
		return
	}
	if p.metrics != nil {
		p.metrics.VersionsCreated.Inc()
	}

	if err := p.registry.Promote(ctx, v.VersionID); err != nil {
		p.logger.Error().Err(err).Str("version_id", v.VersionID).Msg("auto-version promote failed")
		return
	}
	if p.metrics != nil {
		p.metrics.VersionsPromoted.Inc()
	}

	v.State = domain.StateProduction
	p.events.publish(Event{Type: EventVersionPromoted, Version: v})
}

// Process routes one tick to its key's serialized worker, creating the
// worker on first sight of the key. Blocks when the worker queue is full.
func (p *Pipeline) Process(ctx context.Context, tick domain.Tick) error {
	if !tick.Valid() {
		if p.metrics != nil {
			p.metrics.TicksDropped.WithLabelValues("invalid").Inc()
		}
		return nil
	}

	p.mu.Lock()
	ch, ok := p.workers[tick.Key()]
	if !ok {
		ch = make(chan domain.Tick, workerQueueSize)
		p.workers[tick.Key()] = ch
		p.wg.Add(1)
		go p.worker(tick.Key(), ch)
	}
	p.mu.Unlock()

	select {
	case ch <- tick:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// worker processes one key's ticks in arrival order: resolve open
// predictions against the new price first, then derive features, then
// classify. A signal emitted from this tick can therefore never be
// resolved by the tick that created it.
func (p *Pipeline) worker(key domain.MarketKey, in <-chan domain.Tick) {
	defer p.wg.Done()

	for tick := range in {
		p.ledger.Observe(tick)
		p.features.Ingest(tick)
		p.signals.OnTick(tick)

		if p.metrics != nil {
			p.metrics.TicksProcessed.WithLabelValues(tick.Exchange).Inc()
			p.metrics.WorkerQueueLen.WithLabelValues(key.String()).Set(float64(len(in)))
		}

		if p.archive != nil {
			t := tick
			select {
			case p.archiveCh <- archiveItem{tick: &t}:
			default:
				if p.metrics != nil {
					p.metrics.ArchiveErrors.Inc()
				}
			}
		}
	}
}

// Run consumes the feed until the context ends or the feed is exhausted,
// then drains the workers. The tuner cadence and archive writer run
// alongside.
func (p *Pipeline) Run(ctx context.Context, feed ingestion.Feed) error {
	g, ctx := errgroup.WithContext(ctx)

	inbound := make(chan domain.Tick, workerQueueSize)

	g.Go(func() error {
		defer close(inbound)
		err := feed.Run(ctx, inbound)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	g.Go(func() error {
		for tick := range inbound {
			if err := p.Process(ctx, tick); err != nil {
				return err
			}
		}
		return nil
	})

	g.Go(func() error {
		err := p.tuner.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	if p.archive != nil {
		g.Go(func() error {
			p.archiveLoop(ctx)
			return nil
		})
	}

	err := g.Wait()
	p.shutdownWorkers()
	return err
}

// Drain processes a finite feed to completion and waits for all workers.
// Used by replay.
func (p *Pipeline) Drain(ctx context.Context, feed ingestion.Feed) error {
	inbound := make(chan domain.Tick, workerQueueSize)

	errCh := make(chan error, 1)
	go func() {
		defer close(inbound)
		errCh <- feed.Run(ctx, inbound)
	}()

	for tick := range inbound {
		if err := p.Process(ctx, tick); err != nil {
			return err
		}
	}

	p.shutdownWorkers()
	return <-errCh
}

// shutdownWorkers closes all worker queues and waits for them to drain.
func (p *Pipeline) shutdownWorkers() {
	p.mu.Lock()
	for key, ch := range p.workers {
		close(ch)
		delete(p.workers, key)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// archiveLoop batches archive writes off the hot path. Failures are
// logged and counted, never propagated.
func (p *Pipeline) archiveLoop(ctx context.Context) {
	ticker := time.NewTicker(archiveFlushInterval)
	defer ticker.Stop()

	var ticks []*domain.Tick
	var resolutions []*domain.Prediction

	flush := func() {
		if len(ticks) > 0 {
			if err := p.archive.ArchiveTicks(context.Background(), ticks); err != nil {
				p.logger.Warn().Err(err).Int("count", len(ticks)).Msg("tick archive write failed")
				if p.metrics != nil {
					p.metrics.ArchiveErrors.Inc()
				}
			}
			ticks = nil
		}
		if len(resolutions) > 0 {
			if err := p.archive.ArchiveResolutions(context.Background(), resolutions); err != nil {
				p.logger.Warn().Err(err).Int("count", len(resolutions)).Msg("resolution archive write failed")
				if p.metrics != nil {
					p.metrics.ArchiveErrors.Inc()
				}
			}
			resolutions = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-ticker.C:
			flush()
		case item := <-p.archiveCh:
			if item.tick != nil {
				ticks = append(ticks, item.tick)
			}
			if item.resolution != nil {
				resolutions = append(resolutions, item.resolution)
			}
			if len(ticks) >= archiveBatchSize || len(resolutions) >= archiveBatchSize {
				flush()
			}
		}
	}
}

// Subscribe returns a pipeline event channel and its cancel function.
// Slow subscribers lose events rather than blocking the pipeline.
func (p *Pipeline) Subscribe() (<-chan Event, func()) {
	return p.events.subscribe()
}

// Features exposes the online feature store.
func (p *Pipeline) Features() *feature.Engine { return p.features }

// RecentSignals returns the bounded recent-signal list, most recent first,
// with each signal's live status as tracked by the verifier.
func (p *Pipeline) RecentSignals() []domain.Signal {
	recent := p.signals.Recent()
	for i := range recent {
		if status, ok := p.ledger.StatusOf(recent[i].ID); ok {
			recent[i].Status = status
		}
	}
	return recent
}

// Accuracy returns the current accuracy snapshot.
func (p *Pipeline) Accuracy() domain.AccuracyMetrics { return p.ledger.Metrics() }

// Config returns the tuner's current working configuration.
func (p *Pipeline) Config() domain.TunedConfig { return p.tuner.Config() }

// ForceLearningCycle runs a learning cycle on demand.
func (p *Pipeline) ForceLearningCycle() (domain.TunedConfig, tuner.CycleOutcome) {
	cfg, outcome := p.tuner.RunLearningCycle()
	if p.metrics != nil {
		p.metrics.LearningCycles.WithLabelValues(string(outcome)).Inc()
	}
	return cfg, outcome
}

// ResetConfig restores the default tuned configuration.
func (p *Pipeline) ResetConfig() domain.TunedConfig { return p.tuner.ResetConfig() }

// Registry exposes version operations for the control surface.
func (p *Pipeline) Registry() *registry.Registry { return p.registry }

// Promote promotes a version to production.
func (p *Pipeline) Promote(ctx context.Context, versionID string) error {
	if err := p.registry.Promote(ctx, versionID); err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.VersionsPromoted.Inc()
	}
	if v, err := p.registry.Production(ctx); err == nil {
		p.events.publish(Event{Type: EventVersionPromoted, Version: v})
	}
	return nil
}

// Rollback restores the most recently archived version to production.
func (p *Pipeline) Rollback(ctx context.Context) (*domain.ModelVersion, error) {
	v, err := p.registry.Rollback(ctx)
	if err != nil {
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.Rollbacks.Inc()
	}
	p.events.publish(Event{Type: EventVersionPromoted, Version: v})
	return v, nil
}
