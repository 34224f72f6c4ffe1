// Package analysis runs parsed round logs through the flag tracker and produces
// round reports.
package analysis

import (
	"context"
	"fmt"

	"github.com/fortresslogs/ctfround/internal/ctf/flag"
	"github.com/fortresslogs/ctfround/internal/eventlog"
	"github.com/fortresslogs/ctfround/internal/report"
	"github.com/fortresslogs/ctfround/internal/round"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/fortresslogs/ctfround/internal/analysis"

// Analyzer turns rounds into reports and publishes them on its bus.
type Analyzer struct {
	logger *zap.Logger
	opts   flag.Options
	bus    *Bus
}

// New creates an analyzer using the given tracker options.
func New(opts flag.Options, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		logger: logger,
		opts:   opts,
		bus:    NewBus(logger),
	}
}

// Bus returns the bus reports are published on.
func (a *Analyzer) Bus() *Bus {
	return a.bus
}

// Analyze runs one round through a fresh flag tracker and returns its report.
// The round's players have their per-round counters reset first.
func (a *Analyzer) Analyze(ctx context.Context, rnd *eventlog.Round) (*report.Report, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "analysis.Analyze", trace.WithAttributes(
		attribute.String("ctf.map", rnd.MapName),
		attribute.Int("ctf.events", len(rnd.Events)),
	))
	defer span.End()

	for _, p := range rnd.Players {
		p.ResetRound()
	}

	tracker := flag.NewTracker(a.opts, a.logger)
	dispatcher := round.NewDispatcher(a.logger)
	dispatcher.Register(tracker)

	state := rnd.State()
	if err := dispatcher.Run(ctx, state, rnd.Events); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "round rejected")
		return nil, fmt.Errorf("analyze round on %s: %w", rnd.MapName, err)
	}

	r, err := report.New(state, rnd.Players, tracker)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "report failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("ctf.report_id", r.ID.String()),
		attribute.Int("ctf.diagnostics", len(r.Diagnostics)),
	)

	if a.logger != nil {
		a.logger.Info("round analyzed",
			zap.String("report_id", r.ID.String()),
			zap.String("map", r.MapName),
			zap.Int("events", len(rnd.Events)),
			zap.Stringer("winner", r.Winner()),
			zap.Bool("scored_by_replay", r.ScoredByReplay),
			zap.Int("diagnostics", len(r.Diagnostics)),
		)
	}
	return r, nil
}

// AnalyzeFile reads a round log, analyses it and publishes the report.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*report.Report, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "analysis.AnalyzeFile", trace.WithAttributes(
		attribute.String("ctf.log_file", path),
	))
	defer span.End()

	rnd, err := eventlog.ReadFile(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unreadable log")
		return nil, err
	}
	r, err := a.Analyze(ctx, rnd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := a.bus.Publish(ctx, r); err != nil {
		return r, fmt.Errorf("publish report for %s: %w", path, err)
	}
	return r, nil
}
