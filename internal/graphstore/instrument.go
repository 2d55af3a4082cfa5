package graphstore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/emergent-company/erm/pkg/apperror"
	"github.com/emergent-company/erm/pkg/logger"
	"github.com/emergent-company/erm/pkg/tracing"
)

// InstrumentOptions configure Instrument.
type InstrumentOptions struct {
	// Timeout bounds each call whose context carries no deadline.
	Timeout time.Duration
	// SlowThreshold logs calls slower than this. 0 disables the slow log.
	SlowThreshold time.Duration
}

type instrumented struct {
	next Port
	log  *slog.Logger
	opts InstrumentOptions
}

// Instrument wraps p with the default timeout, a span per call,
// prometheus metrics and slow-statement logging. Errors that are not
// already typed are reported as graph_unavailable.
func Instrument(p Port, log *slog.Logger, opts InstrumentOptions) Port {
	return &instrumented{
		next: p,
		log:  log.With(logger.Scope("graphstore")),
		opts: opts,
	}
}

func (i *instrumented) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || i.opts.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, i.opts.Timeout)
}

func (i *instrumented) Execute(ctx context.Context, query string, params map[string]any) (*Result, error) {
	op := OpFrom(query)
	ctx, cancel := i.withTimeout(ctx)
	defer cancel()
	ctx, span := tracing.Start(ctx, "graph."+op, tracing.AttrOperation.String(op))
	defer span.End()

	start := time.Now()
	res, err := i.next.Execute(ctx, query, params)
	err = i.observe(op, start, err)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	span.SetAttributes(attribute.Int("erm.graph.records", len(res.Records)))
	return res, nil
}

func (i *instrumented) ExecuteBatch(ctx context.Context, stmts []Statement) ([]*Result, error) {
	ctx, cancel := i.withTimeout(ctx)
	defer cancel()
	ctx, span := tracing.Start(ctx, "graph.batch",
		tracing.AttrOperation.String("batch"),
		attribute.Int("erm.graph.statements", len(stmts)),
	)
	defer span.End()

	batchSize.Observe(float64(len(stmts)))
	start := time.Now()
	res, err := i.next.ExecuteBatch(ctx, stmts)
	if err = i.observe("batch", start, err); err != nil {
		return nil, tracing.RecordError(span, err)
	}
	return res, nil
}

func (i *instrumented) HealthCheck(ctx context.Context) error {
	ctx, cancel := i.withTimeout(ctx)
	defer cancel()
	start := time.Now()
	return i.observe(OpHealth, start, i.next.HealthCheck(ctx))
}

func (i *instrumented) observe(op string, start time.Time, err error) error {
	elapsed := time.Since(start)
	queryDuration.WithLabelValues(op).Observe(elapsed.Seconds())

	if i.opts.SlowThreshold > 0 && elapsed > i.opts.SlowThreshold {
		i.log.Warn("slow graph statement",
			slog.String("op", op),
			slog.Duration("duration", elapsed),
		)
	}

	if err == nil {
		queriesTotal.WithLabelValues(op, "ok").Inc()
		return nil
	}

	if _, ok := apperror.As(err); !ok {
		err = apperror.NewGraphUnavailable(err)
	}
	outcome := "error"
	if errors.Is(err, context.DeadlineExceeded) {
		outcome = "timeout"
	}
	queriesTotal.WithLabelValues(op, outcome).Inc()
	if apperror.HasCode(err, apperror.CodeGraphUnavailable) {
		i.log.Error("graph statement failed",
			slog.String("op", op),
			slog.Duration("duration", elapsed),
			logger.Error(err),
		)
	}
	return err
}
