// Package pipeline sequences extract, parse and load for trading days and
// aggregates per-day outcomes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/b3quotes/b3-quote-service/internal/config"
	"github.com/b3quotes/b3-quote-service/internal/extract"
	"github.com/b3quotes/b3-quote-service/internal/marketday"
	"github.com/b3quotes/b3-quote-service/internal/models"
	"github.com/b3quotes/b3-quote-service/internal/parse"
	"github.com/b3quotes/b3-quote-service/internal/storage"
)

// Status is the state of one trading day's pipeline run
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusExtracted Status = "EXTRACTED"
	StatusParsed    Status = "PARSED"
	StatusLoaded    Status = "LOADED"
	// StatusSkipped means no source file was published for the day.
	// Expected for holidays and unpublished sessions, not a failure.
	StatusSkipped Status = "SKIPPED"
	StatusFailed  Status = "FAILED"
)

// Stage names the pipeline step a day reached or failed at
type Stage string

const (
	StageExtract Stage = "extract"
	StageParse   Stage = "parse"
	StageLoad    Stage = "load"
)

// Extractor resolves and unpacks one day's bulletin bundle
type Extractor interface {
	FetchDay(ctx context.Context, dayKey string) (int, error)
}

// Parser decodes bulletin bytes into quote records
type Parser interface {
	ParseBulletin(data []byte) (*parse.Result, error)
}

// Loader persists quote batches. One Loader per worker; implementations
// need not be safe for concurrent use.
type Loader interface {
	UpsertQuotes(quotes []models.Quote) (int64, error)
	Truncate() error
	Close() error
}

// LoaderFactory opens a fresh database session for one worker
type LoaderFactory func() (Loader, error)

// EventPublisher announces committed trading days. May be nil.
type EventPublisher interface {
	PublishDayLoaded(ctx context.Context, dayKey string, quotes int64) error
}

// DayResult is the terminal outcome of one trading day's run
type DayResult struct {
	DayKey  string
	Status  Status
	Stage   Stage
	Quotes  int64
	Skipped int
	Err     error
}

// DayError describes one failed day in the run summary
type DayError struct {
	DayKey  string `json:"day_key"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// Summary aggregates per-day outcomes for a run
type Summary struct {
	Attempted     int        `json:"attempted"`
	Succeeded     int        `json:"succeeded"`
	Skipped       int        `json:"skipped"`
	Failed        int        `json:"failed"`
	RecordsLoaded int64      `json:"records_loaded"`
	Errors        []DayError `json:"errors,omitempty"`
}

func (s *Summary) add(res DayResult) {
	s.Attempted++
	switch res.Status {
	case StatusLoaded:
		s.Succeeded++
		s.RecordsLoaded += res.Quotes
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
		msg := ""
		if res.Err != nil {
			msg = res.Err.Error()
		}
		s.Errors = append(s.Errors, DayError{DayKey: res.DayKey, Stage: string(res.Stage), Message: msg})
	}
}

// Orchestrator drives the extract -> parse -> load pipeline
type Orchestrator struct {
	extractor Extractor
	parser    Parser
	store     storage.Store
	loaders   LoaderFactory
	events    EventPublisher
	logger    *slog.Logger
	cfg       config.PipelineConfig
	now       func() time.Time
}

// New creates an Orchestrator. events may be nil.
func New(ex Extractor, p Parser, store storage.Store, loaders LoaderFactory,
	events EventPublisher, cfg config.PipelineConfig, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		extractor: ex,
		parser:    p,
		store:     store,
		loaders:   loaders,
		events:    events,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// RunDay processes one trading day sequentially through all three stages
func (o *Orchestrator) RunDay(ctx context.Context, day time.Time) DayResult {
	key := marketday.Key(day)
	res := DayResult{DayKey: key, Status: StatusPending, Stage: StageExtract}

	if _, err := o.extractor.FetchDay(ctx, key); err != nil {
		if errors.Is(err, extract.ErrSourceUnavailable) {
			o.logger.Info("no source file for day", "day", key)
			res.Status = StatusSkipped
			return res
		}
		res.Status = StatusFailed
		res.Err = err
		return res
	}
	res.Status = StatusExtracted

	res.Stage = StageParse
	quotes, skipped, err := o.parseDay(ctx, key)
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		return res
	}
	res.Status = StatusParsed
	res.Skipped = skipped
	if len(quotes) == 0 {
		o.logger.Warn("no valid quotes parsed for day", "day", key)
	}

	res.Stage = StageLoad
	loader, err := o.loaders()
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		return res
	}
	defer loader.Close()

	count, err := loader.UpsertQuotes(quotes)
	if err != nil {
		res.Status = StatusFailed
		res.Err = fmt.Errorf("failed to load day %s: %w", key, err)
		return res
	}
	res.Status = StatusLoaded
	res.Quotes = count

	o.logger.Info("day loaded", "day", key, "quotes", count, "skipped_records", skipped)
	o.publish(ctx, key, count)
	return res
}

// parseDay parses every bulletin stored under the day's blob prefix
func (o *Orchestrator) parseDay(ctx context.Context, key string) ([]models.Quote, int, error) {
	names, err := o.store.List(ctx, storage.BulletinPrefix(key))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bulletins for %s: %w", key, err)
	}

	var quotes []models.Quote
	var skipped int
	for _, name := range names {
		data, err := o.store.Download(ctx, name)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to download bulletin %s: %w", name, err)
		}
		result, err := o.parser.ParseBulletin(data)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to parse bulletin %s: %w", name, err)
		}
		quotes = append(quotes, result.Quotes...)
		skipped += result.Skipped
	}
	return quotes, skipped, nil
}

// RunLatest walks back from today over business days and stops at the first
// successfully loaded day. Skipped and failed days both advance the walk.
func (o *Orchestrator) RunLatest(ctx context.Context) Summary {
	var summary Summary
	for _, day := range marketday.WalkBack(o.now(), o.cfg.MaxLookbackDays) {
		res := o.RunDay(ctx, day)
		summary.add(res)
		if res.Status == StatusLoaded {
			break
		}
	}
	o.logSummary(summary)
	return summary
}

// RunWindow processes every business day in the set independently and in
// parallel under a bounded worker pool. One day's failure never affects
// its siblings.
func (o *Orchestrator) RunWindow(ctx context.Context, days []time.Time) Summary {
	workers := o.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]DayResult, len(days))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, day := range days {
		g.Go(func() error {
			results[i] = o.RunDay(ctx, day)
			return nil
		})
	}
	g.Wait()

	var summary Summary
	for _, res := range results {
		summary.add(res)
	}
	o.logSummary(summary)
	return summary
}

// RunBackfill purges the quote table and reloads the last daysBack business
// days, ending yesterday
func (o *Orchestrator) RunBackfill(ctx context.Context, daysBack int) (Summary, error) {
	loader, err := o.loaders()
	if err != nil {
		return Summary{}, err
	}
	if err := loader.Truncate(); err != nil {
		loader.Close()
		return Summary{}, fmt.Errorf("failed to purge quotes before backfill: %w", err)
	}
	loader.Close()

	end := o.now().AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -daysBack)
	days := marketday.Between(start, end)

	o.logger.Info("starting backfill", "days", len(days),
		"from", start.Format("2006-01-02"), "to", end.Format("2006-01-02"))
	return o.RunWindow(ctx, days), nil
}

func (o *Orchestrator) publish(ctx context.Context, key string, count int64) {
	if o.events == nil {
		return
	}
	if err := o.events.PublishDayLoaded(ctx, key, count); err != nil {
		o.logger.Warn("failed to publish day loaded event", "day", key, "error", err)
	}
}

func (o *Orchestrator) logSummary(s Summary) {
	o.logger.Info("pipeline run summary",
		"attempted", s.Attempted,
		"succeeded", s.Succeeded,
		"skipped", s.Skipped,
		"failed", s.Failed,
		"records_loaded", s.RecordsLoaded,
		"errors", len(s.Errors),
	)
	for _, e := range s.Errors {
		o.logger.Error("day failed", "day", e.DayKey, "stage", e.Stage, "error", e.Message)
	}
}
