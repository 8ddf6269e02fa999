package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"FormationsCache/internal/domain"
	"FormationsCache/internal/logging"
	"FormationsCache/internal/ports"
	"FormationsCache/internal/sanitize"
)

// IngestPipelineDeps wires all driven adapters into the ingestion pipeline.
type IngestPipelineDeps struct {
	Source    ports.CourseSource
	Store     ports.FormationStore
	Validator sanitize.URLValidator
	Notifier  ports.Notifier
	Metrics   ports.IngestMetrics
	Logger    *slog.Logger
	Now       func() time.Time
}

// IngestPipeline refreshes the formations cache from upstream providers.
type IngestPipeline struct {
	source    ports.CourseSource
	store     ports.FormationStore
	validator sanitize.URLValidator
	notifier  ports.Notifier
	metrics   ports.IngestMetrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewIngestPipeline constructs the orchestration component.
func NewIngestPipeline(deps IngestPipelineDeps) *IngestPipeline {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	validator := deps.Validator
	if validator.TrustedDomain == "" || validator.FallbackURL == "" {
		validator = sanitize.NewURLValidator(validator.TrustedDomain, validator.FallbackURL)
	}

	return &IngestPipeline{
		source:    deps.Source,
		store:     deps.Store,
		validator: validator,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		logger:    logger,
		now:       now,
	}
}

// Run scrapes, upserts and deactivates courses that disappeared upstream.
// An empty scrape never deactivates anything. A notifier failure is logged
// and does not fail the run.
func (p *IngestPipeline) Run(ctx context.Context, trigger time.Time) (domain.IngestReport, error) {
	report := domain.IngestReport{StartedAt: trigger}
	if p.source == nil || p.store == nil {
		return report, fmt.Errorf("ingest pipeline is not configured")
	}

	courses, err := p.source.FetchAll(ctx)
	if err != nil {
		return report, fmt.Errorf("fetch courses: %w", err)
	}
	report.Scraped = len(courses)

	keep := make([]string, 0, len(courses))
	for i, course := range courses {
		courses[i].Active = true
		keep = append(keep, course.ID)
		if !p.validator.IsValid(course.URL) {
			report.InvalidURLs++
		}
	}

	scrapedAt := p.now()
	report.Upserted, err = p.store.UpsertCourses(ctx, courses, scrapedAt)
	if err != nil {
		return report, fmt.Errorf("upsert courses: %w", err)
	}

	if len(keep) == 0 {
		p.logger.Warn("scrape returned no courses, keeping cache as is")
	} else {
		report.Deactivated, err = p.store.DeactivateMissing(ctx, keep)
		if err != nil {
			return report, fmt.Errorf("deactivate missing: %w", err)
		}
	}

	if p.metrics != nil {
		p.metrics.ObserveIngest(report.Upserted, report.Deactivated, scrapedAt)
	}

	p.logger.Info("formations ingested",
		"scraped", report.Scraped,
		"upserted", report.Upserted,
		"deactivated", report.Deactivated,
		"invalid_urls", report.InvalidURLs,
		"elapsed", p.now().Sub(trigger).String(),
	)

	if p.notifier != nil {
		if err := p.notifier.PublishDigest(ctx, buildDigestMessage(report)); err != nil {
			p.logger.Warn("publish scrape report", "error", err)
		}
	}

	return report, nil
}

func buildDigestMessage(report domain.IngestReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Formations scrape* %s\n", report.StartedAt.UTC().Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "- scraped: %d\n", report.Scraped)
	fmt.Fprintf(&b, "- upserted: %d\n", report.Upserted)
	fmt.Fprintf(&b, "- deactivated: %d\n", report.Deactivated)
	if report.InvalidURLs > 0 {
		fmt.Fprintf(&b, "- untrusted urls: %d\n", report.InvalidURLs)
	}
	if report.Scraped == 0 {
		b.WriteString("No courses found upstream, cache left untouched.\n")
	}
	return b.String()
}
