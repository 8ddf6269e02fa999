package ports

import (
	"context"
	"time"

	"FormationsCache/internal/domain"
)

// FormationCache reads active scraped courses for the client-facing listing.
type FormationCache interface {
	ListActive(ctx context.Context, filters domain.Filters) ([]domain.ScrapedCourse, error)
}

// FormationStore persists scraped courses produced by the ingestion job.
type FormationStore interface {
	UpsertCourses(ctx context.Context, courses []domain.ScrapedCourse, scrapedAt time.Time) (int, error)
	DeactivateMissing(ctx context.Context, keepIDs []string) (int, error)
}

// CourseSource pulls the current course calendar from upstream providers.
type CourseSource interface {
	FetchAll(ctx context.Context) ([]domain.ScrapedCourse, error)
}

// FormationMetrics records listing outcomes for observability.
type FormationMetrics interface {
	ObserveURL(valid bool)
	ObserveListing(success bool, count int, elapsed time.Duration)
}

// Notifier streams scrape reports to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// IngestMetrics records the outcome of a scrape run.
type IngestMetrics interface {
	ObserveIngest(upserted, deactivated int, at time.Time)
}
