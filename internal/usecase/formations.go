package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"FormationsCache/internal/domain"
	"FormationsCache/internal/logging"
	"FormationsCache/internal/ports"
	"FormationsCache/internal/sanitize"
)

const (
	SourceCache = "cache"
	SourceError = "error"

	errCacheUnavailable = "formations are temporarily unavailable"
	errCacheTimeout     = "formations cache did not answer in time"
)

// Response is the payload returned to clients for a listing request.
type Response struct {
	Success    bool               `json:"success"`
	Formations []domain.Formation `json:"formations"`
	Count      int                `json:"count"`
	Source     string             `json:"source"`
	ScrapedAt  string             `json:"scrapedAt,omitempty"`
	Message    string             `json:"message,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// FailureResponse builds the fail-closed payload with an explanatory message.
func FailureResponse(message string) Response {
	return Response{
		Success:    false,
		Formations: []domain.Formation{},
		Count:      0,
		Source:     SourceError,
		Error:      message,
	}
}

// FormationServiceDeps wires the cache reader and sanitisation settings.
type FormationServiceDeps struct {
	Cache     ports.FormationCache
	Validator sanitize.URLValidator
	IDPrefix  string
	Metrics   ports.FormationMetrics
	Logger    *slog.Logger
	Now       func() time.Time
}

// FormationService turns cached scraped rows into sanitised client output.
type FormationService struct {
	cache     ports.FormationCache
	validator sanitize.URLValidator
	idPrefix  string
	metrics   ports.FormationMetrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewFormationService constructs the assembler.
func NewFormationService(deps FormationServiceDeps) *FormationService {
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

	return &FormationService{
		cache:     deps.Cache,
		validator: validator,
		idPrefix:  deps.IDPrefix,
		metrics:   deps.Metrics,
		logger:    logger,
		now:       now,
	}
}

// List reads active formations and sanitises every untrusted field. It fails
// closed: on a cache error the response carries no formations and success=false.
func (s *FormationService) List(ctx context.Context, filters domain.Filters) Response {
	started := s.now()
	filters = filters.Normalize()

	if s.cache == nil {
		s.logger.Error("formations cache is not configured")
		s.observeListing(false, 0, started)
		return FailureResponse(errCacheUnavailable)
	}

	rows, err := s.cache.ListActive(ctx, filters)
	if err != nil {
		s.logger.Error("read formations cache", "error", err, "region", filters.Region, "type", filters.Type)
		s.observeListing(false, 0, started)
		if errors.Is(err, context.DeadlineExceeded) {
			return FailureResponse(errCacheTimeout)
		}
		return FailureResponse(errCacheUnavailable)
	}

	formations := make([]domain.Formation, 0, len(rows))
	var validURLs, fallbackURLs int
	for _, row := range rows {
		formation, valid := s.assemble(row)
		if valid {
			validURLs++
		} else {
			fallbackURLs++
			s.logger.Debug("formation url replaced by fallback", "id", row.ID)
		}
		if s.metrics != nil {
			s.metrics.ObserveURL(valid)
		}
		formations = append(formations, formation)
	}

	s.logger.Info("formations assembled",
		"count", len(formations),
		"valid_urls", validURLs,
		"fallback_urls", fallbackURLs,
		"region", filters.Region,
		"type", filters.Type,
	)
	s.observeListing(true, len(formations), started)

	return Response{
		Success:    true,
		Formations: formations,
		Count:      len(formations),
		Source:     SourceCache,
		ScrapedAt:  s.now().UTC().Format(time.RFC3339),
		Message:    fmt.Sprintf("%d formations loaded from cache", len(formations)),
	}
}

func (s *FormationService) assemble(row domain.ScrapedCourse) (domain.Formation, bool) {
	titre := sanitize.DecodeUnicodeEscapes(row.Titre)
	lieu := sanitize.DecodeUnicodeEscapes(row.Lieu)
	organisateur := sanitize.DecodeUnicodeEscapes(row.Organisateur)

	places := row.PlacesStatus
	if places == "" {
		places = row.Places
	}

	link, valid := s.validator.Resolve(row.URL)

	return domain.Formation{
		ID:           s.formationID(row.ID),
		Titre:        titre,
		Lieu:         lieu,
		Organisateur: organisateur,
		Date:         row.Debut,
		Places:       sanitize.DecodeUnicodeEscapes(places),
		PlacesColor:  string(domain.ParsePlacesColor(row.PlacesColor)),
		URL:          link,
		Description:  describe(titre, lieu),
	}, valid
}

func (s *FormationService) formationID(id string) string {
	if s.idPrefix == "" {
		return id
	}
	return s.idPrefix + "-" + id
}

func (s *FormationService) observeListing(success bool, count int, started time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveListing(success, count, s.now().Sub(started))
}

func describe(titre, lieu string) string {
	switch {
	case lieu == "":
		return titre
	case titre == "":
		return lieu
	default:
		return titre + " - " + lieu
	}
}
