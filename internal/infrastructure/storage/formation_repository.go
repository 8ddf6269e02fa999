package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"FormationsCache/internal/domain"
	"FormationsCache/internal/ports"
)

const formationsTable = "formations_cache"

var listColumns = []string{
	"id", "titre", "lieu", "organisateur", "debut",
	"places", "places_status", "places_color", "url",
}

var upsertColumns = []string{
	"titre", "lieu", "organisateur", "debut",
	"places", "places_status", "places_color", "url", "active", "scraped_at",
}

// FormationRepository reads and writes the scraped formations cache.
type FormationRepository struct {
	db      *sql.DB
	dialect Dialect
}

var (
	_ ports.FormationCache = (*FormationRepository)(nil)
	_ ports.FormationStore = (*FormationRepository)(nil)
)

// NewFormationRepository wires a sql.DB implementation.
func NewFormationRepository(db *sql.DB, dialect Dialect) *FormationRepository {
	return &FormationRepository{db: db, dialect: dialect}
}

func (r *FormationRepository) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(r.dialect.Placeholder)
}

// ListActive returns active rows ordered by start date, optionally narrowed by
// case-insensitive substrings on location (region) and title (type).
func (r *FormationRepository) ListActive(ctx context.Context, filters domain.Filters) ([]domain.ScrapedCourse, error) {
	if r.db == nil {
		return nil, fmt.Errorf("formations cache is not configured")
	}

	query, args, err := r.listQuery(filters)
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query formations: %w", err)
	}

	var result []domain.ScrapedCourse
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan formation: %w", err)
		}
		result = append(result, course)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

func (r *FormationRepository) listQuery(filters domain.Filters) (string, []any, error) {
	filters = filters.Normalize()

	q := r.builder().
		Select(listColumns...).
		From(formationsTable).
		Where(sq.Eq{"active": true})

	if filters.Region != "" {
		q = q.Where(r.containsFold("lieu", filters.Region))
	}
	if filters.Type != "" {
		q = q.Where(r.containsFold("titre", filters.Type))
	}

	return q.OrderBy("debut ASC").ToSql()
}

func (r *FormationRepository) containsFold(column, needle string) sq.Sqlizer {
	if r.dialect.Name == Postgres.Name {
		return sq.ILike{column: "%" + needle + "%"}
	}
	return sq.Expr(r.dialect.Lower+"("+column+") LIKE ?", "%"+strings.ToLower(needle)+"%")
}

func scanCourse(rows *sql.Rows) (domain.ScrapedCourse, error) {
	var (
		id, titre, lieu, organisateur sql.NullString
		places, status, color, link   sql.NullString
		debut                         isoDate
	)
	if err := rows.Scan(&id, &titre, &lieu, &organisateur, &debut, &places, &status, &color, &link); err != nil {
		return domain.ScrapedCourse{}, err
	}

	return domain.ScrapedCourse{
		ID:           id.String,
		Titre:        titre.String,
		Lieu:         lieu.String,
		Organisateur: organisateur.String,
		Debut:        string(debut),
		Places:       places.String,
		PlacesStatus: status.String,
		PlacesColor:  color.String,
		URL:          link.String,
		Active:       true,
	}, nil
}

// UpsertCourses inserts or refreshes the given rows in one transaction.
func (r *FormationRepository) UpsertCourses(ctx context.Context, courses []domain.ScrapedCourse, scrapedAt time.Time) (int, error) {
	if r.db == nil {
		return 0, fmt.Errorf("formations cache is not configured")
	}
	if len(courses) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}

	upserted := 0
	for _, course := range courses {
		query, args, err := r.upsertQuery(course, scrapedAt)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("build upsert %s: %w", course.ID, err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("upsert formation %s: %w", course.ID, err)
		}
		upserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}

	return upserted, nil
}

func (r *FormationRepository) upsertQuery(course domain.ScrapedCourse, scrapedAt time.Time) (string, []any, error) {
	return r.builder().
		Insert(formationsTable).
		Columns(append([]string{"id"}, upsertColumns...)...).
		Values(
			course.ID,
			nullable(course.Titre),
			nullable(course.Lieu),
			nullable(course.Organisateur),
			nullable(course.Debut),
			nullable(course.Places),
			nullable(course.PlacesStatus),
			nullable(course.PlacesColor),
			nullable(course.URL),
			course.Active,
			scrapedAt.UTC(),
		).
		Suffix(r.upsertSuffix()).
		ToSql()
}

func (r *FormationRepository) upsertSuffix() string {
	assignments := make([]string, 0, len(upsertColumns)+1)
	for _, col := range upsertColumns {
		if r.dialect.Name == MySQL.Name {
			assignments = append(assignments, fmt.Sprintf("%s = VALUES(%s)", col, col))
		} else {
			assignments = append(assignments, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}
	assignments = append(assignments, "updated_at = CURRENT_TIMESTAMP")

	if r.dialect.Name == MySQL.Name {
		return "ON DUPLICATE KEY UPDATE " + strings.Join(assignments, ", ")
	}
	return "ON CONFLICT (id) DO UPDATE SET " + strings.Join(assignments, ", ")
}

// DeactivateMissing flags active rows absent from keepIDs as inactive. An
// empty keepIDs is a no-op so an empty scrape never wipes the cache.
func (r *FormationRepository) DeactivateMissing(ctx context.Context, keepIDs []string) (int, error) {
	if r.db == nil {
		return 0, fmt.Errorf("formations cache is not configured")
	}
	if len(keepIDs) == 0 {
		return 0, nil
	}

	query, args, err := r.builder().
		Update(formationsTable).
		Set("active", false).
		Set("updated_at", sq.Expr("CURRENT_TIMESTAMP")).
		Where(sq.Eq{"active": true}).
		Where(sq.NotEq{"id": keepIDs}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build deactivate query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deactivate formations: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isoDate scans DATE, DATETIME or text columns into a YYYY-MM-DD string.
type isoDate string

func (d *isoDate) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = ""
	case time.Time:
		*d = isoDate(v.Format(time.DateOnly))
	case string:
		*d = isoDate(trimDate(v))
	case []byte:
		*d = isoDate(trimDate(string(v)))
	default:
		return fmt.Errorf("unsupported debut value %T", src)
	}
	return nil
}

func trimDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > len(time.DateOnly) {
		if _, err := time.Parse(time.DateOnly, s[:len(time.DateOnly)]); err == nil {
			return s[:len(time.DateOnly)]
		}
	}
	return s
}
