package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"FormationsCache/internal/domain"
	"FormationsCache/internal/scanner"
)

const (
	defaultUserAgent = "FormationsCache/1.0"
	defaultMaxPages  = 10
)

var (
	keyExpr    = regexp.MustCompile(`key=([0-9]+)`)
	dateExpr   = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{4})\b`)
	isoExpr    = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	numberExpr = regexp.MustCompile(`\d+`)
	spaceExpr  = regexp.MustCompile(`\s+`)
)

// SSSScanner reads the Swiss Snowsports course calendar.
type SSSScanner struct {
	client    *http.Client
	userAgent string
	retry     RetryPolicy
}

// SSSOption customises the scanner.
type SSSOption func(*SSSScanner)

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) SSSOption {
	return func(s *SSSScanner) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithRetryPolicy overrides the page fetch retry policy.
func WithRetryPolicy(p RetryPolicy) SSSOption {
	return func(s *SSSScanner) {
		s.retry = p
	}
}

// NewSSSScanner wires an HTTP client; a nil client gets a 20s timeout.
func NewSSSScanner(client *http.Client, opts ...SSSOption) *SSSScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	s := &SSSScanner{client: client, userAgent: defaultUserAgent, retry: DefaultRetryPolicy()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name identifies the strategy inside the registry.
func (s *SSSScanner) Name() string {
	return "sss"
}

// Scan walks every category page (following rel=next links) and returns the
// listed courses. Text is kept exactly as scraped.
func (s *SSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.ScrapedCourse, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no categories provided for site %s", req.SiteName)
	}

	maxPages := defaultMaxPages
	if raw := req.Options["maxPages"]; raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			maxPages = n
		}
	}

	results := make([]domain.ScrapedCourse, 0)
	seen := map[string]struct{}{}

	for _, cat := range req.Categories {
		detailBase, err := detailBaseURL(req.Options["detailBase"], cat.URL)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", cat.Name, err)
		}

		pageURL := cat.URL
		visited := map[string]struct{}{}
		for page := 0; page < maxPages && pageURL != ""; page++ {
			if _, ok := visited[pageURL]; ok {
				break
			}
			visited[pageURL] = struct{}{}

			doc, err := fetchDocument(ctx, s.client, pageURL, s.userAgent, s.retry)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", cat.Name, err)
			}

			for _, course := range extractCourses(doc, detailBase) {
				if _, ok := seen[course.ID]; ok {
					continue
				}
				seen[course.ID] = struct{}{}
				results = append(results, course)
			}

			pageURL = nextPageURL(doc, pageURL)
		}
	}

	return results, nil
}

func extractCourses(doc *goquery.Document, detailBase string) []domain.ScrapedCourse {
	var collected []domain.ScrapedCourse
	doc.Find("tr[data-key]").Each(func(_ int, row *goquery.Selection) {
		course, ok := parseRow(row, detailBase)
		if ok {
			collected = append(collected, course)
		}
	})
	return collected
}

func parseRow(row *goquery.Selection, detailBase string) (domain.ScrapedCourse, bool) {
	key := strings.TrimSpace(row.AttrOr("data-key", ""))
	if !isDigits(key) {
		href, _ := row.Find("a[href*=\"key=\"]").First().Attr("href")
		if m := keyExpr.FindStringSubmatch(href); m != nil {
			key = m[1]
		}
	}
	if !isDigits(key) {
		return domain.ScrapedCourse{}, false
	}

	places := row.Find(".places").First()
	status := cellText(places)

	return domain.ScrapedCourse{
		ID:           key,
		Titre:        cellText(row.Find(".titre").First()),
		Lieu:         cellText(row.Find(".lieu").First()),
		Organisateur: cellText(row.Find(".organisateur").First()),
		Debut:        parseDate(cellText(row.Find(".debut").First())),
		Places:       numberExpr.FindString(status),
		PlacesStatus: status,
		PlacesColor:  placesColor(places),
		URL:          detailBase + "#detail&key=" + key,
		Active:       true,
	}, true
}

func cellText(sel *goquery.Selection) string {
	return strings.TrimSpace(spaceExpr.ReplaceAllString(sel.Text(), " "))
}

// parseDate converts dd.mm.yyyy to yyyy-mm-dd. ISO input is passed through;
// anything else yields "".
func parseDate(raw string) string {
	if m := dateExpr.FindStringSubmatch(raw); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if t.Day() != day || int(t.Month()) != month {
			return ""
		}
		return t.Format("2006-01-02")
	}
	if iso := isoExpr.FindString(raw); iso != "" {
		if _, err := time.Parse("2006-01-02", iso); err == nil {
			return iso
		}
	}
	return ""
}

// placesColor looks for a colour token in the class list of the cell or any
// descendant, e.g. "status-orange" or "red".
func placesColor(cell *goquery.Selection) string {
	var color string
	cell.AddSelection(cell.Find("[class]")).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		for _, class := range strings.Fields(sel.AttrOr("class", "")) {
			class = strings.ToLower(class)
			if i := strings.LastIndexAny(class, "-_"); i >= 0 {
				class = class[i+1:]
			}
			switch class {
			case "red", "orange", "green", "gray", "grey":
				color = class
				return false
			}
		}
		return true
	})
	return color
}

func nextPageURL(doc *goquery.Document, current string) string {
	href, ok := doc.Find("a[rel=\"next\"]").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return ""
	}
	base, err := url.Parse(current)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func detailBaseURL(override, categoryURL string) (string, error) {
	raw := override
	if raw == "" {
		raw = categoryURL
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid category url %s: %w", raw, err)
	}
	parsed.Fragment = ""
	parsed.RawFragment = ""
	return parsed.String(), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
