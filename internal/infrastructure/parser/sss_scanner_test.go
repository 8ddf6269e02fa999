package parser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"FormationsCache/internal/config"
	"FormationsCache/internal/scanner"
)

const calendarPage = `
<html><body>
<table class="calendar">
  <tr data-key="101">
    <td class="debut">06.12.2025</td>
    <td class="titre"><a href="#detail&key=101">Ski   Alpin
       - Z/u00fcrich</a></td>
    <td class="lieu">Gen&#232;ve</td>
    <td class="organisateur">SSS</td>
    <td class="places"><span class="badge status-orange">Encore 4 places</span></td>
  </tr>
  <tr data-key="">
    <td class="titre"><a href="/Calendrier-des-Cours#detail&key=102">Snowboard</a></td>
    <td class="debut">2025-12-07</td>
    <td class="places red">complet</td>
  </tr>
  <tr data-key="abc"><td class="titre">No key</td></tr>
</table>
%s
</body></html>`

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestParseRow(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fmt.Sprintf(calendarPage, "")))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	courses := extractCourses(doc, "https://formation.sss.ch/Calendrier-des-Cours")
	if len(courses) != 2 {
		t.Fatalf("expected 2 courses, got %d", len(courses))
	}

	first := courses[0]
	if first.ID != "101" {
		t.Fatalf("unexpected id: %s", first.ID)
	}
	if first.Titre != "Ski Alpin - Z/u00fcrich" {
		t.Fatalf("title should be collapsed but not decoded: %q", first.Titre)
	}
	if first.Lieu != "Genève" {
		t.Fatalf("unexpected lieu: %q", first.Lieu)
	}
	if first.Debut != "2025-12-06" {
		t.Fatalf("unexpected debut: %s", first.Debut)
	}
	if first.Places != "4" || first.PlacesStatus != "Encore 4 places" {
		t.Fatalf("unexpected places: %q / %q", first.Places, first.PlacesStatus)
	}
	if first.PlacesColor != "orange" {
		t.Fatalf("unexpected colour: %s", first.PlacesColor)
	}
	if first.URL != "https://formation.sss.ch/Calendrier-des-Cours#detail&key=101" {
		t.Fatalf("unexpected url: %s", first.URL)
	}
	if !first.Active {
		t.Fatalf("scraped course should be active")
	}

	second := courses[1]
	if second.ID != "102" {
		t.Fatalf("key should fall back to link href, got %q", second.ID)
	}
	if second.Debut != "2025-12-07" || second.PlacesColor != "red" || second.Places != "" {
		t.Fatalf("unexpected second course: %+v", second)
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"06.12.2025":         "2025-12-06",
		"Du 1.2.2026 au ...": "2026-02-01",
		"2026-01-15":         "2026-01-15",
		"31.02.2026":         "",
		"bientôt":            "",
		"":                   "",
	}
	for in, want := range cases {
		if got := parseDate(in); got != want {
			t.Fatalf("parseDate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDetailBaseURLDropsFragment(t *testing.T) {
	t.Parallel()

	got, err := detailBaseURL("", "https://formation.sss.ch/Calendrier-des-Cours#top")
	if err != nil {
		t.Fatalf("detailBaseURL returned error: %v", err)
	}
	if got != "https://formation.sss.ch/Calendrier-des-Cours" {
		t.Fatalf("unexpected base: %s", got)
	}

	got, _ = detailBaseURL("https://formation.sss.ch/Detail", "https://other/")
	if got != "https://formation.sss.ch/Detail" {
		t.Fatalf("override ignored: %s", got)
	}
}

func TestSSSScannerFollowsNextPage(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/calendar", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("unexpected user agent: %s", r.Header.Get("User-Agent"))
		}
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `<table><tr data-key="201"><td class="titre">Télémark</td><td class="debut">10.01.2026</td></tr>
			<tr data-key="101"><td class="titre">dup</td></tr></table><a rel="next" href="/calendar?page=2">again</a>`)
			return
		}
		fmt.Fprintf(w, calendarPage, `<a rel="next" href="?page=2">suivant</a>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sc := NewSSSScanner(srv.Client(), WithUserAgent("test-agent"), WithRetryPolicy(fastRetry()))
	courses, err := sc.Scan(context.Background(), scanner.Request{
		SiteName:   "sss",
		Categories: []scanner.Category{{Name: "calendrier", URL: srv.URL + "/calendar"}},
	})
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}

	if len(courses) != 3 {
		t.Fatalf("expected 3 unique courses, got %d", len(courses))
	}
	if courses[2].ID != "201" || courses[2].URL != srv.URL+"/calendar#detail&key=201" {
		t.Fatalf("unexpected paged course: %+v", courses[2])
	}
}

func TestSSSScannerRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintf(w, calendarPage, "")
	}))
	defer srv.Close()

	sc := NewSSSScanner(srv.Client(), WithRetryPolicy(fastRetry()))
	courses, err := sc.Scan(context.Background(), scanner.Request{
		SiteName:   "sss",
		Categories: []scanner.Category{{Name: "calendrier", URL: srv.URL}},
	})
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
	if len(courses) != 2 {
		t.Fatalf("expected 2 courses, got %d", len(courses))
	}
}

func TestSSSScannerDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	sc := NewSSSScanner(srv.Client(), WithRetryPolicy(fastRetry()))
	_, err := sc.Scan(context.Background(), scanner.Request{
		SiteName:   "sss",
		Categories: []scanner.Category{{Name: "calendrier", URL: srv.URL}},
	})

	var herr *HTTPError
	if !errors.As(err, &herr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if herr.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", herr.StatusCode)
	}
	if calls.Load() != 1 {
		t.Fatalf("404 must not be retried, got %d calls", calls.Load())
	}
}

func TestSSSScannerDecodesDeclaredCharset(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<table><tr data-key=\"7\"><td class=\"lieu\">Gen\xe8ve</td></tr></table>"))
	}))
	defer srv.Close()

	sc := NewSSSScanner(srv.Client(), WithRetryPolicy(fastRetry()))
	courses, err := sc.Scan(context.Background(), scanner.Request{
		SiteName:   "sss",
		Categories: []scanner.Category{{Name: "calendrier", URL: srv.URL}},
	})
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(courses) != 1 || courses[0].Lieu != "Genève" {
		t.Fatalf("unexpected courses: %+v", courses)
	}
}

func TestSSSScannerRequiresCategories(t *testing.T) {
	t.Parallel()

	if _, err := NewSSSScanner(nil).Scan(context.Background(), scanner.Request{SiteName: "sss"}); err == nil {
		t.Fatalf("expected error without categories")
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	resp := &http.Response{Header: http.Header{}}
	if got := parseRetryAfter(resp); got != 0 {
		t.Fatalf("expected 0 without header, got %s", got)
	}
	resp.Header.Set("Retry-After", "3")
	if got := parseRetryAfter(resp); got != 3*time.Second {
		t.Fatalf("expected 3s, got %s", got)
	}
	resp.Header.Set("Retry-After", "soon")
	if got := parseRetryAfter(resp); got != 0 {
		t.Fatalf("expected 0 for garbage, got %s", got)
	}
}

func TestStrategySourceFetchAll(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, calendarPage, "")
	}))
	defer srv.Close()

	reg := scanner.NewRegistry()
	reg.Register(NewSSSScanner(srv.Client(), WithRetryPolicy(fastRetry())))

	sites := []config.SiteConfig{
		{Name: "sss", Scanner: "sss", Categories: []config.CategoryConfig{{Name: "a", URL: srv.URL + "/a"}}},
		{Name: "sss-mirror", Scanner: "sss", Categories: []config.CategoryConfig{{Name: "b", URL: srv.URL + "/b"}}},
	}
	source := NewStrategySource(reg, sites, nil)

	courses, err := source.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll returned error: %v", err)
	}
	if len(courses) != 2 {
		t.Fatalf("duplicate keys across sites should collapse, got %d", len(courses))
	}

	bad := NewStrategySource(reg, []config.SiteConfig{{Name: "x", Scanner: "missing"}}, nil)
	if _, err := bad.FetchAll(context.Background()); err == nil {
		t.Fatalf("expected error for unknown scanner")
	}
}
