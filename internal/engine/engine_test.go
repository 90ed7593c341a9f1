package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/IshaanNene/imgharvest/internal/automation"
	"github.com/IshaanNene/imgharvest/internal/config"
	"github.com/IshaanNene/imgharvest/internal/fetcher"
	"github.com/IshaanNene/imgharvest/internal/observability"
	"github.com/IshaanNene/imgharvest/internal/pacing"
	"github.com/IshaanNene/imgharvest/internal/parser"
	"github.com/IshaanNene/imgharvest/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var noPacing = Pacing{
	InitialSettle: pacing.None,
	ScrollSettle:  pacing.None,
	ThinkTime:     pacing.None,
	Throttle:      pacing.None,
	RetryDelay:    pacing.None,
}

// staticPage is a parsed listing whose height never changes and whose
// viewport already covers the whole document.
type staticPage struct {
	*parser.Snapshot
	scrolls int
}

func (p *staticPage) ScrollMetrics(context.Context) (automation.ScrollMetrics, error) {
	return automation.ScrollMetrics{DocumentHeight: 1000, ViewportOffset: 0, ViewportHeight: 1000}, nil
}

func (p *staticPage) ScrollBy(context.Context, int) error {
	p.scrolls++
	return nil
}

func newStaticPage(t *testing.T, html string) *staticPage {
	t.Helper()
	snap, err := parser.ParseSnapshot(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	return &staticPage{Snapshot: snap}
}

func listingHTML(base string) string {
	return fmt.Sprintf(`<html><body><ul>
<li class="product-base"><img src="%[1]s/img/0.jpg"><h3 class="product-brand">Roadster</h3><h4 class="product-product">Shirt</h4></li>
<li class="product-base"><h3 class="product-brand">NoImage</h3></li>
<li class="product-base"><img src="%[1]s/img/2.jpg"><h4 class="product-product">Tee</h4></li>
<li class="product-base"><img src="%[1]s/missing.jpg"><h3 class="product-brand">HRX by Hrithik</h3></li>
</ul></body></html>`, base)
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Download.OutputDir = filepath.Join(t.TempDir(), "images")
	cfg.Scroll.MaxRounds = 10
	return cfg
}

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/img/") {
			w.Write([]byte("jpeg:" + r.URL.Path))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunEndToEnd(t *testing.T) {
	srv := imageServer(t)
	cfg := testConfig(t)
	page := newStaticPage(t, listingHTML(srv.URL))

	var observed []int
	e := New(cfg, fetcher.NewHTTPFetcher(cfg, testLogger), observability.NewMetrics(testLogger), testLogger,
		WithPacing(noPacing),
		WithRoundObserver(func(round int, _ automation.ScrollState) { observed = append(observed, round) }),
	)

	res, err := e.Run(context.Background(), page, func([]types.ImageRecord) bool { return true })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// At the bottom from the start, so the run ends once stagnation hits 3.
	if res.Rounds != 3 || page.scrolls != 3 || len(observed) != 3 {
		t.Errorf("expected 3 rounds, got rounds=%d scrolls=%d observed=%d", res.Rounds, page.scrolls, len(observed))
	}

	if len(res.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(res.Records))
	}
	wantIdx := []int{0, 2, 3}
	for i, r := range res.Records {
		if r.SequenceIndex != wantIdx[i] {
			t.Errorf("record %d: index %d, want %d", i, r.SequenceIndex, wantIdx[i])
		}
	}
	if res.Records[1].BrandLabel != "product_2" || res.Records[1].DisplayName != "Tee" {
		t.Errorf("unexpected fallback record: %+v", res.Records[1])
	}

	if !res.Downloaded || len(res.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(res.Outcomes))
	}
	s := res.Summary()
	if s.Succeeded != 2 || s.Failed != 1 || s.Records != 3 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if res.Outcomes[2].Status.Code != http.StatusNotFound {
		t.Errorf("expected 404 for the missing image, got %s", res.Outcomes[2].Status)
	}

	got, err := os.ReadFile(filepath.Join(cfg.Download.OutputDir, "0_Roadster.jpg"))
	if err != nil || string(got) != "jpeg:/img/0.jpg" {
		t.Errorf("unexpected file contents %q (err %v)", got, err)
	}
	if e.GetState() != StateDone {
		t.Errorf("expected state done, got %s", e.GetState())
	}
	e.LogSummary(res)
}

func TestRunDeclinedSkipsDownload(t *testing.T) {
	srv := imageServer(t)
	cfg := testConfig(t)
	page := newStaticPage(t, listingHTML(srv.URL))

	e := New(cfg, fetcher.NewHTTPFetcher(cfg, testLogger), observability.NewMetrics(testLogger), testLogger, WithPacing(noPacing))
	res, err := e.Run(context.Background(), page, func([]types.ImageRecord) bool { return false })
	if err != nil {
		t.Fatal(err)
	}
	if res.Downloaded || len(res.Outcomes) != 0 {
		t.Error("download phase should have been skipped")
	}
	if _, err := os.Stat(cfg.Download.OutputDir); !os.IsNotExist(err) {
		t.Error("output directory should not be created when downloads are declined")
	}
}

func TestRunEmptyPage(t *testing.T) {
	cfg := testConfig(t)
	page := newStaticPage(t, `<html><body><p>nothing here</p></body></html>`)

	called := false
	e := New(cfg, nil, observability.NewMetrics(testLogger), testLogger, WithPacing(noPacing))
	res, err := e.Run(context.Background(), page, func([]types.ImageRecord) bool { called = true; return true })
	if err != nil {
		t.Fatalf("an empty page is not an error: %v", err)
	}
	if len(res.Records) != 0 || called {
		t.Errorf("expected no records and no approval prompt, got %d records", len(res.Records))
	}
}

func TestRunExtractedHookFiresOnEmptyPage(t *testing.T) {
	cfg := testConfig(t)
	page := newStaticPage(t, `<html><body><p>nothing here</p></body></html>`)

	hookCalls, approveCalls := 0, 0
	var seen []types.ImageRecord
	hook := func(_ context.Context, records []types.ImageRecord) {
		hookCalls++
		seen = records
	}
	e := New(cfg, nil, observability.NewMetrics(testLogger), testLogger,
		WithPacing(noPacing), WithExtractedHook(hook))

	_, err := e.Run(context.Background(), page, func([]types.ImageRecord) bool { approveCalls++; return false })
	if err != nil {
		t.Fatal(err)
	}
	if hookCalls != 1 || len(seen) != 0 {
		t.Errorf("hook calls = %d with %d records, want 1 call with 0 records", hookCalls, len(seen))
	}
	if approveCalls != 0 {
		t.Errorf("approve should not be asked on an empty page, called %d times", approveCalls)
	}
}

func TestRunExtractedHookSeesRecordsWhenDeclined(t *testing.T) {
	cfg := testConfig(t)

	var seen []types.ImageRecord
	e := New(cfg, nil, observability.NewMetrics(testLogger), testLogger,
		WithPacing(noPacing), WithExtractedHook(func(_ context.Context, records []types.ImageRecord) { seen = records }))

	res, err := e.Run(context.Background(), newStaticPage(t, listingHTML("https://cdn.example.com")),
		func([]types.ImageRecord) bool { return false })
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) == 0 || len(seen) != len(res.Records) {
		t.Errorf("hook saw %d records, run extracted %d", len(seen), len(res.Records))
	}
}

func TestRunInvalidContainerSelector(t *testing.T) {
	cfg := testConfig(t)
	cfg.Extract.ContainerSelector = "div["

	e := New(cfg, nil, observability.NewMetrics(testLogger), testLogger, WithPacing(noPacing))
	_, err := e.Run(context.Background(), newStaticPage(t, listingHTML("https://cdn.example.com")), nil)
	if err == nil {
		t.Fatal("expected an error for a malformed container selector")
	}
	if errors.Is(err, types.ErrNoContentFound) {
		t.Errorf("a malformed selector must not read as an empty page: %v", err)
	}
}

func TestRunMaxItems(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, `<div class="product-base"><img src="https://cdn.example.com/%d.jpg"></div>`, i)
	}
	b.WriteString("</body></html>")

	cfg := testConfig(t)
	cfg.Extract.MaxItems = 5
	e := New(cfg, nil, observability.NewMetrics(testLogger), testLogger, WithPacing(noPacing))

	res, err := e.Run(context.Background(), newStaticPage(t, b.String()), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 5 {
		t.Errorf("expected 5 records, got %d", len(res.Records))
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testConfig(t)
	e := New(cfg, nil, observability.NewMetrics(testLogger), testLogger, WithPacing(noPacing))
	_, err := e.Run(ctx, newStaticPage(t, listingHTML("https://cdn.example.com")), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDownloadWithoutFetcher(t *testing.T) {
	e := New(testConfig(t), nil, observability.NewMetrics(testLogger), testLogger, WithPacing(noPacing))
	if _, err := e.Download(context.Background(), nil); err == nil {
		t.Fatal("expected an error without a fetcher")
	}
}

func TestPacingFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	p := PacingFromConfig(cfg)

	if d := p.ScrollSettle.Delay(1); d != cfg.Scroll.Pause {
		t.Errorf("scroll settle = %s, want %s", d, cfg.Scroll.Pause)
	}
	for i := 0; i < 50; i++ {
		if d := p.Throttle.Delay(i); d < cfg.Download.ThrottleMin || d > cfg.Download.ThrottleMax {
			t.Fatalf("throttle %s outside [%s, %s]", d, cfg.Download.ThrottleMin, cfg.Download.ThrottleMax)
		}
		if d := p.ThinkTime.Delay(i); d < cfg.Extract.ThinkMin || d > cfg.Extract.ThinkMax {
			t.Fatalf("think time %s outside range", d)
		}
	}
}

func TestStateString(t *testing.T) {
	if StateDownloading.String() != "downloading" || State(42).String() != "unknown" {
		t.Error("unexpected state names")
	}
}
