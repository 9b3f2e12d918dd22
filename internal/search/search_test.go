package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/shanehull/bottlescraper/internal/metrics"
	"github.com/shanehull/bottlescraper/internal/olcc"
	"github.com/shanehull/bottlescraper/internal/types"
)

func storeListPage(description, price string, addresses ...string) string {
	var rows strings.Builder
	for i, address := range addresses {
		fmt.Fprintf(&rows, "<tr><td>%d</td><td>Store</td><td>%s</td><td>97230</td><td>503-555-01%02d</td><td>10-8</td><td>%d</td><td>1.0</td></tr>\n", 1000+i, address, i, i+2)
	}
	return fmt.Sprintf(`<html><body>
<table><tr><th id="product-desc"><h2>%s</h2></th></tr>
<tr><th>Bottle Price:</th><td>%s</td></tr></table>
<table class="list">
<tr><th>Store</th><th>Location</th><th>Address</th><th>Zip</th><th>Phone</th><th>Hours</th><th>Qty</th><th>Dist</th></tr>
%s</table>
</body></html>`, description, price, rows.String())
}

const singleStorePage = `<html><body>
<table><tr><th id="product-desc"><h2>EAGLE RARE 10 YEAR</h2></th></tr>
<tr><th>Bottle Price:</th><td>$39.95</td></tr></table>
<div id="prod-loc-details">
  <div id="location-display"><p>5120 SE Powell Blvd</p><p>503-555-0199</p></div>
</div>
<div id="stock-display"><p>Quantity: 2</p></div>
</body></html>`

const noStockPage = `<html><body><p>No results found for your search.</p></body></html>`

// fakeSession serves canned pages by product code.
type fakeSession struct {
	primeErr error
	pages    map[string]string
	failures map[string]error
	searched []string
}

func (s *fakeSession) Prime(context.Context) error {
	return s.primeErr
}

func (s *fakeSession) Search(_ context.Context, code, zip, radius string) ([]byte, error) {
	s.searched = append(s.searched, code)
	if err, ok := s.failures[code]; ok {
		return nil, err
	}
	return []byte(s.pages[code]), nil
}

type memoryLog struct {
	lines []string
}

func (l *memoryLog) Append(text string) {
	l.lines = append(l.lines, text)
}

func (l *memoryLog) Appendf(format string, args ...any) {
	l.Append(fmt.Sprintf(format, args...))
}

func (l *memoryLog) contains(prefix string) bool {
	return slices.ContainsFunc(l.lines, func(line string) bool {
		return strings.HasPrefix(line, prefix)
	})
}

type fakeMaps struct {
	calls []mapRequest
	err   error
}

func (m *fakeMaps) Build(_ context.Context, entry types.CatalogEntry, zip string, addresses []string) (types.MapArtifact, error) {
	m.calls = append(m.calls, mapRequest{entry: entry, addresses: addresses})
	if m.err != nil {
		return types.MapArtifact{}, m.err
	}
	markers := make([]types.Marker, 0, len(addresses))
	for _, a := range addresses {
		markers = append(markers, types.Marker{Label: a})
	}
	return types.MapArtifact{
		ProductCode: entry.Code,
		ProductName: entry.Name,
		ZIP:         zip,
		URL:         "https://maps.example.com/" + entry.Code + "_" + zip + ".html",
		Markers:     markers,
	}, nil
}

type fakeNotifier struct {
	reports    []*types.Report
	recipients [][]string
	err        error
}

func (n *fakeNotifier) SendReport(report *types.Report, recipients []string) error {
	n.reports = append(n.reports, report)
	n.recipients = append(n.recipients, recipients)
	return n.err
}

// recordSleep collects requested delays without waiting.
type recordSleep struct {
	delays []time.Duration
}

func (s *recordSleep) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

type harness struct {
	session  *fakeSession
	log      *memoryLog
	maps     *fakeMaps
	notifier *fakeNotifier
	sleeper  *recordSleep
	metrics  *metrics.Metrics
	runner   *Runner
}

func newHarness(cfg Config, session *fakeSession, seed uint64) *harness {
	h := &harness{
		session:  session,
		log:      &memoryLog{},
		maps:     &fakeMaps{},
		notifier: &fakeNotifier{},
		sleeper:  &recordSleep{},
		metrics:  metrics.New(),
	}
	h.runner = NewRunner(cfg, session, h.log, rand.New(rand.NewPCG(seed, seed))).
		WithMaps(h.maps).
		WithNotifier(h.notifier).
		WithMetrics(h.metrics).
		WithSleep(h.sleeper.sleep).
		WithClock(func() time.Time { return time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC) })
	return h
}

func testConfig(catalog ...types.CatalogEntry) Config {
	return Config{
		ZIP:           "97230",
		Radius:        "30",
		Catalog:       catalog,
		PrimeDelayMin: 10 * time.Second,
		PrimeDelayMax: 30 * time.Second,
		ItemDelayMin:  15 * time.Second,
		ItemDelayMax:  40 * time.Second,
		Recipients:    []string{"portland@example.com"},
	}
}

var (
	weller    = types.CatalogEntry{Code: "8722B", Name: "W.L. Weller Antique 107"}
	missing   = types.CatalogEntry{Code: "9999B", Name: "Unlisted Bourbon"}
	eagleRare = types.CatalogEntry{Code: "0132B", Name: "Eagle Rare 10"}
)

func TestRunMultiStoreBuildsMapAndNotifies(t *testing.T) {
	session := &fakeSession{pages: map[string]string{
		weller.Code: storeListPage("W.L. WELLER ANTIQUE 107", "$59.95", "A", "B"),
	}}
	h := newHarness(testConfig(weller), session, 1)

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	body := report.String()
	require.Contains(t, body, "W.L. WELLER ANTIQUE 107: $59.95")
	require.Contains(t, body, "\tA\n")
	require.Contains(t, body, "\tB\n")
	require.Contains(t, body, "W.L. Weller Antique 107: https://maps.example.com/8722B_97230.html")

	require.Len(t, h.maps.calls, 1)
	require.Equal(t, []string{"A", "B"}, h.maps.calls[0].addresses)
	require.Len(t, report.Maps, 1)
	require.LessOrEqual(t, len(report.Maps[0].Markers), 2)

	require.Len(t, h.notifier.reports, 1)
	require.Same(t, report, h.notifier.reports[0])
	require.Equal(t, []string{"portland@example.com"}, h.notifier.recipients[0])

	require.True(t, h.log.contains("Stock found for item: W.L. Weller Antique 107: "))
	require.Equal(t, "Bot completed", h.log.lines[len(h.log.lines)-1])

	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ItemsTotal.WithLabelValues("multi-store")))
	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.EmailsTotal.WithLabelValues("sent")))
}

func TestRunNoStockLogsOnly(t *testing.T) {
	session := &fakeSession{pages: map[string]string{missing.Code: noStockPage}}
	h := newHarness(testConfig(missing), session, 1)

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	require.Empty(t, report.Sections)
	require.False(t, report.HasStock())
	require.Empty(t, h.maps.calls)
	require.True(t, h.log.contains("No stock found for item: Unlisted Bourbon"))
	require.Len(t, h.notifier.reports, 1)
}

func TestRunPrimeFailureAborts(t *testing.T) {
	primeErr := olcc.ErrTimeout{Err: context.DeadlineExceeded}
	session := &fakeSession{primeErr: primeErr}
	h := newHarness(testConfig(weller, missing), session, 1)

	report, err := h.runner.Run(context.Background())
	require.Nil(t, report)
	require.ErrorIs(t, err, ErrSessionEstablishment)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.Empty(t, session.searched)
	require.Empty(t, h.notifier.reports)
	require.Empty(t, h.sleeper.delays)
	require.Len(t, h.log.lines, 1)
	require.True(t, strings.HasPrefix(h.log.lines[0], "Session establishment failed: "))
	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ErrorsTotal.WithLabelValues("timeout")))
}

func TestRunItemFailureCountsAsNoStock(t *testing.T) {
	session := &fakeSession{
		pages:    map[string]string{eagleRare.Code: singleStorePage},
		failures: map[string]error{weller.Code: olcc.ErrStatus{Code: 503, URL: "http://olcc.test"}},
	}
	h := newHarness(testConfig(weller, eagleRare), session, 3)

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Sections, 1)
	require.Contains(t, report.Sections[0], "EAGLE RARE 10 YEAR: $39.95")
	require.Empty(t, h.maps.calls)

	require.True(t, h.log.contains("Request failed for item: W.L. Weller Antique 107: "))
	require.False(t, h.log.contains("No stock found for item: W.L. Weller Antique 107"))

	outcomes := h.runner.Outcomes()
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		switch o.Entry.Code {
		case weller.Code:
			require.Equal(t, types.NoStock, o.Kind)
			require.Error(t, o.Err)
		case eagleRare.Code:
			require.Equal(t, types.SingleStore, o.Kind)
			require.Equal(t, 1, o.Stores)
		}
	}
	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ErrorsTotal.WithLabelValues("status")))
}

func TestRunDelays(t *testing.T) {
	session := &fakeSession{pages: map[string]string{}}
	cfg := testConfig(weller, missing, eagleRare)
	h := newHarness(cfg, session, 9)

	_, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	// One priming delay, then one between each pair of items.
	require.Len(t, h.sleeper.delays, 3)
	prime := h.sleeper.delays[0]
	require.GreaterOrEqual(t, prime, cfg.PrimeDelayMin)
	require.LessOrEqual(t, prime, cfg.PrimeDelayMax)
	for _, d := range h.sleeper.delays[1:] {
		require.GreaterOrEqual(t, d, cfg.ItemDelayMin)
		require.LessOrEqual(t, d, cfg.ItemDelayMax)
	}
}

func TestRunSameSeedSameOutcomes(t *testing.T) {
	catalog := []types.CatalogEntry{weller, missing, eagleRare,
		{Code: "2657B", Name: "Blanton's"}, {Code: "6374B", Name: "Weller Full Proof"}}
	pages := map[string]string{
		weller.Code:    storeListPage("WELLER", "$59.95", "A", "B"),
		eagleRare.Code: singleStorePage,
	}

	kinds := func(seed uint64) (order []string, byCode map[string]types.StockKind) {
		h := newHarness(testConfig(catalog...), &fakeSession{pages: pages}, seed)
		_, err := h.runner.Run(context.Background())
		require.NoError(t, err)
		byCode = map[string]types.StockKind{}
		for _, o := range h.runner.Outcomes() {
			order = append(order, o.Entry.Code)
			byCode[o.Entry.Code] = o.Kind
		}
		return order, byCode
	}

	orderA, kindsA := kinds(42)
	orderB, kindsB := kinds(42)
	_, kindsC := kinds(7)

	require.Equal(t, orderA, orderB)
	if diff := cmp.Diff(kindsA, kindsB); diff != "" {
		t.Errorf("outcomes differ for the same seed (-a +b):\n%s", diff)
	}
	if diff := cmp.Diff(kindsA, kindsC); diff != "" {
		t.Errorf("outcomes depend on search order (-a +c):\n%s", diff)
	}
	require.ElementsMatch(t, []string{"8722B", "9999B", "0132B", "2657B", "6374B"}, orderA)
}

func TestRunShuffleDoesNotMutateCatalog(t *testing.T) {
	catalog := []types.CatalogEntry{weller, missing, eagleRare}
	before := slices.Clone(catalog)
	h := newHarness(testConfig(catalog...), &fakeSession{pages: map[string]string{}}, 5)

	_, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, before, catalog)
}

func TestRunNotificationAndMapFailuresAreRecorded(t *testing.T) {
	session := &fakeSession{pages: map[string]string{
		weller.Code: storeListPage("WELLER", "$59.95", "A"),
	}}
	h := newHarness(testConfig(weller), session, 1)
	h.maps.err = errors.New("disk full")
	h.notifier.err = errors.New("535 auth failed")

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	require.Empty(t, report.Maps)
	require.True(t, h.log.contains("Email delivery failed: 535 auth failed"))
	require.Equal(t, "Bot completed", h.log.lines[len(h.log.lines)-1])
	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.EmailsTotal.WithLabelValues("failed")))
}

func TestRunInterruptedDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	session := &fakeSession{pages: map[string]string{}}
	h := newHarness(testConfig(weller, missing), session, 1)
	h.runner.WithSleep(func(ctx context.Context, d time.Duration) error {
		if len(session.searched) == 1 {
			cancel()
		}
		return ctx.Err()
	})

	report, err := h.runner.Run(ctx)
	require.Nil(t, report)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, session.searched, 1)
	require.Empty(t, h.notifier.reports)
	require.True(t, h.log.contains("Bot interrupted: "))
}

func TestSleepHonoursContext(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
