package web

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/labliq/internal/config"
	"github.com/JonMunkholm/labliq/internal/core"
	"github.com/JonMunkholm/labliq/internal/results"
	"github.com/JonMunkholm/labliq/internal/store"
	"github.com/JonMunkholm/labliq/internal/upstream"
)

// ============================================================================
// Fakes
// ============================================================================

type stubEngine struct {
	resp *upstream.Response
	err  error
}

func (e stubEngine) Analyze(ctx context.Context, req upstream.Request) (*upstream.Response, error) {
	return e.resp, e.err
}

type memRepo struct {
	mu     sync.Mutex
	items  map[string]*store.Analysis
	nextID int
}

func newMemRepo() *memRepo {
	return &memRepo{items: make(map[string]*store.Analysis)}
}

func (m *memRepo) Create(ctx context.Context, a *store.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = fmt.Sprintf("a%d", m.nextID)
	a.RowCount = len(a.Rows)
	a.Status = store.StatusComplete
	cp := *a
	m.items[a.ID] = &cp
	return nil
}

func (m *memRepo) Get(ctx context.Context, id string) (*store.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) List(ctx context.Context, f store.HistoryFilter) (*store.HistoryPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f = f.Normalize()
	page := &store.HistoryPage{Items: []store.Analysis{}, Limit: f.Limit, Offset: f.Offset}
	for _, a := range m.items {
		if f.Merchant != "" && !strings.EqualFold(a.Merchant, f.Merchant) {
			continue
		}
		if f.FileID != "" && a.FileID != f.FileID {
			continue
		}
		page.Items = append(page.Items, *a)
	}
	page.Total = int64(len(page.Items))
	return page, nil
}

func (m *memRepo) UpdateMeta(ctx context.Context, id string, u store.MetaUpdate) (*store.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if u.Title != nil {
		a.Title = *u.Title
	}
	if u.Merchant != nil {
		a.Merchant = *u.Merchant
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memRepo) Merchants(ctx context.Context) ([]store.MerchantCount, error) {
	return []store.MerchantCount{{Merchant: "acme", Count: 1}}, nil
}

func (m *memRepo) PurgeOlderThan(ctx context.Context, days, batchSize int) ([]string, error) {
	return nil, nil
}

// ============================================================================
// Helpers
// ============================================================================

func testRows() []results.Row {
	return []results.Row{
		{RowIndex: 1, Weight: 1, Zone: results.ZoneOf(5), CarrierRate: 12, FinalRate: 10, Savings: 2},
		{RowIndex: 2, Weight: 2, Zone: results.ZoneOf(5), CarrierRate: 25, FinalRate: 30, Savings: -5},
		{RowIndex: 3, Weight: 3, CarrierRate: 20, FinalRate: 20, Errors: "missing zone"},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			RequestTimeout: time.Minute,
			MaxBodyBytes:   1 << 20,
		},
		Results: config.ResultsConfig{PageSize: 50, MaxPageSize: 500},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	engine := stubEngine{resp: &upstream.Response{Rows: testRows()}}
	svc := core.NewService(engine, repo, core.Options{
		PageSize:    cfg.Results.PageSize,
		MaxPageSize: cfg.Results.MaxPageSize,
	})
	s := NewServer(svc, cfg)
	t.Cleanup(s.stopLimiters)
	return s, repo
}

// seed stores one analysis directly and returns its ID.
func seed(t *testing.T, repo *memRepo) string {
	t.Helper()
	a := &store.Analysis{Merchant: "acme", Rows: testRows(), Summary: results.Summarize(testRows())}
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	return a.ID
}

func do(s *Server, method, target, body string, hdr ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Code
}

// ============================================================================
// Tests
// ============================================================================

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	rec := do(s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestRunAnalysis(t *testing.T) {
	s, repo := newTestServer(t, testConfig())
	body := `{"fileId":"f1","fileName":"march.csv","merchant":"acme",
		"mapping":{"weight":"Weight","carrier_rate":"Rate"}}`

	rec := do(s, http.MethodPost, "/api/analysis", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var got store.Analysis
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Rows != nil {
		t.Error("response should not carry rows")
	}
	if got.RowCount != 3 || got.Summary.Count != 3 {
		t.Errorf("row_count = %d, summary.count = %d", got.RowCount, got.Summary.Count)
	}
	if loc := rec.Header().Get("Location"); loc != "/api/analyses/"+got.ID {
		t.Errorf("Location = %q", loc)
	}

	stored, _ := repo.Get(context.Background(), got.ID)
	if len(stored.Rows) != 3 {
		t.Errorf("stored rows = %d, want 3", len(stored.Rows))
	}
}

func TestRunAnalysis_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"malformed json", `{"fileId":`, http.StatusBadRequest, "REQ003"},
		{"missing mapping", `{"fileId":"f1"}`, http.StatusBadRequest, "REQ001"},
		{"bad settings", `{"fileId":"f1","mapping":{"weight":"w","carrier_rate":"r"},"settings":{"weightUnit":"stone"}}`,
			http.StatusBadRequest, "REQ001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, testConfig())
			rec := do(s, http.MethodPost, "/api/analysis", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if code := errorCode(t, rec); code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestRunAnalysis_BodyTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxBodyBytes = 16
	s, _ := newTestServer(t, cfg)

	rec := do(s, http.MethodPost, "/api/analysis", `{"fileId":"a-very-long-file-id-value"}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestGetAnalysis(t *testing.T) {
	s, repo := newTestServer(t, testConfig())
	id := seed(t, repo)

	rec := do(s, http.MethodGet, "/api/analyses/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got map[string]any
	json.NewDecoder(rec.Body).Decode(&got)
	if _, ok := got["rows"]; ok {
		t.Error("metadata should omit rows")
	}
	if got["merchant"] != "acme" {
		t.Errorf("merchant = %v", got["merchant"])
	}

	rec = do(s, http.MethodGet, "/api/analyses/missing", "")
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "ANL001" {
		t.Errorf("missing analysis: status %d", rec.Code)
	}
}

func TestResultRows(t *testing.T) {
	s, repo := newTestServer(t, testConfig())
	id := seed(t, repo)

	tests := []struct {
		name      string
		query     string
		wantIdx   []int
		wantPage  int
		wantPages int
		wantSort  results.SortState
	}{
		{"default", "", []int{1, 2, 3}, 1, 1, results.DefaultSort()},
		{"sorted desc", "?sort=final_rate&dir=desc", []int{2, 3, 1}, 1, 1,
			results.SortState{Key: results.KeyFinalRate, Dir: results.Desc}},
		{"zone filter", "?zone=5", []int{1, 2}, 1, 1, results.DefaultSort()},
		{"second page", "?page=2&page_size=2", []int{3}, 2, 2, results.DefaultSort()},
		{"page clamped", "?page=9&page_size=2", []int{3}, 2, 2, results.DefaultSort()},
		{"toggle resets page", "?sort=final_rate&dir=asc&toggle=final_rate&page=2&page_size=2",
			[]int{2, 3}, 1, 2, results.SortState{Key: results.KeyFinalRate, Dir: results.Desc}},
		{"errors only", "?errors=with_errors", []int{3}, 1, 1, results.DefaultSort()},
		{"negative savings", "?savings=negative", []int{2}, 1, 1, results.DefaultSort()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, http.MethodGet, "/api/analyses/"+id+"/rows"+tt.query, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			var page results.Page
			if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
				t.Fatal(err)
			}
			var idx []int
			for _, r := range page.Rows {
				idx = append(idx, r.RowIndex)
			}
			if diff := cmp.Diff(tt.wantIdx, idx); diff != "" {
				t.Errorf("row order mismatch (-want +got):\n%s", diff)
			}
			if page.Page != tt.wantPage || page.TotalPages != tt.wantPages {
				t.Errorf("page %d of %d, want %d of %d", page.Page, page.TotalPages, tt.wantPage, tt.wantPages)
			}
			if page.Sort != tt.wantSort {
				t.Errorf("sort = %+v, want %+v", page.Sort, tt.wantSort)
			}
		})
	}
}

func TestResultRows_BadParams(t *testing.T) {
	s, repo := newTestServer(t, testConfig())
	id := seed(t, repo)

	tests := []struct {
		query    string
		wantCode string
	}{
		{"?sort=nope", "REQ002"},
		{"?toggle=nope", "REQ002"},
		{"?savings=lots", "REQ001"},
		{"?errors=maybe", "REQ001"},
	}
	for _, tt := range tests {
		rec := do(s, http.MethodGet, "/api/analyses/"+id+"/rows"+tt.query, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tt.query, rec.Code)
			continue
		}
		if code := errorCode(t, rec); code != tt.wantCode {
			t.Errorf("%s: code = %q, want %q", tt.query, code, tt.wantCode)
		}
	}
}

func TestExport(t *testing.T) {
	s, repo := newTestServer(t, testConfig())
	id := seed(t, repo)

	rec := do(s, http.MethodGet, "/api/analyses/"+id+"/export?zone=5&sort=final_rate&dir=desc&totals=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != results.CSVContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	want := fmt.Sprintf(`attachment; filename="%s"`, results.ExportFilename(time.Now()))
	if cd := rec.Header().Get("Content-Disposition"); cd != want {
		t.Errorf("Content-Disposition = %q, want %q", cd, want)
	}
	if n := rec.Header().Get("X-Export-Rows"); n != "2" {
		t.Errorf("X-Export-Rows = %q, want 2", n)
	}

	records, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	// header, two rows, totals
	if len(records) != 4 {
		t.Fatalf("records = %d, want 4", len(records))
	}
	if records[1][0] != "2" || records[2][0] != "1" {
		t.Errorf("row order = %s, %s; want 2, 1", records[1][0], records[2][0])
	}
}

func TestExport_NoData(t *testing.T) {
	s, repo := newTestServer(t, testConfig())
	id := seed(t, repo)

	rec := do(s, http.MethodGet, "/api/analyses/"+id+"/export?zone=8", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if rec.Header().Get("Content-Disposition") != "" {
		t.Error("failed export should not be an attachment")
	}
	if code := errorCode(t, rec); code != "EXP001" {
		t.Errorf("code = %q, want EXP001", code)
	}
}

func TestResultsTable(t *testing.T) {
	s, repo := newTestServer(t, testConfig())
	id := seed(t, repo)

	rec := do(s, http.MethodGet, "/analysis/"+id+"/table?zone=5", "", "HX-Request", "true")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`id="results-table"`, "2 of 3 rows", "$30.00", "toggle=final_rate"} {
		if !strings.Contains(body, want) {
			t.Errorf("table missing %q", want)
		}
	}

	rec = do(s, http.MethodGet, "/analysis/missing/table", "", "HX-Request", "true")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "ANL001") {
		t.Errorf("missing table: %d %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateAndDelete(t *testing.T) {
	s, repo := newTestServer(t, testConfig())
	id := seed(t, repo)

	rec := do(s, http.MethodPatch, "/api/analyses/"+id, `{"title":"March"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d", rec.Code)
	}
	var got store.Analysis
	json.NewDecoder(rec.Body).Decode(&got)
	if got.Title != "March" {
		t.Errorf("title = %q", got.Title)
	}

	if rec := do(s, http.MethodPatch, "/api/analyses/"+id, `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty patch status = %d, want 400", rec.Code)
	}

	if rec := do(s, http.MethodDelete, "/api/analyses/"+id, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	if rec := do(s, http.MethodGet, "/api/analyses/"+id, ""); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", rec.Code)
	}
}

func TestListEndpoints(t *testing.T) {
	s, repo := newTestServer(t, testConfig())
	seed(t, repo)

	rec := do(s, http.MethodGet, "/api/analyses?merchant=ACME&limit=10", "")
	var page store.HistoryPage
	json.NewDecoder(rec.Body).Decode(&page)
	if page.Total != 1 || page.Limit != 10 {
		t.Errorf("history = %+v", page)
	}

	rec = do(s, http.MethodGet, "/api/analyses?file_id=other-file", "")
	page = store.HistoryPage{}
	json.NewDecoder(rec.Body).Decode(&page)
	if page.Total != 0 {
		t.Errorf("file_id filter: history = %+v", page)
	}

	rec = do(s, http.MethodGet, "/api/merchants", "")
	var m []store.MerchantCount
	json.NewDecoder(rec.Body).Decode(&m)
	if len(m) != 1 || m[0].Merchant != "acme" {
		t.Errorf("merchants = %+v", m)
	}

	rec = do(s, http.MethodGet, "/api/settings/defaults", "")
	var settings upstream.Settings
	json.NewDecoder(rec.Body).Decode(&settings)
	if diff := cmp.Diff(upstream.DefaultSettings(), settings); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}

	rec = do(s, http.MethodGet, "/api/status", "")
	var status core.LimiterStatus
	json.NewDecoder(rec.Body).Decode(&status)
	if status.MaxConcurrent != core.DefaultMaxConcurrentAnalyses || status.Active != 0 {
		t.Errorf("status = %+v", status)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	s, repo := newTestServer(t, cfg)
	id := seed(t, repo)

	tests := []struct {
		name   string
		target string
		hdr    []string
		want   int
	}{
		{"api without key", "/api/status", nil, http.StatusUnauthorized},
		{"api with key", "/api/status", []string{"X-API-Key", "secret"}, http.StatusOK},
		{"table without key", "/analysis/" + id + "/table", nil, http.StatusUnauthorized},
		{"table with wrong key", "/analysis/" + id + "/table", []string{"X-API-Key", "nope"}, http.StatusForbidden},
		{"table with key", "/analysis/" + id + "/table", []string{"X-API-Key", "secret"}, http.StatusOK},
		{"health needs no key", "/healthz", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(s, http.MethodGet, tt.target, "", tt.hdr...); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, AnalysisLimit: 1}
	s, _ := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		if rec := do(s, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
	rec := do(s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
}
