package templates

import (
	"context"
	"strings"
	"testing"

	"github.com/JonMunkholm/labliq/internal/results"
)

func testPage() *results.Page {
	return &results.Page{
		Rows: []results.Row{
			{RowIndex: 1, Weight: 2, Zone: results.ZoneOf(5), CarrierRate: 12, FinalRate: 10, Savings: 2, DestZip: "94105"},
			{RowIndex: 2, Weight: 1, CarrierRate: 9, FinalRate: 30, Savings: -21, DestZip: "<b>x</b>", Errors: "bad zip"},
		},
		Page:         2,
		PageSize:     2,
		TotalPages:   3,
		TotalRows:    6,
		FilteredRows: 5,
		Sort:         results.SortState{Key: results.KeyFinalRate, Dir: results.Desc},
		Criteria:     results.Criteria{Zone: "5", Savings: results.SavingsAll, Errors: results.ErrorsAll},
	}
}

func TestResultsTable(t *testing.T) {
	var sb strings.Builder
	if err := ResultsTable("/analysis/a1/table", testPage()).Render(context.Background(), &sb); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := sb.String()

	tests := []struct {
		name string
		want string
	}{
		{"container", `<div id="results-table" class="results-table">`},
		{"count", `5 of 6 rows`},
		{"sort indicator", `Final Rate ▼`},
		{"toggle link keeps filters", `toggle=final_rate`},
		{"zone filter kept", `zone=5`},
		{"negative money", `-$21.00`},
		{"error row", `<tr class="row-error">`},
		{"cell escaped", `&lt;b&gt;x&lt;/b&gt;`},
		{"previous link", `page=1`},
		{"next link", `page=3`},
		{"pager", `<span>Page 2 of 3</span>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(out, tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out)
			}
		})
	}
	if strings.Contains(out, "<b>x</b>") {
		t.Error("cell value rendered unescaped")
	}
}

func TestResultsTable_Empty(t *testing.T) {
	page := &results.Page{Page: 1, PageSize: 10, Sort: results.DefaultSort()}

	var sb strings.Builder
	if err := ResultsTable("/analysis/a1/table", page).Render(context.Background(), &sb); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := sb.String()

	for _, want := range []string{"No rows match the current filters", `colspan="9"`, "Page 1 of 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	for _, unwanted := range []string{">Previous<", ">Next<"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("single page should not render %q", unwanted)
		}
	}
}

func TestErrorAlert(t *testing.T) {
	tests := []struct {
		name    string
		message string
		action  string
		want    []string
		notWant string
	}{
		{
			name:    "with action",
			message: "Analysis not found",
			action:  "Run a new analysis",
			want:    []string{"<strong>Analysis not found</strong>", "<span>Run a new analysis</span>", "<code>RES001</code>"},
		},
		{
			name:    "without action",
			message: "Engine unavailable",
			want:    []string{"<strong>Engine unavailable</strong>", "<code>RES001</code>"},
			notWant: "<span>",
		},
		{
			name:    "escaped",
			message: `<img src=x onerror="alert(1)">`,
			want:    []string{"&lt;img src=x onerror=&#34;alert(1)&#34;&gt;"},
			notWant: "<img",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sb strings.Builder
			if err := ErrorAlert(tt.message, tt.action, "RES001").Render(context.Background(), &sb); err != nil {
				t.Fatalf("Render: %v", err)
			}
			out := sb.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			if tt.notWant != "" && strings.Contains(out, tt.notWant) {
				t.Errorf("output contains %q:\n%s", tt.notWant, out)
			}
		})
	}
}
