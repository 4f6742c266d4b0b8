package store

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWhereBuilder_Empty(t *testing.T) {
	wb := newWhereBuilder()
	whereClause, args := wb.Build()

	if whereClause != "" {
		t.Errorf("expected empty string for no conditions, got %q", whereClause)
	}
	if args != nil {
		t.Errorf("expected nil args for no conditions, got %v", args)
	}
	if wb.NextArgIndex() != 1 {
		t.Errorf("expected NextArgIndex 1, got %d", wb.NextArgIndex())
	}
}

func TestWhereBuilder_Add(t *testing.T) {
	wb := newWhereBuilder()
	wb.Add("status", "")
	wb.Add("status", "complete")
	wb.AddFold("merchant", "  Acme Co ")
	wb.AddFold("title", "")

	whereClause, args := wb.Build()

	expectedClause := " WHERE status = $1 AND lower(merchant) = lower($2)"
	if whereClause != expectedClause {
		t.Errorf("expected %q, got %q", expectedClause, whereClause)
	}
	if diff := cmp.Diff([]any{"complete", "Acme Co"}, args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
	if wb.NextArgIndex() != 3 {
		t.Errorf("expected NextArgIndex 3, got %d", wb.NextArgIndex())
	}
}

func TestWhereBuilder_AddSearch(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		cols       []string
		wantClause string
		wantArgs   []any
	}{
		{
			name:       "empty query skipped",
			query:      "  ",
			cols:       []string{"title"},
			wantClause: "",
		},
		{
			name:       "no columns skipped",
			query:      "acme",
			wantClause: "",
		},
		{
			name:       "single column",
			query:      "acme",
			cols:       []string{"title"},
			wantClause: " WHERE (title ILIKE $1)",
			wantArgs:   []any{"%acme%"},
		},
		{
			name:       "columns share one placeholder",
			query:      "q1",
			cols:       []string{"id::text", "file_name", "notes"},
			wantClause: " WHERE (id::text ILIKE $1 OR file_name ILIKE $1 OR notes ILIKE $1)",
			wantArgs:   []any{"%q1%"},
		},
		{
			name:       "wildcards escaped",
			query:      `50%_off\`,
			cols:       []string{"title"},
			wantClause: " WHERE (title ILIKE $1)",
			wantArgs:   []any{`%50\%\_off\\%`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb := newWhereBuilder()
			wb.AddSearch(tt.query, tt.cols...)

			gotClause, gotArgs := wb.Build()
			if gotClause != tt.wantClause {
				t.Errorf("clause = %q, want %q", gotClause, tt.wantClause)
			}
			if diff := cmp.Diff(tt.wantArgs, gotArgs); diff != "" {
				t.Errorf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWhereBuilder_Combined(t *testing.T) {
	wb := newWhereBuilder()
	wb.AddFold("merchant", "acme")
	wb.AddTagged("tags", "q3")
	wb.AddSearch("ups", "title", "notes")

	whereClause, args := wb.Build()

	want := " WHERE lower(merchant) = lower($1) AND $2 = ANY(tags) AND (title ILIKE $3 OR notes ILIKE $3)"
	if whereClause != want {
		t.Errorf("clause = %q, want %q", whereClause, want)
	}
	if len(args) != 3 {
		t.Errorf("expected 3 args, got %d", len(args))
	}
}
