package controller

import "testing"

func TestApply(t *testing.T) {
	base := State{Background: Int(0), Foreground: Int(1), SelectedRow: Int(2), Filter: "asth"}

	tests := []struct {
		name    string
		event   Event
		wantRow *int
		check   func(t *testing.T, s State)
	}{
		{
			name:    "foreground change resets row",
			event:   ForegroundChanged{Query: Int(2)},
			wantRow: nil,
			check: func(t *testing.T, s State) {
				if *s.Foreground != 2 {
					t.Errorf("foreground = %d, want 2", *s.Foreground)
				}
			},
		},
		{
			name:    "background change resets row",
			event:   BackgroundChanged{Query: nil},
			wantRow: nil,
			check: func(t *testing.T, s State) {
				if s.Background != nil {
					t.Errorf("background = %d, want nil", *s.Background)
				}
			},
		},
		{
			name:    "reselecting the same foreground keeps row",
			event:   ForegroundChanged{Query: Int(1)},
			wantRow: Int(2),
		},
		{
			name:    "row selected",
			event:   RowSelected{Row: Int(0)},
			wantRow: Int(0),
		},
		{
			name:    "filter keeps row",
			event:   FilterChanged{Text: "  cig "},
			wantRow: Int(2),
			check: func(t *testing.T, s State) {
				if s.Filter != "cig" {
					t.Errorf("filter = %q, want trimmed", s.Filter)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(base, tt.event)
			if !sameInt(got.SelectedRow, tt.wantRow) {
				t.Errorf("SelectedRow = %v, want %v", got.SelectedRow, tt.wantRow)
			}
			if tt.check != nil {
				tt.check(t, got)
			}
		})
	}

	if *base.SelectedRow != 2 || *base.Foreground != 1 {
		t.Error("Apply must not modify its input")
	}
}

func TestApply_DoesNotAliasEventPointers(t *testing.T) {
	row := 3
	s := Apply(State{}, RowSelected{Row: &row})
	row = 7
	if *s.SelectedRow != 3 {
		t.Errorf("SelectedRow = %d, want 3", *s.SelectedRow)
	}
}
