// Package controller derives everything the dashboard shows from an explicit State.
// Widgets emit Events, Apply folds them into a new State, and Derive recomputes every
// cell from scratch.
package controller

import "strings"

// State is the complete set of user selections. Nil pointers mean nothing is selected.
type State struct {
	Background  *int   `json:"bg"`
	Foreground  *int   `json:"fg"`
	SelectedRow *int   `json:"row"`
	Filter      string `json:"q,omitempty"`
}

// Event is a user interaction.
type Event interface {
	event()
}

// BackgroundChanged is emitted by the background dropdown.
type BackgroundChanged struct{ Query *int }

// ForegroundChanged is emitted by the foreground dropdown.
type ForegroundChanged struct{ Query *int }

// RowSelected is emitted by the ranked table's radio buttons.
type RowSelected struct{ Row *int }

// FilterChanged is emitted by the table's concept-name filter box.
type FilterChanged struct{ Text string }

func (BackgroundChanged) event() {}
func (ForegroundChanged) event() {}
func (RowSelected) event()       {}
func (FilterChanged) event()     {}

// Apply returns the state after ev. Changing either query invalidates the row selection
// because row indices refer to a specific ranked table.
func Apply(s State, ev Event) State {
	switch e := ev.(type) {
	case BackgroundChanged:
		if !sameInt(s.Background, e.Query) {
			s.SelectedRow = nil
		}
		s.Background = copyInt(e.Query)
	case ForegroundChanged:
		if !sameInt(s.Foreground, e.Query) {
			s.SelectedRow = nil
		}
		s.Foreground = copyInt(e.Query)
	case RowSelected:
		s.SelectedRow = copyInt(e.Row)
	case FilterChanged:
		s.Filter = strings.TrimSpace(e.Text)
	}
	return s
}

// Int returns a pointer to v, for building states and events.
func Int(v int) *int {
	return &v
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	return Int(*p)
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
