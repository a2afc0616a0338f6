package browser

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

var (
	// ErrSuperseded is returned by a load whose result was discarded because a
	// newer load was issued before it finished.
	ErrSuperseded = errors.New("load superseded by a newer request")

	ErrUnknownColumn = errors.New("unknown column")
)

// Record is a row held by a Table.
type Record interface {
	Key() string
	Field(name string) (string, bool)
}

type Column struct {
	Field  string `json:"field"`
	Header string `json:"header"`
}

type SortDirection string

const (
	SortNone SortDirection = ""
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

type SortState struct {
	Field     string        `json:"field,omitempty"`
	Direction SortDirection `json:"direction,omitempty"`
}

// Next returns the state after a click on field's sort control.
// The same column cycles none -> asc -> desc -> none; another column starts at asc.
func (s SortState) Next(field string) SortState {
	if s.Field != field {
		return SortState{Field: field, Direction: SortAsc}
	}
	switch s.Direction {
	case SortNone:
		return SortState{Field: field, Direction: SortAsc}
	case SortAsc:
		return SortState{Field: field, Direction: SortDesc}
	default:
		return SortState{Field: field, Direction: SortNone}
	}
}

// FilterState maps a column to a case-insensitive substring pattern.
type FilterState map[string]string

// With returns a copy of f with field set to pattern. An empty pattern drops the entry.
func (f FilterState) With(field, pattern string) FilterState {
	out := make(FilterState, len(f)+1)
	maps.Copy(out, f)
	if pattern == "" {
		delete(out, field)
	} else {
		out[field] = pattern
	}
	return out
}

func (f FilterState) match(r Record) bool {
	for field, pattern := range f {
		v, _ := r.Field(field)
		if !strings.Contains(strings.ToLower(v), strings.ToLower(pattern)) {
			return false
		}
	}
	return true
}

// Filter returns the rows matching every active filter. rows is not modified.
func Filter[R Record](rows []R, f FilterState) []R {
	out := make([]R, 0, len(rows))
	for _, r := range rows {
		if f.match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Sort returns a sorted copy of rows. Values compare as plain strings.
func Sort[R Record](rows []R, s SortState) []R {
	out := slices.Clone(rows)
	if s.Field == "" || s.Direction == SortNone {
		return out
	}
	slices.SortStableFunc(out, func(a, b R) int {
		av, _ := a.Field(s.Field)
		bv, _ := b.Field(s.Field)
		c := strings.Compare(av, bv)
		if s.Direction == SortDesc {
			return -c
		}
		return c
	})
	return out
}

// Derive is the visible view of rows: sort(filter(rows)).
func Derive[R Record](rows []R, f FilterState, s SortState) []R {
	return Sort(Filter(rows, f), s)
}

// View is a snapshot of a Table.
type View[R Record] struct {
	Columns []Column    `json:"columns"`
	Rows    []R         `json:"rows"`
	Total   int         `json:"total"`
	Filters FilterState `json:"filters"`
	Sort    SortState   `json:"sort"`
	Loading bool        `json:"loading"`
	Error   string      `json:"error,omitempty"`
}

// Table holds one fetched record set together with its filter and sort state.
type Table[R Record] struct {
	columns []Column
	timeout time.Duration

	mu      sync.RWMutex
	rows    []R
	filters FilterState
	sort    SortState
	loading bool
	errMsg  string

	seq    uint64
	cancel context.CancelFunc
	closed bool
}

func NewTable[R Record](columns []Column, timeout time.Duration) *Table[R] {
	return &Table[R]{
		columns: columns,
		timeout: timeout,
		filters: FilterState{},
	}
}

func (t *Table[R]) hasColumn(field string) bool {
	for _, c := range t.columns {
		if c.Field == field {
			return true
		}
	}
	return false
}

// Load replaces the held rows with the result of fetch. A newer Load cancels
// this one; a superseded load leaves the table untouched and returns ErrSuperseded.
// On failure the rows are cleared and failure becomes the visible error message.
func (t *Table[R]) Load(ctx context.Context, fetch func(ctx context.Context) ([]R, error), failure string) error {
	var cancel context.CancelFunc
	if t.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrSuperseded
	}
	if t.cancel != nil {
		t.cancel()
	}
	t.seq++
	seq := t.seq
	t.cancel = cancel
	t.loading = true
	t.errMsg = ""
	t.mu.Unlock()

	rows, err := fetch(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	if seq != t.seq || t.closed {
		return ErrSuperseded
	}
	t.cancel = nil
	t.loading = false

	if err != nil {
		t.rows = nil
		t.errMsg = failure
		return fmt.Errorf("%s: %w", failure, err)
	}
	t.rows = rows
	return nil
}

func (t *Table[R]) SetFilter(field, pattern string) error {
	if !t.hasColumn(field) {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, field)
	}
	t.mu.Lock()
	t.filters = t.filters.With(field, pattern)
	t.mu.Unlock()
	return nil
}

func (t *Table[R]) SetSort(field string) error {
	if !t.hasColumn(field) {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, field)
	}
	t.mu.Lock()
	t.sort = t.sort.Next(field)
	t.mu.Unlock()
	return nil
}

// Find returns the first held row accepted by match, ignoring filters.
func (t *Table[R]) Find(match func(R) bool) (R, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, r := range t.rows {
		if match(r) {
			return r, true
		}
	}
	var zero R
	return zero, false
}

func (t *Table[R]) View() View[R] {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return View[R]{
		Columns: t.columns,
		Rows:    Derive(t.rows, t.filters, t.sort),
		Total:   len(t.rows),
		Filters: maps.Clone(t.filters),
		Sort:    t.sort,
		Loading: t.loading,
		Error:   t.errMsg,
	}
}

// Close cancels an in-flight load. Later loads are refused.
func (t *Table[R]) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.loading = false
}
