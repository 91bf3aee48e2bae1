package link

import (
	"errors"
	"fmt"
	"strings"
)

const MaxLinks = 10

var (
	ErrListFull      = fmt.Errorf("max %d links", MaxLinks)
	ErrOutOfRange    = errors.New("row index out of range")
	ErrNothingToSave = errors.New("enter a link to test")
	ErrNotEditing    = errors.New("list is locked, switch to edit mode first")
)

type Row struct {
	Value  string `json:"value"`
	Locked bool   `json:"locked"`
}

// Removed is a row taken out by Remove, kept for Undo.
type Removed struct {
	Index int
	Row   Row
}

// SaveError lists the 1-based rows that stop a save.
type SaveError struct {
	Invalid  []int
	Blocking []int
}

func (e *SaveError) Error() string {
	if len(e.Invalid) > 0 {
		return "invalid link format: " + joinLinks(e.Invalid)
	}
	return "please fill or remove empty rows in the middle: " + joinLinks(e.Blocking)
}

func joinLinks(indices []int) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = fmt.Sprintf("Link %d", idx)
	}
	return strings.Join(parts, ", ")
}

// List is the multi-link editor of the tester page. It starts in edit mode
// unless it was prefilled from a share URL.
type List struct {
	rows     []Row
	undo     []Removed
	editMode bool
}

func NewList(values ...string) *List {
	l := &List{}
	for _, v := range values {
		if len(l.rows) >= MaxLinks {
			break
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		l.rows = append(l.rows, Row{Value: v, Locked: ValidateLink(v).OK})
	}
	if len(l.rows) == 0 {
		l.editMode = true
		l.rows = append(l.rows, Row{})
	}
	return l
}

// Restore rebuilds a list submitted back by the tester form.
func Restore(rows []Row, editMode bool, undo []Removed) *List {
	l := &List{editMode: editMode}
	for _, r := range rows {
		if len(l.rows) >= MaxLinks {
			break
		}
		r.Value = strings.TrimSpace(r.Value)
		if editMode {
			r.Locked = false
		}
		l.rows = append(l.rows, r)
	}
	if len(l.rows) == 0 {
		l.editMode = true
		l.rows = append(l.rows, Row{})
	}
	if l.editMode {
		l.undo = append(l.undo, undo...)
	}
	return l
}

func (l *List) EditMode() bool { return l.editMode }

// UndoStack returns the removed rows, oldest first.
func (l *List) UndoStack() []Removed {
	out := make([]Removed, len(l.undo))
	copy(out, l.undo)
	return out
}

func (l *List) Len() int { return len(l.rows) }

func (l *List) Rows() []Row {
	out := make([]Row, len(l.rows))
	copy(out, l.rows)
	return out
}

// Values returns the trimmed, non-empty links in display order.
func (l *List) Values() []string {
	var out []string
	for _, r := range l.rows {
		if v := strings.TrimSpace(r.Value); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Add inserts a row before index, or appends when index is out of range.
func (l *List) Add(value string, index int) error {
	if len(l.rows) >= MaxLinks {
		return ErrListFull
	}
	l.editMode = true
	row := Row{Value: strings.TrimSpace(value)}
	if index >= 0 && index < len(l.rows) {
		l.rows = append(l.rows[:index], append([]Row{row}, l.rows[index:]...)...)
		return nil
	}
	l.rows = append(l.rows, row)
	return nil
}

func (l *List) Set(index int, value string) error {
	if !l.editMode {
		return ErrNotEditing
	}
	if index < 0 || index >= len(l.rows) {
		return ErrOutOfRange
	}
	l.rows[index] = Row{Value: strings.TrimSpace(value)}
	return nil
}

// Remove drops a row and remembers it for Undo. Removing the last row
// leaves an empty one behind.
func (l *List) Remove(index int) error {
	if !l.editMode {
		return ErrNotEditing
	}
	if index < 0 || index >= len(l.rows) {
		return ErrOutOfRange
	}
	l.undo = append(l.undo, Removed{Index: index, Row: l.rows[index]})
	l.rows = append(l.rows[:index], l.rows[index+1:]...)
	if len(l.rows) == 0 {
		l.rows = append(l.rows, Row{})
	}
	return nil
}

func (l *List) Undo() bool {
	if !l.editMode || len(l.undo) == 0 || len(l.rows) >= MaxLinks {
		return false
	}
	last := l.undo[len(l.undo)-1]
	l.undo = l.undo[:len(l.undo)-1]

	if len(l.rows) == 1 && l.rows[0].Value == "" {
		l.rows = l.rows[:0]
	}
	idx := last.Index
	if idx > len(l.rows) {
		idx = len(l.rows)
	}
	l.rows = append(l.rows[:idx], append([]Row{last.Row}, l.rows[idx:]...)...)
	return true
}

func (l *List) Move(from, to int) error {
	if !l.editMode {
		return ErrNotEditing
	}
	if from < 0 || from >= len(l.rows) || to < 0 || to >= len(l.rows) {
		return ErrOutOfRange
	}
	if from == to {
		return nil
	}
	row := l.rows[from]
	l.rows = append(l.rows[:from], l.rows[from+1:]...)
	l.rows = append(l.rows[:to], append([]Row{row}, l.rows[to:]...)...)
	return nil
}

// Edit unlocks every row and re-enters edit mode.
func (l *List) Edit() {
	l.editMode = true
	for i := range l.rows {
		l.rows[i].Locked = false
	}
}

// Save leaves edit mode. Invalid rows and empty rows sitting between filled
// ones block the save; trailing empty rows are dropped.
func (l *List) Save() error {
	if !l.editMode {
		return nil
	}

	var invalid []int
	lastFilled := -1
	for i, r := range l.rows {
		v := strings.TrimSpace(r.Value)
		if v == "" {
			continue
		}
		lastFilled = i
		if !ValidateLink(v).OK {
			invalid = append(invalid, i+1)
		}
	}
	if len(invalid) > 0 {
		return &SaveError{Invalid: invalid}
	}

	var blocking []int
	for i := 0; i < lastFilled; i++ {
		if strings.TrimSpace(l.rows[i].Value) == "" {
			blocking = append(blocking, i+1)
		}
	}
	if len(blocking) > 0 {
		return &SaveError{Blocking: blocking}
	}

	l.rows = l.rows[:lastFilled+1]
	if len(l.rows) == 0 {
		l.rows = append(l.rows, Row{})
		return ErrNothingToSave
	}

	for i := range l.rows {
		l.rows[i].Locked = true
	}
	l.editMode = false
	l.undo = nil
	return nil
}
