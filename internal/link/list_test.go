package link

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewList(t *testing.T) {
	l := NewList()
	if !l.EditMode() {
		t.Error("Empty list should start in edit mode")
	}
	if l.Len() != 1 {
		t.Errorf("Empty list should have one blank row, got %d", l.Len())
	}

	l = NewList("myapp://a", "", "https://example.com")
	if l.EditMode() {
		t.Error("Prefilled list should start locked")
	}
	if got := l.Values(); !reflect.DeepEqual(got, []string{"myapp://a", "https://example.com"}) {
		t.Errorf("Unexpected values %v", got)
	}
	for _, r := range l.Rows() {
		if !r.Locked {
			t.Errorf("Valid prefilled row %q should be locked", r.Value)
		}
	}
}

func TestList_AddLimit(t *testing.T) {
	l := NewList()
	for i := 1; i < MaxLinks; i++ {
		if err := l.Add("myapp://x", -1); err != nil {
			t.Fatalf("Add %d failed: %v", i, err)
		}
	}
	if err := l.Add("myapp://overflow", -1); !errors.Is(err, ErrListFull) {
		t.Errorf("Expected ErrListFull, got %v", err)
	}
}

func TestList_Save(t *testing.T) {
	tests := []struct {
		name     string
		values   []string
		wantErr  bool
		blocking []int
		invalid  []int
		values2  []string
	}{
		{name: "valid rows", values: []string{"myapp://a", "https://example.com"}, values2: []string{"myapp://a", "https://example.com"}},
		{name: "trailing empties trimmed", values: []string{"myapp://a", "", ""}, values2: []string{"myapp://a"}},
		{name: "middle empty blocks", values: []string{"myapp://a", "", "", "myapp://b"}, wantErr: true, blocking: []int{2, 3}},
		{name: "invalid row blocks", values: []string{"myapp://a", "not a url"}, wantErr: true, invalid: []int{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewList()
			_ = l.Set(0, tt.values[0])
			for _, v := range tt.values[1:] {
				_ = l.Add(v, -1)
			}

			err := l.Save()
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Save failed: %v", err)
				}
				if l.EditMode() {
					t.Error("List should leave edit mode after save")
				}
				if !reflect.DeepEqual(l.Values(), tt.values2) {
					t.Errorf("Values = %v; want %v", l.Values(), tt.values2)
				}
				if l.Len() != len(tt.values2) {
					t.Errorf("Trailing rows not trimmed: %d rows", l.Len())
				}
				return
			}

			var saveErr *SaveError
			if !errors.As(err, &saveErr) {
				t.Fatalf("Expected SaveError, got %v", err)
			}
			if !reflect.DeepEqual(saveErr.Blocking, tt.blocking) {
				t.Errorf("Blocking = %v; want %v", saveErr.Blocking, tt.blocking)
			}
			if !reflect.DeepEqual(saveErr.Invalid, tt.invalid) {
				t.Errorf("Invalid = %v; want %v", saveErr.Invalid, tt.invalid)
			}
			if !l.EditMode() {
				t.Error("Blocked save must stay in edit mode")
			}
		})
	}
}

func TestList_SaveEmpty(t *testing.T) {
	l := NewList()
	if err := l.Save(); !errors.Is(err, ErrNothingToSave) {
		t.Errorf("Expected ErrNothingToSave, got %v", err)
	}
	if !l.EditMode() || l.Len() != 1 {
		t.Error("Empty save should keep one editable row")
	}
}

func TestList_RemoveUndo(t *testing.T) {
	l := NewList()
	_ = l.Set(0, "myapp://a")
	_ = l.Add("myapp://b", -1)
	_ = l.Add("myapp://c", -1)

	if err := l.Remove(1); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if got := l.Values(); !reflect.DeepEqual(got, []string{"myapp://a", "myapp://c"}) {
		t.Errorf("After remove: %v", got)
	}

	if !l.Undo() {
		t.Fatal("Undo should restore the row")
	}
	if got := l.Values(); !reflect.DeepEqual(got, []string{"myapp://a", "myapp://b", "myapp://c"}) {
		t.Errorf("After undo: %v", got)
	}
	if l.Undo() {
		t.Error("Undo stack should be empty")
	}
}

func TestList_Move(t *testing.T) {
	l := NewList()
	_ = l.Set(0, "myapp://a")
	_ = l.Add("myapp://b", -1)
	_ = l.Add("myapp://c", -1)

	if err := l.Move(0, 2); err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if got := l.Values(); !reflect.DeepEqual(got, []string{"myapp://b", "myapp://c", "myapp://a"}) {
		t.Errorf("After move: %v", got)
	}
	if err := l.Move(0, 5); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Expected ErrOutOfRange, got %v", err)
	}

	_ = l.Save()
	if err := l.Move(0, 1); !errors.Is(err, ErrNotEditing) {
		t.Errorf("Expected ErrNotEditing on locked list, got %v", err)
	}
	l.Edit()
	if err := l.Move(0, 1); err != nil {
		t.Errorf("Move after Edit failed: %v", err)
	}
}

func TestRestore(t *testing.T) {
	l := Restore([]Row{{Value: " myapp://a ", Locked: true}, {Value: ""}}, true, []Removed{{Index: 0, Row: Row{Value: "https://example.com"}}})
	if !l.EditMode() {
		t.Fatal("expected edit mode")
	}
	if rows := l.Rows(); rows[0].Value != "myapp://a" || rows[0].Locked {
		t.Errorf("rows = %+v", rows)
	}
	if len(l.UndoStack()) != 1 {
		t.Fatalf("undo stack = %v", l.UndoStack())
	}
	if !l.Undo() {
		t.Fatal("Undo failed")
	}
	if got := l.Values(); len(got) != 2 || got[0] != "https://example.com" {
		t.Errorf("after undo = %v", got)
	}

	locked := Restore([]Row{{Value: "myapp://a", Locked: true}}, false, []Removed{{Index: 0}})
	if locked.EditMode() || len(locked.UndoStack()) != 0 {
		t.Error("a locked list keeps no undo history")
	}

	empty := Restore(nil, false, nil)
	if !empty.EditMode() || empty.Len() != 1 {
		t.Errorf("empty restore: edit=%v len=%d", empty.EditMode(), empty.Len())
	}
}
