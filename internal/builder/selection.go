// Package builder turns a user's selection of elements into a generation
// request: it partitions the selection into ingredients and modifiers, derives
// the generation mode and assembles the instruction text sent to the backend.
// Everything here is pure and safe to call from tests without a backend.
package builder

import (
	"prompttable/internal/catalog"
)

// Selection is an ordered set of techniques. A technique appears at most
// once; insertion order is kept for display only.
type Selection struct {
	items []catalog.Technique
}

// NewSelection returns a selection holding the given techniques, dropping
// duplicates.
func NewSelection(techniques ...catalog.Technique) *Selection {
	s := &Selection{}
	for _, t := range techniques {
		s.Add(t)
	}
	return s
}

func (s *Selection) index(symbol string) int {
	for i, t := range s.items {
		if t.Symbol == symbol {
			return i
		}
	}
	return -1
}

// Contains reports whether the technique with this symbol is selected.
func (s *Selection) Contains(symbol string) bool {
	return s.index(symbol) >= 0
}

// Add inserts t if absent. It reports whether the selection changed.
func (s *Selection) Add(t catalog.Technique) bool {
	if s.Contains(t.Symbol) {
		return false
	}
	s.items = append(s.items, t)
	return true
}

// Remove deletes the technique with this symbol. Removing a non-member is a
// no-op and reports false.
func (s *Selection) Remove(symbol string) bool {
	i := s.index(symbol)
	if i < 0 {
		return false
	}
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	return true
}

// Toggle flips membership of t and reports whether it is now selected.
func (s *Selection) Toggle(t catalog.Technique) bool {
	if s.Remove(t.Symbol) {
		return false
	}
	s.items = append(s.items, t)
	return true
}

// Items returns the selected techniques in insertion order.
func (s *Selection) Items() []catalog.Technique {
	out := make([]catalog.Technique, len(s.items))
	copy(out, s.items)
	return out
}

// Symbols returns the selected symbols in insertion order.
func (s *Selection) Symbols() []string {
	out := make([]string, len(s.items))
	for i, t := range s.items {
		out[i] = t.Symbol
	}
	return out
}

// Len returns the number of selected techniques.
func (s *Selection) Len() int {
	return len(s.items)
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.items = nil
}

// Clone returns an independent copy.
func (s *Selection) Clone() *Selection {
	return &Selection{items: s.Items()}
}

// Ingredients returns the non-modifier techniques.
func (s *Selection) Ingredients() []catalog.Technique {
	ingredients, _ := Partition(s.items)
	return ingredients
}

// Modifiers returns the media techniques.
func (s *Selection) Modifiers() []catalog.Technique {
	_, modifiers := Partition(s.items)
	return modifiers
}

// Mode derives the generation mode from the current modifiers.
func (s *Selection) Mode() Mode {
	return DeriveMode(s.items)
}

// Partition splits techniques into ingredients and modifiers, preserving order.
func Partition(items []catalog.Technique) (ingredients, modifiers []catalog.Technique) {
	for _, t := range items {
		if t.IsModifier() {
			modifiers = append(modifiers, t)
		} else {
			ingredients = append(ingredients, t)
		}
	}
	return ingredients, modifiers
}
