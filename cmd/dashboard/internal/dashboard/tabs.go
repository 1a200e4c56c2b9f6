package dashboard

import "slices"

// MaxTabs is the most symbols the tab strip holds.
const MaxTabs = 5

// Tabs is the ordered set of symbols shown as tabs.
type Tabs struct {
	symbols []string
	max     int
}

func NewTabs(max int) *Tabs {
	if max <= 0 {
		max = MaxTabs
	}
	return &Tabs{max: max}
}

// Symbols returns a copy of the tab symbols in display order.
func (t *Tabs) Symbols() []string {
	return slices.Clone(t.symbols)
}

func (t *Tabs) Len() int { return len(t.symbols) }

func (t *Tabs) Contains(symbol string) bool {
	return slices.Contains(t.symbols, symbol)
}

// Add appends symbol when it is not already a tab, dropping the oldest tab
// when full.
func (t *Tabs) Add(symbol string) {
	if symbol == "" || t.Contains(symbol) {
		return
	}
	if len(t.symbols) >= t.max {
		t.symbols = slices.Clone(t.symbols[1:])
	}
	t.symbols = append(t.symbols, symbol)
}

// Remove drops symbol. The last remaining tab cannot be removed.
func (t *Tabs) Remove(symbol string) error {
	i := slices.Index(t.symbols, symbol)
	if i < 0 {
		return ErrNotInTabs
	}
	if len(t.symbols) <= 1 {
		return ErrLastTab
	}
	t.symbols = slices.Delete(slices.Clone(t.symbols), i, i+1)
	return nil
}

// Last returns the newest tab.
func (t *Tabs) Last() (string, bool) {
	if len(t.symbols) == 0 {
		return "", false
	}
	return t.symbols[len(t.symbols)-1], true
}

// Retain keeps only the tabs keep reports true for.
func (t *Tabs) Retain(keep func(string) bool) {
	t.symbols = slices.DeleteFunc(slices.Clone(t.symbols), func(s string) bool { return !keep(s) })
}
