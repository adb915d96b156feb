// Package slugmap pairs English article slugs with their French counterparts
// so the language switcher can link an article to its translation.
package slugmap

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
)

var ErrConflict = errors.New("slug already mapped")

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Entry is one EN/FR pair.
type Entry struct {
	EN string `yaml:"en" json:"en"`
	FR string `yaml:"fr" json:"fr"`
}

// Map is a bidirectional EN<->FR slug table. The zero value is empty and
// ready to use. Map is not safe for concurrent mutation.
type Map struct {
	enToFR map[string]string
	frToEN map[string]string
}

var builtin = []Entry{
	{EN: "cpi-november-2025", FR: "ipc-novembre-2025"},
	{EN: "lfs-november-2025", FR: "epa-novembre-2025"},
	{EN: "retail-trade-october-2025", FR: "commerce-detail-octobre-2025"},
	{EN: "gdp-october-2025", FR: "pib-octobre-2025"},
	{EN: "trade-october-2025", FR: "commerce-international-octobre-2025"},
	{EN: "building-permits-october-2025", FR: "permis-batir-octobre-2025"},
}

// Default returns the articles published so far.
func Default() *Map {
	m := &Map{}
	for _, e := range builtin {
		if err := m.Add(e.EN, e.FR); err != nil {
			panic(err)
		}
	}
	return m
}

func New(entries []Entry) (*Map, error) {
	m := &Map{}
	for _, e := range entries {
		if err := m.Add(e.EN, e.FR); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// FR returns the French slug for an English one.
func (m *Map) FR(en string) (string, bool) {
	fr, ok := m.enToFR[en]
	return fr, ok
}

// EN returns the English slug for a French one.
func (m *Map) EN(fr string) (string, bool) {
	en, ok := m.frToEN[fr]
	return en, ok
}

// Add binds en to fr. Re-adding an identical pair is a no-op; binding either
// side to a different partner fails with ErrConflict.
func (m *Map) Add(en, fr string) error {
	if !slugPattern.MatchString(en) {
		return fmt.Errorf("invalid english slug %q", en)
	}
	if !slugPattern.MatchString(fr) {
		return fmt.Errorf("invalid french slug %q", fr)
	}

	if existing, ok := m.enToFR[en]; ok {
		if existing == fr {
			return nil
		}
		return fmt.Errorf("%w: %s -> %s", ErrConflict, en, existing)
	}
	if existing, ok := m.frToEN[fr]; ok {
		return fmt.Errorf("%w: %s <- %s", ErrConflict, fr, existing)
	}

	if m.enToFR == nil {
		m.enToFR = map[string]string{}
		m.frToEN = map[string]string{}
	}
	m.enToFR[en] = fr
	m.frToEN[fr] = en
	return nil
}

func (m *Map) Len() int {
	return len(m.enToFR)
}

// Entries returns all pairs sorted by English slug.
func (m *Map) Entries() []Entry {
	out := make([]Entry, 0, len(m.enToFR))
	for en, fr := range m.enToFR {
		out = append(out, Entry{EN: en, FR: fr})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EN < out[j].EN })
	return out
}
