package data

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spellduel/server/internal/spell"
)

// SpellEntry is one row of spell_list.yaml.
type SpellEntry struct {
	Name     string        `yaml:"name"`
	Kind     string        `yaml:"kind"`
	Speed    float64       `yaml:"speed"`    // units per second
	LifeTime time.Duration `yaml:"lifetime"` // e.g. "5s"
	Radius   float64       `yaml:"radius"`
}

type spellListFile struct {
	Spells []SpellEntry `yaml:"spells"`
}

// SpellTable holds spell templates indexed by name. Entries are not
// validated here; a bad template surfaces as a misconfigured pool.
type SpellTable struct {
	spells map[string]spell.Template
}

// LoadSpellTable loads spell templates from a YAML file.
func LoadSpellTable(path string) (*SpellTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spell_list: %w", err)
	}
	var f spellListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse spell_list: %w", err)
	}
	t := &SpellTable{spells: make(map[string]spell.Template, len(f.Spells))}
	for _, e := range f.Spells {
		if e.Name == "" {
			return nil, fmt.Errorf("parse spell_list: entry without name")
		}
		if _, dup := t.spells[e.Name]; dup {
			return nil, fmt.Errorf("parse spell_list: duplicate spell %q", e.Name)
		}
		t.spells[e.Name] = spell.Template{
			Name:     e.Name,
			Kind:     e.Kind,
			Speed:    e.Speed,
			LifeTime: e.LifeTime,
			Radius:   e.Radius,
		}
	}
	return t, nil
}

// Get returns the template registered under name.
func (t *SpellTable) Get(name string) (spell.Template, bool) {
	tmpl, ok := t.spells[name]
	return tmpl, ok
}

// Names returns every template name, sorted.
func (t *SpellTable) Names() []string {
	names := make([]string, 0, len(t.spells))
	for name := range t.spells {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *SpellTable) Count() int {
	return len(t.spells)
}
