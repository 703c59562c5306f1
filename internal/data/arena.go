package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spellduel/server/internal/spell"
)

// SpawnArea is a box in which Count wizards of one faction are placed.
// Points are drawn on the XZ plane; every wizard starts at the box centre's Y.
type SpawnArea struct {
	Faction spell.Faction `yaml:"faction"`
	Count   int           `yaml:"count"`
	CenterX float64       `yaml:"center_x"`
	CenterY float64       `yaml:"center_y"`
	CenterZ float64       `yaml:"center_z"`
	SizeX   float64       `yaml:"size_x"`
	SizeZ   float64       `yaml:"size_z"`
}

// Obstacle is static scenery. Projectiles overlap it without effect.
type Obstacle struct {
	Name   string  `yaml:"name"`
	X      float64 `yaml:"x"`
	Z      float64 `yaml:"z"`
	Radius float64 `yaml:"radius"`
}

// Arena is the content of arena.yaml.
type Arena struct {
	Areas     []SpawnArea `yaml:"areas"`
	Obstacles []Obstacle  `yaml:"obstacles"`
}

// LoadArena loads spawn areas and obstacles from a YAML file.
func LoadArena(path string) (*Arena, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read arena: %w", err)
	}
	var a Arena
	if err := yaml.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("parse arena: %w", err)
	}
	for i, area := range a.Areas {
		if !area.Faction.Combatant() {
			return nil, fmt.Errorf("parse arena: area %d has non-combatant faction %q", i, area.Faction)
		}
		if area.Count < 0 || area.SizeX < 0 || area.SizeZ < 0 {
			return nil, fmt.Errorf("parse arena: area %d has negative count or size", i)
		}
	}
	for i, o := range a.Obstacles {
		if o.Radius <= 0 {
			return nil, fmt.Errorf("parse arena: obstacle %d (%s) needs a positive radius", i, o.Name)
		}
	}
	return &a, nil
}

// Wizards returns the number of wizards the arena spawns for f.
func (a *Arena) Wizards(f spell.Faction) int {
	n := 0
	for _, area := range a.Areas {
		if area.Faction == f {
			n += area.Count
		}
	}
	return n
}
