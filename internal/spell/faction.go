package spell

import (
	"fmt"
	"strings"
)

// Faction identifies which side fired a projectile or owns a volume.
type Faction uint8

const (
	FactionNone Faction = iota // scenery, obstacles, unowned casts
	FactionFire
	FactionIce
)

// Combatant reports whether collisions with this faction are meaningful.
func (f Faction) Combatant() bool {
	return f == FactionFire || f == FactionIce
}

// Enemy returns the opposing combatant faction, or FactionNone.
func (f Faction) Enemy() Faction {
	switch f {
	case FactionFire:
		return FactionIce
	case FactionIce:
		return FactionFire
	default:
		return FactionNone
	}
}

func (f Faction) String() string {
	switch f {
	case FactionNone:
		return "none"
	case FactionFire:
		return "fire"
	case FactionIce:
		return "ice"
	default:
		return fmt.Sprintf("faction(%d)", uint8(f))
	}
}

// ParseFaction accepts "fire", "ice", "none" and the legacy scene tags
// "FireWizard" / "IceWizard", case-insensitively.
func ParseFaction(s string) (Faction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fire", "firewizard":
		return FactionFire, nil
	case "ice", "icewizard":
		return FactionIce, nil
	case "", "none":
		return FactionNone, nil
	}
	return FactionNone, fmt.Errorf("unknown faction %q", s)
}

// UnmarshalText lets factions appear directly in TOML and YAML documents.
func (f *Faction) UnmarshalText(text []byte) error {
	v, err := ParseFaction(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

func (f Faction) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}
