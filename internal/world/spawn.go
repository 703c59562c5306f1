package world

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/spellduel/server/internal/data"
)

// RandomPointInside draws a point uniformly inside the area's XZ footprint
// at the area's centre height.
func RandomPointInside(a data.SpawnArea, rng *rand.Rand) mgl64.Vec3 {
	x := a.CenterX - a.SizeX/2 + rng.Float64()*a.SizeX
	z := a.CenterZ - a.SizeZ/2 + rng.Float64()*a.SizeZ
	return mgl64.Vec3{x, a.CenterY, z}
}

// SpawnAreas places every area's wizards and returns how many were created.
func SpawnAreas(s *State, areas []data.SpawnArea, radius float64, rng *rand.Rand, log *zap.Logger) int {
	total := 0
	for _, a := range areas {
		for i := 0; i < a.Count; i++ {
			s.SpawnWizard(a.Faction, RandomPointInside(a, rng), radius)
		}
		total += a.Count
		log.Info("wizards spawned",
			zap.Stringer("faction", a.Faction),
			zap.Int("count", a.Count),
			zap.Float64("center_x", a.CenterX),
			zap.Float64("center_z", a.CenterZ),
		)
	}
	return total
}
