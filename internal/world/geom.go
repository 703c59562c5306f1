package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var up = mgl64.Vec3{0, 1, 0}

// LookRotation returns the yaw-only rotation whose forward (+Z) points along
// dir projected onto the XZ plane. ok is false when dir has no horizontal
// component.
func LookRotation(dir mgl64.Vec3) (q mgl64.Quat, ok bool) {
	dir[1] = 0
	if dir.Len() < 1e-9 {
		return mgl64.QuatIdent(), false
	}
	return mgl64.QuatRotate(math.Atan2(dir[0], dir[2]), up), true
}

// YawRotation returns the rotation for a heading in degrees, 0 facing +Z and
// 90 facing +X.
func YawRotation(degrees float64) mgl64.Quat {
	return mgl64.QuatRotate(mgl64.DegToRad(degrees), up)
}

// PlanarDistance is the distance between a and b ignoring height.
func PlanarDistance(a, b mgl64.Vec3) float64 {
	return math.Hypot(a[0]-b[0], a[2]-b[2])
}

// PlanarDirection is the unit vector from a to b on the XZ plane, or the zero
// vector when they coincide.
func PlanarDirection(from, to mgl64.Vec3) mgl64.Vec3 {
	d := to.Sub(from)
	d[1] = 0
	if d.Len() < 1e-9 {
		return mgl64.Vec3{}
	}
	return d.Normalize()
}
