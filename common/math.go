package common

import (
	"cmp"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type Vec3 = mgl32.Vec3
type Vec2 = mgl32.Vec2

type IT interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// / Returns the absolute value.
func Abs[T IT](a T) T {
	if a < 0 {
		return -a
	}
	return a
}

// / Returns the square of the value.
func Sqr[T IT](a T) T {
	return a * a
}

// / Clamps the value to the specified range.
func Clamp[T cmp.Ordered](value, minInclusive, maxInclusive T) T {
	if value < minInclusive {
		return minInclusive
	}
	if value > maxInclusive {
		return maxInclusive
	}
	return value
}

func Lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

func IsFinite(v float32) bool {
	return !math.IsInf(float64(v), 0) && !math.IsNaN(float64(v))
}

// RotateY rotates v around the vertical axis by yaw radians.
func RotateY(v Vec3, yaw float32) Vec3 {
	return mgl32.HomogRotate3DY(yaw).Mul4x1(v.Vec4(1)).Vec3()
}
