package domain

import (
	"fmt"
	"math"

	"github.com/arcanahq/arcana.space/internal/platform/errors"
)

// Canvas bounds for freeform slot geometry.
const (
	CanvasMax = 2000

	SlotWidthMin  = 20
	SlotWidthMax  = 200
	SlotHeightMin = 30
	SlotHeightMax = 300
)

// Geometry is the canvas placement of one slot.
type Geometry struct {
	X        float64
	Y        float64
	Width    float64
	Height   float64
	Rotation float64
	ZIndex   int
}

// NormalizeRotation wraps a rotation in degrees into [0, 360).
//
// Rotation is normalized rather than rejected; out-of-range x/y/width/height
// are rejected outright. The asymmetry is a deliberate product decision.
func NormalizeRotation(rotation float64) float64 {
	normalized := math.Mod(rotation, 360)
	if normalized < 0 {
		normalized += 360
	}
	return normalized
}

// Normalize returns the geometry with its rotation wrapped into [0, 360).
func (g Geometry) Normalize() Geometry {
	g.Rotation = NormalizeRotation(g.Rotation)
	return g
}

// Validate checks the geometry against the canvas bounds.
// Rotation is not checked; callers normalize it via Normalize.
func (g Geometry) Validate() error {
	if g.X < 0 || g.X > CanvasMax {
		return boundsError("x", g.X, 0, CanvasMax)
	}
	if g.Y < 0 || g.Y > CanvasMax {
		return boundsError("y", g.Y, 0, CanvasMax)
	}
	if g.Width < SlotWidthMin || g.Width > SlotWidthMax {
		return boundsError("width", g.Width, SlotWidthMin, SlotWidthMax)
	}
	if g.Height < SlotHeightMin || g.Height > SlotHeightMax {
		return boundsError("height", g.Height, SlotHeightMin, SlotHeightMax)
	}
	return nil
}

// IsResolved reports whether the slot has usable dimensions.
// Fixed-layout slots carry template width/height defaults, so a zero width or
// height means geometry was never materialized.
func (g Geometry) IsResolved() bool {
	return g.Width > 0 && g.Height > 0
}

func boundsError(field string, value, min, max float64) error {
	return errors.WithMetadata(errors.CodeGeometryOutOfBounds,
		fmt.Sprintf("%s %.1f outside bounds [%.0f, %.0f]", field, value, min, max),
		map[string]string{
			"field": field,
			"value": fmt.Sprintf("%.1f", value),
			"min":   fmt.Sprintf("%.0f", min),
			"max":   fmt.Sprintf("%.0f", max),
		})
}
