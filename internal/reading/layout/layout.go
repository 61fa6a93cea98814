// Package layout materializes and validates slot geometry for reading sessions.
package layout

import (
	"fmt"
	"sort"

	"github.com/arcanahq/arcana.space/internal/platform/errors"
	"github.com/arcanahq/arcana.space/internal/reading/domain"
)

// Default card dimensions used when a template does not size its positions.
const (
	DefaultSlotWidth  = 80
	DefaultSlotHeight = 120
)

// Freeform auto-grid constants: five columns, fixed cell pitch.
const (
	gridColumns = 5
	gridPitchX  = 100
	gridPitchY  = 140
	gridMarginX = 50
	gridMarginY = 70
)

// MaterializeSlots builds the session's slots from its template.
//
// Fixed layouts copy template geometry verbatim into the first totalCards
// positions, ordered by ordinal. Freeform layouts start from the default grid;
// geometry may then be reassigned manually until drawing begins.
func MaterializeSlots(template domain.SpreadTemplate, sessionID string, totalCards int) ([]domain.Slot, error) {
	switch template.Layout {
	case domain.LayoutTypeFixed:
		return materializeFixed(template, sessionID, totalCards)
	case domain.LayoutTypeFreeform:
		return materializeFreeform(template, sessionID, totalCards), nil
	default:
		return nil, errors.WithMetadata(errors.CodeTemplateInvalidLayout,
			fmt.Sprintf("template %s has unsupported layout %s", template.ID, template.Layout),
			map[string]string{"template_id": template.ID, "layout": template.Layout.String()})
	}
}

func materializeFixed(template domain.SpreadTemplate, sessionID string, totalCards int) ([]domain.Slot, error) {
	if len(template.Positions) < totalCards {
		return nil, errors.WithMetadata(errors.CodeTemplateInvalidLayout,
			fmt.Sprintf("template %s defines %d positions, session needs %d", template.ID, len(template.Positions), totalCards),
			map[string]string{
				"template_id": template.ID,
				"positions":   fmt.Sprintf("%d", len(template.Positions)),
				"total_cards": fmt.Sprintf("%d", totalCards),
			})
	}

	positions := make([]domain.PositionTemplate, len(template.Positions))
	copy(positions, template.Positions)
	sort.Slice(positions, func(i, j int) bool { return positions[i].Ordinal < positions[j].Ordinal })

	slots := make([]domain.Slot, 0, totalCards)
	for i := 0; i < totalCards; i++ {
		position := positions[i]
		slots = append(slots, domain.Slot{
			SessionID: sessionID,
			Ordinal:   i,
			Name:      position.Name,
			Geometry: domain.Geometry{
				X:        position.X,
				Y:        position.Y,
				Width:    DefaultSlotWidth,
				Height:   DefaultSlotHeight,
				Rotation: domain.NormalizeRotation(position.Rotation),
				ZIndex:   i,
			},
			AssignmentMode: domain.AssignmentModeAuto,
		})
	}
	return slots, nil
}

func materializeFreeform(template domain.SpreadTemplate, sessionID string, totalCards int) []domain.Slot {
	slots := make([]domain.Slot, 0, totalCards)
	for i := 0; i < totalCards; i++ {
		name := ""
		if i < len(template.Positions) {
			name = template.Positions[i].Name
		}
		slots = append(slots, domain.Slot{
			SessionID:      sessionID,
			Ordinal:        i,
			Name:           name,
			Geometry:       DefaultGridGeometry(i),
			AssignmentMode: domain.AssignmentModeAuto,
		})
	}
	return slots
}

// DefaultGridGeometry places slot i (0-indexed) on the freeform default grid:
// five columns wide, row pitch 140, column pitch 100.
func DefaultGridGeometry(i int) domain.Geometry {
	return domain.Geometry{
		X:        float64((i%gridColumns)*gridPitchX + gridMarginX),
		Y:        float64((i/gridColumns)*gridPitchY + gridMarginY),
		Width:    DefaultSlotWidth,
		Height:   DefaultSlotHeight,
		Rotation: 0,
		ZIndex:   i,
	}
}

// ResolveManualGeometry validates caller-supplied freeform geometry.
//
// Rotation is normalized into [0, 360) rather than rejected; x/y/width/height
// outside the canvas bounds fail outright. Fixed-layout templates accept no
// caller geometry at all.
func ResolveManualGeometry(template domain.SpreadTemplate, geometry domain.Geometry) (domain.Geometry, error) {
	if template.Layout != domain.LayoutTypeFreeform {
		return domain.Geometry{}, errors.WithMetadata(errors.CodeGeometryFixedLayout,
			fmt.Sprintf("template %s uses a fixed layout; positions cannot be reassigned", template.ID),
			map[string]string{"template_id": template.ID})
	}

	normalized := geometry.Normalize()
	if err := normalized.Validate(); err != nil {
		return domain.Geometry{}, err
	}
	return normalized, nil
}
