package domain

import (
	"fmt"
	"strings"

	"github.com/arcanahq/arcana.space/internal/platform/errors"
)

// LayoutType identifies how a spread template positions its slots.
type LayoutType int

const (
	// LayoutTypeUnspecified represents an invalid layout type value.
	LayoutTypeUnspecified LayoutType = iota
	// LayoutTypeFixed copies template geometry verbatim into slots.
	LayoutTypeFixed
	// LayoutTypeFreeform places slots on a pixel canvas, editable until drawing begins.
	LayoutTypeFreeform
)

// String returns the lowercase layout name used in storage and API payloads.
func (l LayoutType) String() string {
	switch l {
	case LayoutTypeFixed:
		return "fixed"
	case LayoutTypeFreeform:
		return "freeform"
	default:
		return "unspecified"
	}
}

// LayoutTypeFromString parses a lowercase layout name.
func LayoutTypeFromString(value string) LayoutType {
	switch strings.TrimSpace(value) {
	case "fixed":
		return LayoutTypeFixed
	case "freeform":
		return LayoutTypeFreeform
	default:
		return LayoutTypeUnspecified
	}
}

// ApprovalStatus tracks a custom template through catalog review.
type ApprovalStatus int

const (
	// ApprovalStatusUnspecified represents an invalid approval status value.
	ApprovalStatusUnspecified ApprovalStatus = iota
	// ApprovalStatusPending indicates the template awaits catalog review.
	ApprovalStatusPending
	// ApprovalStatusApproved indicates the template is in the platform catalog.
	ApprovalStatusApproved
	// ApprovalStatusRejected indicates the template was declined.
	ApprovalStatusRejected
)

// String returns the lowercase status name used in storage and API payloads.
func (a ApprovalStatus) String() string {
	switch a {
	case ApprovalStatusPending:
		return "pending"
	case ApprovalStatusApproved:
		return "approved"
	case ApprovalStatusRejected:
		return "rejected"
	default:
		return "unspecified"
	}
}

// ApprovalStatusFromString parses a lowercase approval status name.
func ApprovalStatusFromString(value string) ApprovalStatus {
	switch strings.TrimSpace(value) {
	case "pending":
		return ApprovalStatusPending
	case "approved":
		return ApprovalStatusApproved
	case "rejected":
		return ApprovalStatusRejected
	default:
		return ApprovalStatusUnspecified
	}
}

// PositionTemplate describes one slot position within a spread template.
type PositionTemplate struct {
	Ordinal  int
	Name     string
	X        float64
	Y        float64
	Rotation float64
}

// SpreadTemplate is a named layout of card positions used for one reading.
// Templates are immutable once approved; the engine only reads them.
type SpreadTemplate struct {
	ID             string
	Name           string
	CardCount      int
	MinCards       int // 0 means no lower bound
	MaxCards       int // 0 means no upper bound
	Layout         LayoutType
	Positions      []PositionTemplate
	ApprovalStatus ApprovalStatus
	IsCustom       bool
	CreatorID      string
}

// ValidateCardCount checks totalCards against the template's min/max bounds.
func (t SpreadTemplate) ValidateCardCount(totalCards int) error {
	if totalCards <= 0 {
		return errors.New(errors.CodeTemplateCardCountOutOfRange, "total cards must be positive")
	}
	if t.MinCards > 0 && totalCards < t.MinCards {
		return outOfRange(t, totalCards)
	}
	if t.MaxCards > 0 && totalCards > t.MaxCards {
		return outOfRange(t, totalCards)
	}
	return nil
}

// UsableBy reports whether the template may back a new session created by readerID.
// Approved templates are available to everyone; a pending custom template is
// usable only by its creator.
func (t SpreadTemplate) UsableBy(readerID string) bool {
	if t.ApprovalStatus == ApprovalStatusApproved {
		return true
	}
	if t.ApprovalStatus == ApprovalStatusPending && t.IsCustom {
		return t.CreatorID != "" && t.CreatorID == readerID
	}
	return false
}

func outOfRange(t SpreadTemplate, totalCards int) error {
	return errors.WithMetadata(errors.CodeTemplateCardCountOutOfRange,
		fmt.Sprintf("total cards %d outside template range [%d, %d]", totalCards, t.MinCards, t.MaxCards),
		map[string]string{
			"template_id": t.ID,
			"total_cards": fmt.Sprintf("%d", totalCards),
			"min_cards":   fmt.Sprintf("%d", t.MinCards),
			"max_cards":   fmt.Sprintf("%d", t.MaxCards),
		})
}
