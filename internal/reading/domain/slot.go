package domain

import (
	"strings"
	"time"
)

// AssignmentMode records how a slot's geometry was produced.
type AssignmentMode int

const (
	// AssignmentModeUnspecified represents an invalid assignment mode value.
	AssignmentModeUnspecified AssignmentMode = iota
	// AssignmentModeAuto marks geometry computed by the layout resolver.
	AssignmentModeAuto
	// AssignmentModeManual marks geometry supplied by a permitted caller.
	AssignmentModeManual
)

// String returns the lowercase mode name used in storage and API payloads.
func (m AssignmentMode) String() string {
	switch m {
	case AssignmentModeAuto:
		return "auto"
	case AssignmentModeManual:
		return "manual"
	default:
		return "unspecified"
	}
}

// AssignmentModeFromString parses a lowercase assignment mode name.
func AssignmentModeFromString(value string) AssignmentMode {
	switch strings.TrimSpace(value) {
	case "auto":
		return AssignmentModeAuto
	case "manual":
		return AssignmentModeManual
	default:
		return AssignmentModeUnspecified
	}
}

// Slot is one position within a session's spread, holding at most one drawn card.
type Slot struct {
	SessionID      string
	Ordinal        int
	Name           string
	AssignedCard   string // card id, empty until drawn; write-once
	IsReversed     bool
	IsRevealed     bool
	IsBurned       bool
	Geometry       Geometry
	AssignmentMode AssignmentMode
	AssignedBy     string // actor who supplied manual geometry
	DrawnAt        *time.Time
	RevealedAt     *time.Time
	BurnedAt       *time.Time
	BurnedBy       string
	BurnReason     string
}

// IsAssigned reports whether a card has been drawn into the slot.
func (s Slot) IsAssigned() bool {
	return s.AssignedCard != ""
}
