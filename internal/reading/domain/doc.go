// Package domain defines the entities and lifecycle state for reading sessions.
//
// A ReadingSession turns a SpreadTemplate and a Deck into a live card-drawing
// session: slots are materialized from the template's layout, cards are drawn
// into slots without replacement, and slots are revealed or burned as the
// reading progresses.
//
// # Session Lifecycle
//
// Sessions move through several states:
//   - Preparing: The session exists but its slots are not yet materialized.
//   - Setup: Slots exist; freeform geometry may still be assigned.
//   - Drawing: Cards are being drawn into slots.
//   - Interpreting: All draws are done; reveal and burn remain available.
//   - Completed, Cancelled, Expired: Terminal states. No further mutation.
package domain
