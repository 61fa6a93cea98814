package domain

// Card is a single entry in a deck's catalog record.
type Card struct {
	ID   string
	Name string
	// Ordinal preserves catalog ordering for decks that define one.
	Ordinal int
}

// Deck is a collection of cards available to draw from for a session.
// Decks are read-only to the engine; the catalog collaborator owns them.
type Deck struct {
	ID                string
	Name              string
	Cards             []Card
	SupportsReversals bool
	// ReversalProbability overrides the engine default when positive.
	ReversalProbability float64
}

// CardIDs returns the deck's card ids in catalog order.
// The returned slice is a fresh copy safe to hand to a session's private pool.
func (d Deck) CardIDs() []string {
	ids := make([]string, len(d.Cards))
	for i, card := range d.Cards {
		ids[i] = card.ID
	}
	return ids
}
