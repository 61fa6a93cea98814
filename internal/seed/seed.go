// Package seed provides the starter catalog: the Rider-Waite deck and the
// standard spread templates.
package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/arcanahq/arcana.space/internal/reading/domain"
	"github.com/arcanahq/arcana.space/internal/storage"
)

// Catalog identifiers for the seeded records.
const (
	DeckRiderWaite        = "deck-rider-waite"
	TemplateThreeCard     = "tpl-three-card"
	TemplateCelticCross   = "tpl-celtic-cross"
	TemplateFreeformTable = "tpl-freeform-table"
)

// majorArcana lists the 22 trumps in order.
var majorArcana = []string{
	"The Fool", "The Magician", "The High Priestess", "The Empress",
	"The Emperor", "The Hierophant", "The Lovers", "The Chariot",
	"Strength", "The Hermit", "Wheel of Fortune", "Justice",
	"The Hanged Man", "Death", "Temperance", "The Devil",
	"The Tower", "The Star", "The Moon", "The Sun",
	"Judgement", "The World",
}

var suits = []string{"Wands", "Cups", "Swords", "Pentacles"}

var ranks = []string{
	"Ace", "Two", "Three", "Four", "Five", "Six", "Seven",
	"Eight", "Nine", "Ten", "Page", "Knight", "Queen", "King",
}

// RiderWaiteDeck builds the full 78-card Rider-Waite deck with reversals enabled.
func RiderWaiteDeck() domain.Deck {
	cards := make([]domain.Card, 0, 78)

	for i, name := range majorArcana {
		cards = append(cards, domain.Card{
			ID:      fmt.Sprintf("major-%02d-%s", i, slug(name)),
			Name:    name,
			Ordinal: len(cards),
		})
	}
	for _, suit := range suits {
		for _, rank := range ranks {
			name := rank + " of " + suit
			cards = append(cards, domain.Card{
				ID:      fmt.Sprintf("%s-%s", slug(suit), slug(rank)),
				Name:    name,
				Ordinal: len(cards),
			})
		}
	}

	return domain.Deck{
		ID:                DeckRiderWaite,
		Name:              "Rider-Waite",
		Cards:             cards,
		SupportsReversals: true,
	}
}

// Templates builds the standard spread templates.
func Templates() []domain.SpreadTemplate {
	return []domain.SpreadTemplate{
		{
			ID:        TemplateThreeCard,
			Name:      "Three Card",
			CardCount: 3,
			MinCards:  3,
			MaxCards:  3,
			Layout:    domain.LayoutTypeFixed,
			Positions: []domain.PositionTemplate{
				{Ordinal: 0, Name: "Past", X: 600, Y: 1000},
				{Ordinal: 1, Name: "Present", X: 1000, Y: 1000},
				{Ordinal: 2, Name: "Future", X: 1400, Y: 1000},
			},
			ApprovalStatus: domain.ApprovalStatusApproved,
		},
		{
			ID:        TemplateCelticCross,
			Name:      "Celtic Cross",
			CardCount: 10,
			MinCards:  10,
			MaxCards:  10,
			Layout:    domain.LayoutTypeFixed,
			Positions: []domain.PositionTemplate{
				{Ordinal: 0, Name: "Present", X: 800, Y: 1000},
				{Ordinal: 1, Name: "Challenge", X: 800, Y: 1000, Rotation: 90},
				{Ordinal: 2, Name: "Foundation", X: 800, Y: 1400},
				{Ordinal: 3, Name: "Past", X: 500, Y: 1000},
				{Ordinal: 4, Name: "Crown", X: 800, Y: 600},
				{Ordinal: 5, Name: "Near Future", X: 1100, Y: 1000},
				{Ordinal: 6, Name: "Self", X: 1500, Y: 1600},
				{Ordinal: 7, Name: "Environment", X: 1500, Y: 1200},
				{Ordinal: 8, Name: "Hopes and Fears", X: 1500, Y: 800},
				{Ordinal: 9, Name: "Outcome", X: 1500, Y: 400},
			},
			ApprovalStatus: domain.ApprovalStatusApproved,
		},
		{
			ID:             TemplateFreeformTable,
			Name:           "Open Table",
			CardCount:      5,
			MinCards:       1,
			MaxCards:       15,
			Layout:         domain.LayoutTypeFreeform,
			ApprovalStatus: domain.ApprovalStatusApproved,
		},
	}
}

// Apply writes the starter catalog into the store. Existing records with the
// same ids are replaced.
func Apply(ctx context.Context, store storage.Store) error {
	if err := store.PutDeck(ctx, RiderWaiteDeck()); err != nil {
		return fmt.Errorf("seed deck: %w", err)
	}
	for _, template := range Templates() {
		if err := store.PutTemplate(ctx, template); err != nil {
			return fmt.Errorf("seed template %s: %w", template.ID, err)
		}
	}
	return nil
}

func slug(value string) string {
	return strings.ReplaceAll(strings.ToLower(value), " ", "-")
}
