package draw

import (
	"math/rand"
	"testing"

	"github.com/arcanahq/arcana.space/internal/platform/errors"
)

func pool() []string {
	return []string{"major-00", "major-01", "major-02", "major-03", "major-04"}
}

// TestDrawCardIsDeterministic ensures the same seed and pool always produce
// the same card and orientation.
func TestDrawCardIsDeterministic(t *testing.T) {
	first, err := DrawCard(Request{Pool: pool(), Seed: 42, SupportsReversals: true})
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	second, err := DrawCard(Request{Pool: pool(), Seed: 42, SupportsReversals: true})
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if first.CardID != second.CardID || first.Reversed != second.Reversed {
		t.Fatalf("same seed produced different results: %+v vs %+v", first, second)
	}
}

func TestDrawCardMatchesSeededSource(t *testing.T) {
	seed := int64(7)
	rng := rand.New(rand.NewSource(seed))
	wantIndex := rng.Intn(5)
	wantReversed := rng.Float64() < DefaultReversalProbability

	result, err := DrawCard(Request{Pool: pool(), Seed: seed, SupportsReversals: true})
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if result.CardID != pool()[wantIndex] {
		t.Fatalf("card %s, want %s", result.CardID, pool()[wantIndex])
	}
	if result.Reversed != wantReversed {
		t.Fatalf("reversed %v, want %v", result.Reversed, wantReversed)
	}
}

func TestDrawCardRemovesFromPool(t *testing.T) {
	result, err := DrawCard(Request{Pool: pool(), Seed: 1})
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if len(result.Remaining) != 4 {
		t.Fatalf("expected 4 remaining cards, got %d", len(result.Remaining))
	}
	for _, id := range result.Remaining {
		if id == result.CardID {
			t.Fatalf("drawn card %s still present in remaining pool", result.CardID)
		}
	}
}

func TestDrawCardPreservesRemainingOrder(t *testing.T) {
	result, err := DrawCard(Request{Pool: pool(), Seed: 3})
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	// Remaining cards must appear in their original relative order.
	previous := -1
	for _, id := range result.Remaining {
		index := -1
		for i, original := range pool() {
			if original == id {
				index = i
				break
			}
		}
		if index <= previous {
			t.Fatalf("remaining pool out of order: %v", result.Remaining)
		}
		previous = index
	}
}

func TestDrawCardUprightWithoutReversalSupport(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		result, err := DrawCard(Request{Pool: pool(), Seed: seed, SupportsReversals: false})
		if err != nil {
			t.Fatalf("draw: %v", err)
		}
		if result.Reversed {
			t.Fatalf("seed %d produced a reversed card without reversal support", seed)
		}
	}
}

func TestDrawCardReversalProbabilityExtremes(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		always, err := DrawCard(Request{Pool: pool(), Seed: seed, SupportsReversals: true, ReversalProbability: 1})
		if err != nil {
			t.Fatalf("draw: %v", err)
		}
		if !always.Reversed {
			t.Fatalf("seed %d: probability 1 should always reverse", seed)
		}
	}
}

func TestDrawCardExhaustedPool(t *testing.T) {
	_, err := DrawCard(Request{Pool: nil, Seed: 1})
	if !errors.IsCode(err, errors.CodeDeckExhausted) {
		t.Fatalf("expected deck exhausted, got %v", err)
	}
}

func TestDrawCardRejectsInvalidProbability(t *testing.T) {
	for _, p := range []float64{-0.5, 1.5} {
		_, err := DrawCard(Request{Pool: pool(), Seed: 1, SupportsReversals: true, ReversalProbability: p})
		if !errors.IsCode(err, errors.CodeDrawInvalidProbability) {
			t.Fatalf("probability %v: expected invalid probability error, got %v", p, err)
		}
	}
}

func TestDrawCardSingleCardPool(t *testing.T) {
	result, err := DrawCard(Request{Pool: []string{"only"}, Seed: 99})
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if result.CardID != "only" {
		t.Fatalf("card %s, want only", result.CardID)
	}
	if len(result.Remaining) != 0 {
		t.Fatalf("expected empty remaining pool, got %v", result.Remaining)
	}
}
