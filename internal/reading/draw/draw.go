// Package draw implements card drawing for the reading engine.
//
// Drawing is deterministic with respect to the request seed: the same seed and
// the same pool (including order) always produce the same result. Callers
// generate seeds from crypto/rand at the edge and record them alongside the
// draw, so any draw can be replayed for forensic reconstruction.
package draw

import (
	"fmt"
	"math/rand"

	"github.com/arcanahq/arcana.space/internal/platform/errors"
)

// DefaultReversalProbability is used when the deck does not override it.
const DefaultReversalProbability = 0.5

// Request describes a single draw from a session's remaining card pool.
type Request struct {
	// Pool is the session's remaining un-drawn card ids, in stable order.
	Pool []string
	// Seed drives card selection and orientation for this draw.
	Seed int64
	// SupportsReversals enables reversed orientation for the drawn card.
	SupportsReversals bool
	// ReversalProbability overrides DefaultReversalProbability when positive.
	ReversalProbability float64
}

// Result captures the outcome of one draw.
type Result struct {
	CardID   string
	Reversed bool
	// Remaining is the pool after removing the drawn card, order preserved.
	Remaining []string
}

// DrawCard selects one card uniformly at random, without replacement, from the
// request pool and assigns its orientation.
//
// Orientation is chosen independently per draw: when SupportsReversals is set,
// the card is reversed with the configured probability; otherwise it is always
// upright.
func DrawCard(request Request) (Result, error) {
	if len(request.Pool) == 0 {
		return Result{}, errors.New(errors.CodeDeckExhausted, "no cards remain in the deck")
	}

	probability := request.ReversalProbability
	if probability == 0 {
		probability = DefaultReversalProbability
	}
	if probability < 0 || probability > 1 {
		return Result{}, errors.WithMetadata(errors.CodeDrawInvalidProbability,
			fmt.Sprintf("reversal probability %v outside [0, 1]", probability),
			map[string]string{"probability": fmt.Sprintf("%v", probability)})
	}

	rng := rand.New(rand.NewSource(request.Seed))
	index := rng.Intn(len(request.Pool))

	reversed := false
	if request.SupportsReversals {
		reversed = rng.Float64() < probability
	}

	remaining := make([]string, 0, len(request.Pool)-1)
	remaining = append(remaining, request.Pool[:index]...)
	remaining = append(remaining, request.Pool[index+1:]...)

	return Result{
		CardID:    request.Pool[index],
		Reversed:  reversed,
		Remaining: remaining,
	}, nil
}
