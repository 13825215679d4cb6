// Package signal standardizes payloads shared between data ingestion and strategy layers.
package signal

import "time"

// PriceSample models a single observed price for one symbol.
type PriceSample struct {
	Symbol string
	Price  float64
	Ts     time.Time
}

// Direction labels which way the short average crossed the long one.
type Direction string

const (
	// Golden marks the short average rising from below to above the long average.
	Golden Direction = "GOLDEN"
	// Death marks the short average falling from above to below the long average.
	Death Direction = "DEATH"
)

// Opposite returns the other crossover direction.
func (d Direction) Opposite() Direction {
	if d == Golden {
		return Death
	}
	return Golden
}

// CrossoverEvent records one detected sign flip of (short - long) for a symbol.
// Produced at most once per flip and consumed exactly once by the coordinator.
type CrossoverEvent struct {
	Symbol    string
	Direction Direction
	Short     float64
	Long      float64
	Price     float64
	Ts        time.Time
}
