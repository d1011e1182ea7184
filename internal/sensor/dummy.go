package sensor

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Dummy produces plausible indoor values without hardware.
type Dummy struct{}

func NewDummy() *Dummy {
	return &Dummy{}
}

func (d *Dummy) Read(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}
	//nolint:gosec // not security sensitive
	t := 20 + 5*rand.Float64()
	//nolint:gosec // not security sensitive
	h := 40 + 20*rand.Float64()
	return NewReading(round1(t), round1(h), time.Now()), nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
