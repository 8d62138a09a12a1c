package outcome

import "math/rand"

// Generator produces the one-time result revealed after payment.
type Generator interface {
	Generate() bool
}

type GeneratorFunc func() bool

func (f GeneratorFunc) Generate() bool { return f() }

// Coin is a fair coin flip.
type Coin struct{}

func (Coin) Generate() bool {
	return rand.Float64() > 0.5
}
