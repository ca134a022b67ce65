package game

import "math/rand"

// Roller produces die values. The server is the only source of rolls; a
// client-supplied value is never trusted. Tests swap in a scripted roller.
type Roller interface {
	Roll() int
}

type dieRoller struct{}

// NewRoller returns the production six-sided die.
func NewRoller() Roller {
	return dieRoller{}
}

func (dieRoller) Roll() int {
	return rand.Intn(6) + 1
}
