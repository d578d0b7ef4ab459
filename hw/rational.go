package hw

import "fmt"

// RationalScale is the fixed denominator used when converting floats.
const RationalScale = 1000

// Rational is a fixed-point fraction as used by rational parameters.
type Rational struct {
	Num, Den int32
}

// ToRational converts v to a Rational with denominator RationalScale,
// truncating toward zero.
func ToRational(v float32) Rational {
	return Rational{Num: int32(v * RationalScale), Den: RationalScale}
}

// Float returns r as a float. A zero denominator yields 0.
func (r Rational) Float() float32 {
	if r.Den == 0 {
		return 0
	}
	return float32(r.Num) / float32(r.Den)
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}
