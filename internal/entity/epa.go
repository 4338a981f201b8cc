package entity

import "math"

// epaContribution describes how one semantic primitive shifts EPA coordinates.
type epaContribution struct {
	e, p, a float64
}

// primitiveEPA maps semantic primitives to their EPA contributions.
// EPA is a 3D projection of the full primitive space.
var primitiveEPA = map[string]epaContribution{
	// Evaluation (GOOD/BAD)
	"GOOD": {e: 1},
	"BAD":  {e: -1},

	// Potency (BIG/SMALL + CAN/MUST)
	"BIG":   {p: 1},
	"SMALL": {p: -1},
	"CAN":   {p: 0.5},
	"MUST":  {p: -0.3},

	// Activity (DO/HAPPEN + MOVE)
	"DO":     {a: 1},
	"MOVE":   {a: 0.8},
	"HAPPEN": {a: 0.5},
	"ALIVE":  {a: 0.3},
	"DEAD":   {a: -1},

	// Mixed contributions
	"WANT":  {p: 0.2, a: 0.3},
	"THINK": {a: 0.2},
	"FEEL":  {e: 0.2, a: 0.2},
}

// maxEPADistance is the largest possible distance in EPA space
// (each axis spans [-1, +1], so each squared difference is at most 4).
var maxEPADistance = math.Sqrt(3 * 4)

// PrimitivesToEPA folds weighted semantic primitives into ternary EPA
// coordinates. Values outside |0.3| round to +1/-1; the confidence scales
// with how many recognized primitives contributed, saturating at three.
func PrimitivesToEPA(primitives map[string]float64) EPAValues {
	var eSum, pSum, aSum float64
	count := 0

	for prim, value := range primitives {
		contrib, ok := primitiveEPA[prim]
		if !ok {
			continue
		}
		eSum += contrib.e * value
		pSum += contrib.p * value
		aSum += contrib.a * value
		count++
	}

	return EPAValues{
		Evaluation: toTernary(eSum),
		Potency:    toTernary(pSum),
		Activity:   toTernary(aSum),
		Confidence: math.Min(1.0, float64(count)/3.0),
	}
}

func toTernary(x float64) Ternary {
	switch {
	case x > 0.3:
		return Positive
	case x < -0.3:
		return Negative
	default:
		return Neutral
	}
}

// EPASimilarity returns a similarity in [0, 1] where 1 means identical.
func EPASimilarity(a, b EPAValues) float64 {
	return 1.0 - a.Distance(b)/maxEPADistance
}

// EPACompatible reports whether two EPA profiles are similar enough to be
// treated as affectively compatible.
func EPACompatible(a, b EPAValues, threshold float64) bool {
	return EPASimilarity(a, b) >= threshold
}
