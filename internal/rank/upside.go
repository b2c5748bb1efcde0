package rank

// Upside returns the percentage change from current to estimated. IEEE
// semantics apply: a zero current value yields ±Inf (or NaN when estimated
// is also zero) and NaN inputs propagate.
func Upside(current, estimated float64) float64 {
	return ((estimated - current) / current) * 100
}
