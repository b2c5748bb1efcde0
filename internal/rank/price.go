// Package rank turns raw stock records into an ordered list with the best
// pick(s) flagged.
package rank

import (
	"math"
	"regexp"
	"strconv"
)

var numberRe = regexp.MustCompile(`\d+(\.\d+)?`)

// ParsePrice extracts a number from a free-form price string. A range such
// as "$100-$150" yields the midpoint of its first two numbers. Text without
// any digits yields NaN. Commas are not thousands separators here:
// "1,250" parses as the mean of 1 and 250.
func ParsePrice(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	matches := numberRe.FindAllString(s, 2)
	switch len(matches) {
	case 0:
		return math.NaN()
	case 1:
		return parseFloat(matches[0])
	default:
		return (parseFloat(matches[0]) + parseFloat(matches[1])) / 2
	}
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
