// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package xpt2046

import "fmt"

// Filter reduces three redundant conversions per axis to a single X/Y pair.
// Reading i of x pairs with reading i of y.
type Filter interface {
	Reduce(x, y [3]int16) (int16, int16)
	String() string
}

// BestTwoOfThree averages, per axis, the two readings closest to each other
// and drops the third. X and Y choose their pairs independently, so the kept
// X readings may come from different conversions than the kept Y readings;
// use PairwiseDistance for one shared choice.
type BestTwoOfThree struct{}

func (BestTwoOfThree) Reduce(x, y [3]int16) (int16, int16) {
	return bestTwoAvg(x[0], x[1], x[2]), bestTwoAvg(y[0], y[1], y[2])
}

func (BestTwoOfThree) String() string { return "best2of3" }

// bestTwoAvg prefers (a,b), then (a,c), then (b,c) when differences tie.
func bestTwoAvg(a, b, c int16) int16 {
	ab := absDiff(a, b)
	ac := absDiff(a, c)
	bc := absDiff(b, c)
	switch {
	case ab <= ac && ab <= bc:
		return mean(a, b)
	case ac <= ab && ac <= bc:
		return mean(a, c)
	default:
		return mean(b, c)
	}
}

// PairwiseDistance picks the two readings with the smallest squared
// Euclidean distance in the X/Y plane and averages both axes of that pair, so
// the result always comes from the same two conversions.
type PairwiseDistance struct{}

// pairs are visited in this order; only a strictly closer pair replaces the
// current choice.
var pairs = [3][2]int{{0, 1}, {1, 2}, {0, 2}}

func (PairwiseDistance) Reduce(x, y [3]int16) (int16, int16) {
	best := pairs[0]
	bestDist := distSq(x, y, best)
	for _, p := range pairs[1:] {
		if d := distSq(x, y, p); d < bestDist {
			best, bestDist = p, d
		}
	}
	i, j := best[0], best[1]
	return mean(x[i], x[j]), mean(y[i], y[j])
}

func (PairwiseDistance) String() string { return "pairwise" }

func distSq(x, y [3]int16, p [2]int) int64 {
	dx := int64(x[p[0]]) - int64(x[p[1]])
	dy := int64(y[p[0]]) - int64(y[p[1]])
	return dx*dx + dy*dy
}

func absDiff(a, b int16) int32 {
	d := int32(a) - int32(b)
	if d < 0 {
		return -d
	}
	return d
}

// mean floors like the hardware-friendly shift it replaces.
func mean(a, b int16) int16 {
	return int16((int32(a) + int32(b)) >> 1)
}

// ParseFilter maps a configuration name to a Filter. The empty name selects
// the default.
func ParseFilter(name string) (Filter, error) {
	switch name {
	case "", "best2of3":
		return BestTwoOfThree{}, nil
	case "pairwise":
		return PairwiseDistance{}, nil
	default:
		return nil, fmt.Errorf("unknown touch filter %q (want best2of3 or pairwise)", name)
	}
}
