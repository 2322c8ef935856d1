// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package xpt2046

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFilterReduce(t *testing.T) {
	type xy struct{ X, Y int16 }
	tests := []struct {
		name     string
		x, y     [3]int16
		best2of3 xy
		pairwise xy
	}{
		{
			name:     "outlier dropped",
			x:        [3]int16{10, 12, 100},
			y:        [3]int16{10, 12, 100},
			best2of3: xy{11, 11},
			pairwise: xy{11, 11},
		},
		{
			name:     "all equal",
			x:        [3]int16{777, 777, 777},
			y:        [3]int16{1234, 1234, 1234},
			best2of3: xy{777, 1234},
			pairwise: xy{777, 1234},
		},
		{
			name:     "typical press",
			x:        [3]int16{500, 502, 900},
			y:        [3]int16{300, 301, 700},
			best2of3: xy{501, 300},
			pairwise: xy{501, 300},
		},
		{
			// Per axis the closest pairs differ: X keeps (0,1), Y keeps (1,2).
			name:     "axes disagree",
			x:        [3]int16{100, 102, 200},
			y:        [3]int16{50, 400, 402},
			best2of3: xy{101, 401},
			pairwise: xy{151, 401},
		},
		{
			name:     "ties prefer first then first and third",
			x:        [3]int16{0, 4, 2},
			y:        [3]int16{0, 2, 4},
			best2of3: xy{1, 1},
			pairwise: xy{3, 3},
		},
		{
			name:     "pairwise tie keeps first pair",
			x:        [3]int16{0, 2, 4},
			y:        [3]int16{0, 0, 0},
			best2of3: xy{1, 0},
			pairwise: xy{1, 0},
		},
		{
			name:     "mean floors",
			x:        [3]int16{3, 4, 4000},
			y:        [3]int16{0, 1, 4000},
			best2of3: xy{3, 0},
			pairwise: xy{3, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got xy
			got.X, got.Y = BestTwoOfThree{}.Reduce(tt.x, tt.y)
			if diff := cmp.Diff(tt.best2of3, got); diff != "" {
				t.Errorf("best2of3 mismatch (-want +got):\n%s", diff)
			}
			got.X, got.Y = PairwiseDistance{}.Reduce(tt.x, tt.y)
			if diff := cmp.Diff(tt.pairwise, got); diff != "" {
				t.Errorf("pairwise mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseFilter(t *testing.T) {
	for name, want := range map[string]string{
		"":         "best2of3",
		"best2of3": "best2of3",
		"pairwise": "pairwise",
	} {
		f, err := ParseFilter(name)
		if err != nil {
			t.Fatalf("ParseFilter(%q): %v", name, err)
		}
		if f.String() != want {
			t.Errorf("ParseFilter(%q) = %s, want %s", name, f, want)
		}
	}
	if _, err := ParseFilter("median"); err == nil {
		t.Error("ParseFilter(median) returned nil error")
	}
}
