package app

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/touch_panel/internal/touch"
)

func TestStatusLines(t *testing.T) {
	aux := touch.AuxReading{BatteryVolts: 3.71, TempC: 24.96}
	tests := []struct {
		name string
		snap displaySnapshot
		want []string
	}{
		{
			name: "nothing yet",
			want: []string{"Touch: waiting", "Aux: waiting"},
		},
		{
			name: "released",
			snap: displaySnapshot{haveTouch: true, aux: aux, haveAux: true},
			want: []string{"Touch: released", "Bat: 3.71V", "T: 25.0C"},
		},
		{
			name: "touched",
			snap: displaySnapshot{touch: pressAt(100, 200, 80, 120), haveTouch: true, aux: aux, haveAux: true},
			want: []string{"X:  80 Y: 120", "Z:1000", "Bat: 3.71V", "T: 25.0C"},
		},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, statusLines(tt.snap)); diff != "" {
			t.Errorf("%s: lines mismatch (-want +got):\n%s", tt.name, diff)
		}
	}
}

func litPixels(img *image1bit.VerticalLSB) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.BitAt(x, y) == image1bit.On {
				n++
			}
		}
	}
	return n
}

func TestRenderLines(t *testing.T) {
	if n := litPixels(renderLines(nil)); n != 0 {
		t.Errorf("empty render lit %d pixels", n)
	}
	one := litPixels(renderLines([]string{"Touch"}))
	if one == 0 {
		t.Fatal("text render lit no pixels")
	}
	two := litPixels(renderLines([]string{"Touch", "Touch"}))
	if two != 2*one {
		t.Errorf("two identical lines lit %d pixels, want %d", two, 2*one)
	}
	five := litPixels(renderLines([]string{"a", "a", "a", "a", "a"}))
	four := litPixels(renderLines([]string{"a", "a", "a", "a"}))
	if five != four {
		t.Errorf("fifth line drawn: %d vs %d lit pixels", five, four)
	}
}
