package analysis

import "testing"

func TestMapExternalProgress(t *testing.T) {
	cases := []struct {
		external int
		want     int
	}{
		{-5, 15},
		{0, 15},
		{20, 26},
		{50, 42},
		{100, 70},
		{150, 70},
	}
	for _, tc := range cases {
		if got := MapExternalProgress(tc.external); got != tc.want {
			t.Errorf("MapExternalProgress(%d) = %d, want %d", tc.external, got, tc.want)
		}
	}
}

func TestMapExternalProgressStaysInExternalBand(t *testing.T) {
	for p := 0; p <= 100; p++ {
		got := MapExternalProgress(p)
		if got < ProgressExternalFloor || got > ProgressHandoff {
			t.Fatalf("MapExternalProgress(%d) = %d outside [%d,%d]", p, got, ProgressExternalFloor, ProgressHandoff)
		}
	}
}
