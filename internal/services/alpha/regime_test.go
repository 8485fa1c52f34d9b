package alpha

import (
	"testing"

	"AlphaForge/internal/domain/models"
)

func TestClassify(t *testing.T) {
	c := NewRegimeClassifier(5, -5)
	cases := []struct {
		in   *float64
		want string
	}{
		{nil, models.RegimeUnknown},
		{fptr(7.2), models.RegimeBull},
		{fptr(5.0), models.RegimeSideways},
		{fptr(0), models.RegimeSideways},
		{fptr(-5.0), models.RegimeSideways},
		{fptr(-6.1), models.RegimeBear},
	}
	for _, tc := range cases {
		if got := c.Classify(tc.in); got != tc.want {
			t.Fatalf("Classify(%v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
