package classify

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixed11_Bucket(t *testing.T) {
	f := DefaultFixed11()

	tests := []struct {
		name     string
		score    float64
		expected int
	}{
		{name: "negative score", score: -0.5, expected: 0},
		{name: "zero", score: 0, expected: 0},
		{name: "just below first break", score: 0.0999, expected: 0},
		{name: "at first break", score: 0.1, expected: 1},
		{name: "between breaks", score: 0.15, expected: 1},
		{name: "at middle break", score: 0.5, expected: 5},
		{name: "just below last break", score: 0.9999, expected: 9},
		{name: "at last break", score: 1.0, expected: 10},
		{name: "above range", score: 3.2, expected: 10},
		{name: "positive infinity", score: math.Inf(1), expected: 10},
		{name: "negative infinity", score: math.Inf(-1), expected: 0},
		{name: "NaN", score: math.NaN(), expected: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, f.Bucket(tt.score))
		})
	}
}

func TestFixed11_EveryBucketReachable(t *testing.T) {
	f := DefaultFixed11()
	seen := make(map[int]bool)
	for i := 0; i <= 110; i++ {
		seen[f.Bucket(float64(i)/100)] = true
	}
	for b := 0; b < NumBuckets; b++ {
		assert.True(t, seen[b], "bucket %d never produced", b)
	}
}

func TestFixed11_Color(t *testing.T) {
	f := DefaultFixed11()

	assert.Equal(t, RdYlGn11[0], f.Color(0.05))
	assert.Equal(t, RdYlGn11[5], f.Color(0.55))
	assert.Equal(t, RdYlGn11[10], f.Color(1.0))
	assert.Equal(t, Missing, f.Color(math.NaN()))
	assert.Equal(t, RGBA{200, 200, 200, 180}, f.Color(math.NaN()))
}

func TestFixed11_ColorsAreMonotoneRedToGreen(t *testing.T) {
	first, last := RdYlGn11[0], RdYlGn11[NumBuckets-1]
	assert.Greater(t, first[0], first[1], "lowest bucket should be red-dominant")
	assert.Greater(t, last[1], last[0], "highest bucket should be green-dominant")
}

func TestNewFixed11_Validation(t *testing.T) {
	_, err := NewFixed11([]float64{0.1, 0.2}, RdYlGn11)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need 10 breaks")

	_, err = NewFixed11(DefaultBreaks, RdYlGn11[:5])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need 11 colors")

	bad := append([]float64(nil), DefaultBreaks...)
	bad[4] = bad[3]
	_, err = NewFixed11(bad, RdYlGn11)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strictly increasing")

	bad[4] = math.NaN()
	_, err = NewFixed11(bad, RdYlGn11)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not finite")
}

func TestNewFixed11_CopiesInputs(t *testing.T) {
	breaks := append([]float64(nil), DefaultBreaks...)
	f, err := NewFixed11(breaks, RdYlGn11)
	require.NoError(t, err)

	breaks[0] = 0.05
	assert.Equal(t, 0, f.Bucket(0.07))
	assert.Equal(t, DefaultBreaks, f.Breaks())
}

func TestFixed11_CustomBreaks(t *testing.T) {
	breaks := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	f, err := NewFixed11(breaks, RdYlGn11)
	require.NoError(t, err)

	assert.Equal(t, 0, f.Bucket(9.99))
	assert.Equal(t, 1, f.Bucket(10))
	assert.Equal(t, 10, f.Bucket(100))
}

func TestFixed11_Legend(t *testing.T) {
	legend := DefaultFixed11().Legend()
	require.Len(t, legend, NumBuckets+1)

	assert.Equal(t, "< 0.10", legend[0].Label)
	assert.Equal(t, "0.10 to < 0.20", legend[1].Label)
	assert.Equal(t, ">= 1.00", legend[10].Label)
	assert.Equal(t, "no score", legend[11].Label)
	assert.Equal(t, Missing, legend[11].Color)
}
