package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{in: "Malolos", expected: "malolos"},
		{in: "  MALOLOS  ", expected: "malolos"},
		{in: "City of Malolos (Capital)", expected: "malolos"},
		{in: "Malolos City", expected: "malolos"},
		{in: "San Jose del Monte City", expected: "san jose del monte"},
		{in: "Santa María", expected: "santa maria"},
		{in: "Sta. Maria", expected: "santa maria"},
		{in: "Sto. Niño", expected: "santo nino"},
		{in: "Doña Remedios Trinidad", expected: "dona remedios trinidad"},
		{in: "Gen. Trias", expected: "general trias"},
		{in: "City", expected: "city"},
		{in: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeName(tt.in))
		})
	}
}
