package caseparser

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/giygas/cureid-api/caseparser/entities"
)

func TestParseAgeRange(t *testing.T) {
	tests := []struct {
		input string
		want  entities.Age
	}{
		{"", entities.Age{Lower: 0, Upper: 100}},
		{"   ", entities.Age{Lower: 0, Upper: 100}},
		{"<1 year", entities.Age{Lower: 0, Upper: 1}},
		{"<1 YEAR", entities.Age{Lower: 0, Upper: 1}},
		{"30 - 39 years", entities.Age{Lower: 30, Upper: 39}},
		{"30-39", entities.Age{Lower: 30, Upper: 39}},
		{"1 - 5 years old", entities.Age{Lower: 1, Upper: 5}},
		{"90+ years", entities.Age{Lower: 90, Upper: 100}},
		{"adult", entities.Age{Lower: 90, Upper: 100}},
		{"a - b years", entities.Age{Lower: 90, Upper: 100}},
		{"40 - 30 years", entities.Age{Lower: 90, Upper: 100}},
		{"100 - 200 years", entities.Age{Lower: 90, Upper: 100}},
		{"1 - 2 - 3", entities.Age{Lower: 90, Upper: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAgeRange(tt.input))
		})
	}
}

func TestParseAgeRangeBounds(t *testing.T) {
	for lower := 0; lower <= MaxAge; lower += 7 {
		for upper := lower; upper <= MaxAge; upper += 11 {
			got := ParseAgeRange(fmt.Sprintf("%d - %d years", lower, upper))
			assert.Equal(t, entities.Age{Lower: lower, Upper: upper}, got)
			assert.LessOrEqual(t, got.Lower, got.Upper)
		}
	}
}
