package stdx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZero(t *testing.T) {
	assert.Equal(t, 0, Zero[int]())
	assert.Equal(t, "", Zero[string]())
	assert.Equal(t, false, Zero[bool]())
	assert.Nil(t, Zero[*int]())
	assert.Nil(t, Zero[error]())

	var expected []int
	assert.Equal(t, expected, Zero[[]int]())

	type pair struct {
		A int
		B string
	}
	assert.Equal(t, pair{}, Zero[pair]())
}

func TestIsZero(t *testing.T) {
	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"zero int", IsZero(0), true},
		{"non-zero int", IsZero(7), false},
		{"empty string", IsZero(""), true},
		{"string", IsZero("x"), false},
		{"empty struct", IsZero(struct{}{}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}
