package expressions

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruthy(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"nil", nil, false},
		{"false", false, false},
		{"true", true, true},
		{"empty string", "", false},
		{"zero string", "0", true},
		{"false string", "false", true},
		{"zero float", 0.0, false},
		{"nan", math.NaN(), false},
		{"negative", -1.0, true},
		{"zero int", 0, false},
		{"int64", int64(5), true},
		{"zero uint8", uint8(0), false},
		{"json number zero", json.Number("0"), false},
		{"json number", json.Number("2.5"), true},
		{"empty map", map[string]any{}, true},
		{"empty slice", []any{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truthy(tt.value))
		})
	}
}

func TestTruthy_MissingVariable(t *testing.T) {
	assert.False(t, Truthy(Resolve("{{nope}}", map[string]any{})))
}
