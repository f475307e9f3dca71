package realm

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/rowbind/internal/schema"
)

func TestNormalizeScalar(t *testing.T) {
	when := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		typ  schema.PropertyType
		in   any
		want any
		ok   bool
	}{
		{"int from int", schema.TypeInt, 7, int64(7), true},
		{"int from uint8", schema.TypeInt, uint8(200), int64(200), true},
		{"int from huge uint64", schema.TypeInt, uint64(math.MaxUint64), nil, false},
		{"int from float", schema.TypeInt, 1.5, nil, false},
		{"float from int", schema.TypeFloat, 3, float64(3), true},
		{"float from int64", schema.TypeFloat, int64(-2), float64(-2), true},
		{"float from float32", schema.TypeFloat, float32(0.5), float64(0.5), true},
		{"float from string", schema.TypeFloat, "3", nil, false},
		{"any from int32", schema.TypeAny, int32(9), int64(9), true},
		{"any from float", schema.TypeAny, 2.25, 2.25, true},
		{"any from string", schema.TypeAny, "x", "x", true},
		{"date", schema.TypeDate, when, when, true},
		{"nil", schema.TypeInt, nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := normalizeScalar(tt.typ, tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
