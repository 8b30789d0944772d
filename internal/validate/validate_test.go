package validate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-agro-market/internal/apperr"
)

type sample struct {
	Name  string          `json:"name" validate:"required"`
	Email string          `json:"email" validate:"omitempty,email"`
	Price decimal.Decimal `json:"price" validate:"gte=0"`
	Kind  string          `json:"kind" validate:"oneof=a b"`
}

func TestStruct_Valid(t *testing.T) {
	err := Struct(sample{Name: "x", Price: decimal.NewFromFloat(1.5), Kind: "a"})
	assert.NoError(t, err)
}

func TestStruct_ReportsJSONFieldNames(t *testing.T) {
	err := Struct(sample{Email: "nope", Price: decimal.NewFromInt(-1), Kind: "c"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "email must be a valid email")
	assert.Contains(t, err.Error(), "price must be gte 0")
	assert.Contains(t, err.Error(), "kind must be one of [a b]")
}
