package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/hiveql-compiler/internal/sql/types"
)

func TestPrimitiveNames(t *testing.T) {
	assert.Equal(t, "BOOLEAN", types.Boolean.Name())
	assert.Equal(t, "SMALLINT", types.SmallInt.Name())
	assert.Equal(t, "INTEGER", types.Integer.Name())
	assert.Equal(t, "BIGINT", types.BigInt.Name())
	assert.Equal(t, "FLOAT", types.Float.Name())
	assert.Equal(t, "DOUBLE PRECISION", types.Double.Name())
	assert.Equal(t, "TEXT", types.Text.Name())
	assert.Equal(t, "TIMESTAMP", types.Timestamp.Name())
	assert.Equal(t, "UNKNOWN", types.Unknown.Name())
}

func TestDecimalNamesCarryPrecisionAndScale(t *testing.T) {
	assert.Equal(t, "DECIMAL(38,18)", types.Decimal(38, 18).Name())
	assert.Equal(t, "DECIMAL(10,2)", types.Decimal(10, 2).Name())
}

func TestValueNullAndNonNull(t *testing.T) {
	null := types.NewNullValue()
	assert.True(t, null.IsNull())
	assert.Equal(t, "NULL", null.String())

	v := types.NewValue(int64(42))
	assert.False(t, v.IsNull())
	assert.Equal(t, "42", v.String())
	assert.Equal(t, int64(42), v.Data)
}
