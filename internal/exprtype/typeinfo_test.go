package exprtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListMapStructRendering(t *testing.T) {
	list := OfList(Integer)
	assert.Equal(t, "array<integer>", list.String())

	m := OfMap(Text, Integer)
	assert.Equal(t, "map<text,integer>", m.String())

	s := OfStruct(StructField{Name: "a", Type: Integer}, StructField{Name: "b", Type: Text})
	assert.Equal(t, "struct<a:integer,b:text>", s.String())

	f, ok := s.Field("A")
	assert.True(t, ok)
	assert.True(t, Equal(f.Type, Integer))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Integer, Integer))
	assert.False(t, Equal(Integer, BigInt))
	assert.True(t, Equal(OfList(Integer), OfList(Integer)))
	assert.False(t, Equal(OfList(Integer), OfList(BigInt)))
}

func TestCommonClass(t *testing.T) {
	c, ok := CommonClass(Integer, BigInt)
	assert.True(t, ok)
	assert.True(t, Equal(c, BigInt))

	c, ok = CommonClass(Integer, Double)
	assert.True(t, ok)
	assert.True(t, Equal(c, Double))

	c, ok = CommonClass(Integer, Text)
	assert.True(t, ok)
	assert.True(t, Equal(c, Text))

	_, ok = CommonClass(Boolean, Integer)
	assert.False(t, ok)
}
