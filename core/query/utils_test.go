package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInt64Ptr(t *testing.T) {
	i := int64(12345)
	ptr := Int64Ptr(i)
	assert.NotNil(t, ptr)
	assert.Equal(t, i, *ptr)
}

func TestConcatFilters(t *testing.T) {
	base := make([]QueryFilter, 1, 4)
	base[0] = Equal("a", 1)
	out := ConcatFilters(base, Equal("b", 2))
	assert.Len(t, out, 2)

	out[0] = Equal("z", 0)
	assert.Equal(t, "a", base[0].Equality.Field)
}
