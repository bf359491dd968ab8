package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	got := Normalize(Filter{
		"a": Absent,
		"b": String("x"),
		"c": List("p", "q"),
	})
	assert.Equal(t, Options{"b": "x", "c": "p,q"}, got)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	first := Normalize(Filter{"b": String("x"), "c": List("p", "q")})
	assert.Equal(t, first, Normalize(first.Filter()))
}

func TestNormalizeKeepsOrder(t *testing.T) {
	got := Normalize(Filter{"ids": List("z", "a", "m")})
	assert.Equal(t, "z,a,m", got["ids"])
}

func TestNormalizeDropsEmpty(t *testing.T) {
	got := Normalize(Filter{
		"names": String(""),
		"ids":   List(),
		"x":     List("only"),
	})
	assert.Equal(t, Options{"x": "only"}, got)
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	items := []string{"p", "q"}
	f := Filter{"c": List(items...)}
	_ = Normalize(f)
	items[0] = "changed"
	assert.Equal(t, []string{"p", "q"}, f["c"].Items())
	assert.Len(t, f, 1)
}

func TestFilterMerge(t *testing.T) {
	base := Filter{"a": String("1"), "b": String("2")}
	merged := base.Merge(Filter{"b": String("3"), "c": List("x")})

	assert.Equal(t, Options{"a": "1", "b": "3", "c": "x"}, Normalize(merged))
	assert.Equal(t, Options{"a": "1", "b": "2"}, Normalize(base))
}

func TestOptionsValues(t *testing.T) {
	vals := Options{"names": "a,b", "type": "all"}.Values()
	assert.Equal(t, "names=a%2Cb&type=all", vals.Encode())
}

func TestValueKinds(t *testing.T) {
	assert.True(t, Absent.IsAbsent())
	assert.False(t, String("x").IsList())
	assert.True(t, List("x").IsList())
}
