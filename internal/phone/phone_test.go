package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	assert.Equal(t, "5511999990000", Canonical("+55 (11) 99999-0000"))
	assert.Equal(t, "11999990000", Canonical("11 99999 0000"))
	assert.Equal(t, "", Canonical("abc"))
}

func TestVariantsCoverCountryCodeAndNinthDigit(t *testing.T) {
	vs := Variants("5511999990000")
	assert.Contains(t, vs, "5511999990000")
	assert.Contains(t, vs, "11999990000")
	assert.Contains(t, vs, "551199990000")
	assert.Contains(t, vs, "1199990000")

	vs = Variants("1199990000")
	assert.Contains(t, vs, "1199990000")
	assert.Contains(t, vs, "551199990000")
	assert.Contains(t, vs, "11999990000")
	assert.Contains(t, vs, "5511999990000")
}

func TestVariantsDeduplicated(t *testing.T) {
	vs := Variants("5511999990000")
	seen := map[string]bool{}
	for _, v := range vs {
		assert.False(t, seen[v], "duplicate variant %s", v)
		seen[v] = true
	}
}

func TestVariantsEmpty(t *testing.T) {
	assert.Nil(t, Variants(""))
	assert.Nil(t, Variants("---"))
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches("5511999990000", "11999990000"))
	assert.True(t, Matches("11999990000", "+55 11 99999-0000"))
	assert.True(t, Matches("551199990000", "11999990000"))
	assert.False(t, Matches("5511999990000", "5511999990001"))
	assert.False(t, Matches("", "11999990000"))
}
