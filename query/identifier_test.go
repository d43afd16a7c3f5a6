package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentifierQuoteRoundTrip(t *testing.T) {
	quoted := NewIdentifier("`objectId`")
	assert.True(t, quoted.QuoteStripped())
	assert.Equal(t, "objectId", quoted.Get(NoQuotes))
	assert.Equal(t, "`objectId`", quoted.Get(Unmodified))
	assert.Equal(t, "`objectId`", quoted.Get(WithQuotes))

	bare := NewIdentifier("objectId")
	assert.False(t, bare.QuoteStripped())
	assert.Equal(t, "objectId", bare.Get(Unmodified))
	assert.Equal(t, "`objectId`", bare.Get(WithQuotes))
}

func TestIdentifierEqualityIgnoresQuotes(t *testing.T) {
	a := NewIdentifier("`objectId`")
	b := NewIdentifier("objectId")
	assert.True(t, a.Equal(b))
}

func TestIdentifierIsEmpty(t *testing.T) {
	assert.True(t, Identifier{}.IsEmpty())
	assert.False(t, NewIdentifier("x").IsEmpty())
}
