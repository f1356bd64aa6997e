package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vearne/h2replay/protocol"
)

func record(kind string, streamID uint32) *protocol.Record {
	return &protocol.Record{Kind: kind, StreamID: streamID}
}

func TestKindMatchIncludeFilter(t *testing.T) {
	f := NewKindMatchIncludeFilter("DATA|HEADERS")

	_, ok := f.Filter(record("DATA", 1))
	assert.True(t, ok)
	_, ok = f.Filter(record("HEADERS", 1))
	assert.True(t, ok)
	_, ok = f.Filter(record("PING", 0))
	assert.False(t, ok)
}

func TestKindExcludeFilter(t *testing.T) {
	f := NewKindExcludeFilter([]string{"PING", "SETTINGS"})

	_, ok := f.Filter(record("PING", 0))
	assert.False(t, ok)
	_, ok = f.Filter(record("SETTINGS", 0))
	assert.False(t, ok)
	_, ok = f.Filter(record("DATA", 3))
	assert.True(t, ok)
}

func TestStreamZeroExcludeFilter(t *testing.T) {
	f := NewStreamZeroExcludeFilter()

	_, ok := f.Filter(record("SETTINGS", 0))
	assert.False(t, ok)
	_, ok = f.Filter(record("HEADERS", 5))
	assert.True(t, ok)
}

func TestFilterChain(t *testing.T) {
	chain := NewFilterChain()
	chain.AddIncludeFilter(NewKindMatchIncludeFilter("DATA|HEADERS|PING"))
	chain.AddExcludeFilters(NewStreamZeroExcludeFilter())

	// passes the include, fails the exclude
	_, ok := chain.Filter(record("PING", 0))
	assert.False(t, ok)

	// fails the include
	_, ok = chain.Filter(record("GOAWAY", 0))
	assert.False(t, ok)

	// passes both
	rec, ok := chain.Filter(record("DATA", 7))
	assert.True(t, ok)
	assert.Equal(t, "DATA", rec.Kind)
}

func TestEmptyChainPassesEverything(t *testing.T) {
	chain := NewFilterChain()
	_, ok := chain.Filter(record("GOAWAY", 0))
	assert.True(t, ok)
}
