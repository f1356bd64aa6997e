package biz

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vearne/h2replay/filter"
	"github.com/vearne/h2replay/plugin"
	"github.com/vearne/h2replay/protocol"
)

// testInput replays queued records, then reports it was stopped.
type testInput struct {
	recs chan *protocol.Record
}

func newTestInput(recs ...*protocol.Record) *testInput {
	in := &testInput{recs: make(chan *protocol.Record, len(recs))}
	for _, rec := range recs {
		in.recs <- rec
	}
	close(in.recs)
	return in
}

func (in *testInput) Read() (*protocol.Record, error) {
	rec, ok := <-in.recs
	if !ok {
		return nil, plugin.ErrorStopped
	}
	return rec, nil
}

// testOutput hands every written record to a callback.
type testOutput struct {
	cb func(*protocol.Record)
}

func (o *testOutput) Write(rec *protocol.Record) error {
	o.cb(rec)
	return nil
}

func record(kind string, streamID uint32) *protocol.Record {
	return &protocol.Record{Kind: kind, StreamID: streamID}
}

func TestEmitterCopiesToAllOutputs(t *testing.T) {
	var mu sync.Mutex
	var got1, got2 []string

	input := newTestInput(record("HEADERS", 1), record("DATA", 1))
	out1 := &testOutput{cb: func(rec *protocol.Record) {
		mu.Lock()
		got1 = append(got1, rec.Kind)
		mu.Unlock()
	}}
	out2 := &testOutput{cb: func(rec *protocol.Record) {
		mu.Lock()
		got2 = append(got2, rec.Kind)
		mu.Unlock()
	}}

	plugins := &InOutPlugins{
		Inputs:  []PluginReader{input},
		Outputs: []PluginWriter{out1, out2},
	}
	plugins.All = append(plugins.All, input, out1, out2)

	emitter := NewEmitter(filter.NewFilterChain(), nil)
	emitter.Start(plugins)
	// the input terminates by itself, CopyMulty returns
	emitter.Wait()

	assert.Equal(t, []string{"HEADERS", "DATA"}, got1)
	assert.Equal(t, []string{"HEADERS", "DATA"}, got2)
}

func TestEmitterAppliesFilterChain(t *testing.T) {
	var mu sync.Mutex
	var got []string

	input := newTestInput(record("SETTINGS", 0), record("HEADERS", 1), record("PING", 0))
	out := &testOutput{cb: func(rec *protocol.Record) {
		mu.Lock()
		got = append(got, rec.Kind)
		mu.Unlock()
	}}

	plugins := &InOutPlugins{
		Inputs:  []PluginReader{input},
		Outputs: []PluginWriter{out},
	}
	plugins.All = append(plugins.All, input, out)

	chain := filter.NewFilterChain()
	chain.AddExcludeFilters(filter.NewStreamZeroExcludeFilter())

	emitter := NewEmitter(chain, nil)
	emitter.Start(plugins)
	emitter.Wait()

	assert.Equal(t, []string{"HEADERS"}, got)
}
