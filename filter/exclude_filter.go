package filter

import (
	"github.com/vearne/h2replay/protocol"
)

// KindExcludeFilter drops records of the listed frame kinds.
type KindExcludeFilter struct {
	exclude map[string]struct{}
}

func NewKindExcludeFilter(kinds []string) *KindExcludeFilter {
	var f KindExcludeFilter
	f.exclude = make(map[string]struct{}, len(kinds))
	for _, kind := range kinds {
		f.exclude[kind] = struct{}{}
	}
	return &f
}

// Filter :If ok is true, it means that the record can pass
func (f *KindExcludeFilter) Filter(rec *protocol.Record) (*protocol.Record, bool) {
	if _, ok := f.exclude[rec.Kind]; ok {
		return nil, false
	}
	return rec, true
}

// StreamZeroExcludeFilter drops connection-level frames (stream 0):
// SETTINGS, PING, GOAWAY and friends. Useful when only stream traffic
// matters.
type StreamZeroExcludeFilter struct{}

func NewStreamZeroExcludeFilter() *StreamZeroExcludeFilter {
	return &StreamZeroExcludeFilter{}
}

// Filter :If ok is true, it means that the record can pass
func (f *StreamZeroExcludeFilter) Filter(rec *protocol.Record) (*protocol.Record, bool) {
	if rec.StreamID == 0 {
		return nil, false
	}
	return rec, true
}
