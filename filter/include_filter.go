package filter

import (
	"regexp"

	"github.com/vearne/h2replay/protocol"
	slog "github.com/vearne/simplelog"
)

// KindMatchIncludeFilter passes records whose frame kind matches a
// regular expression, e.g. "DATA|HEADERS".
type KindMatchIncludeFilter struct {
	r *regexp.Regexp
}

func NewKindMatchIncludeFilter(expr string) *KindMatchIncludeFilter {
	var f KindMatchIncludeFilter
	var err error
	f.r, err = regexp.Compile(expr)
	if err != nil {
		slog.Fatal("expr error:%v", err)
	}
	return &f
}

// Filter :If ok is true, it means that the record can pass
func (f *KindMatchIncludeFilter) Filter(rec *protocol.Record) (*protocol.Record, bool) {
	if f.r.MatchString(rec.Kind) {
		return rec, true
	}
	return nil, false
}
