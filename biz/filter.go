package biz

import (
	"github.com/vearne/h2replay/config"
	"github.com/vearne/h2replay/filter"
)

func NewFilterChain(settings *config.AppSettings) (filter.Filter, error) {
	c := filter.NewFilterChain()

	if len(settings.ExcludeKinds) > 0 {
		c.AddExcludeFilters(filter.NewKindExcludeFilter(settings.ExcludeKinds))
	}
	if settings.ExcludeStreamZero {
		c.AddExcludeFilters(filter.NewStreamZeroExcludeFilter())
	}
	if len(settings.IncludeFilterKindMatch) > 0 {
		f := filter.NewKindMatchIncludeFilter(settings.IncludeFilterKindMatch)
		c.AddIncludeFilter(f)
	}
	return c, nil
}
