package filtermanager

import (
	"github.com/aarsakian/MFTRecover/filters"
	"github.com/aarsakian/MFTRecover/recovery"
)

type FilterManager struct {
	filters []filters.Filter
}

func (filterManager *FilterManager) Register(filter filters.Filter) {
	filterManager.filters = append(filterManager.filters, filter)
}

func (filterManager FilterManager) ApplyFilters(candidates recovery.Candidates) recovery.Candidates {
	for _, filter := range filterManager.filters {
		candidates = filter.Execute(candidates)
	}
	return candidates
}
