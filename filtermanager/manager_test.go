package filtermanager

import (
	"testing"

	"github.com/aarsakian/MFTRecover/filters"
	"github.com/aarsakian/MFTRecover/recovery"
	"github.com/stretchr/testify/assert"
)

func named(index uint64, name string, inUse, folder bool, recoverable float64) recovery.Candidate {
	return recovery.Candidate{
		Index:         index,
		PreferredName: name,
		Path:          "/docs/" + name,
		Filenames:     []recovery.Filename{{Name: name}},
		Streams:       []recovery.Stream{{Recoverable: recoverable}},
		InUse:         inUse,
		IsDirectory:   folder,
	}
}

func sample() recovery.Candidates {
	return recovery.Candidates{
		named(30, "a.txt", true, false, 100),
		named(31, "b.TXT", false, false, 40),
		named(32, "c.jpg", false, false, 90),
		named(33, "photos", false, true, 100),
	}
}

func indices(candidates recovery.Candidates) []uint64 {
	var out []uint64
	for _, candidate := range candidates {
		out = append(out, candidate.Index)
	}
	return out
}

func TestApplyFilters(t *testing.T) {
	var manager FilterManager
	assert.Equal(t, []uint64{30, 31, 32, 33}, indices(manager.ApplyFilters(sample())))

	manager.Register(filters.DeletedFilter{Include: true})
	manager.Register(filters.FoldersFilter{Include: false})
	assert.Equal(t, []uint64{31, 32}, indices(manager.ApplyFilters(sample())))

	manager.Register(filters.RecoverableFilter{Percent: 50})
	assert.Equal(t, []uint64{32}, indices(manager.ApplyFilters(sample())))
}

func TestFilters(t *testing.T) {
	tests := []struct {
		name   string
		filter filters.Filter
		want   []uint64
	}{
		{"names ignore case", filters.NameFilter{Filenames: []string{"A.TXT", "photos"}}, []uint64{30, 33}},
		{"extensions", filters.ExtensionsFilter{Extensions: []string{"txt"}}, []uint64{30, 31}},
		{"extensions with dot", filters.ExtensionsFilter{Extensions: []string{".jpg"}}, []uint64{32}},
		{"path prefix", filters.PathFilter{NamePath: "/DOCS/c"}, []uint64{32}},
		{"deleted off", filters.DeletedFilter{}, []uint64{30, 31, 32, 33}},
		{"folders on", filters.FoldersFilter{Include: true}, []uint64{30, 31, 32, 33}},
		{"recoverable off", filters.RecoverableFilter{}, []uint64{30, 31, 32, 33}},
		{"recoverable", filters.RecoverableFilter{Percent: 95}, []uint64{30, 33}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, indices(tt.filter.Execute(sample())))
		})
	}
}
