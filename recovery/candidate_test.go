package recovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCandidates() Candidates {
	return Candidates{
		{Index: 5, InUse: true, IsDirectory: true, Path: `\`,
			Filenames: []Filename{{Name: "."}}},
		{Index: 30, Path: `\docs\Report.DOCX`,
			Filenames: []Filename{{Name: "Report.DOCX"}, {Name: "REPORT~1.DOC"}},
			Streams:   []Stream{{Recoverable: 100}, {Name: "Zone.Identifier", Recoverable: 40}}},
		{Index: 31, InUse: true, Path: `\docs\notes.txt`,
			Filenames: []Filename{{Name: "notes.txt"}},
			Streams:   []Stream{{Recoverable: 75}}},
		{Index: 40, Path: `\$Orphan\old.txt`,
			Filenames: []Filename{{Name: "old.txt"}}},
	}
}

func TestCandidateFilters(t *testing.T) {
	candidates := sampleCandidates()

	assert.Equal(t, []uint64{30}, indicesOf(candidates.FilterByNames([]string{"report.docx"})))
	assert.Equal(t, []uint64{30, 31, 40}, indicesOf(candidates.FilterByExtensions([]string{".txt", "docx"})))
	assert.Equal(t, []uint64{30, 31}, indicesOf(candidates.FilterByPath(`\DOCS`)))
	assert.Equal(t, []uint64{30, 40}, indicesOf(candidates.FilterDeleted()))
	assert.Equal(t, []uint64{30, 31, 40}, indicesOf(candidates.FilterOutFolders()))
	assert.Equal(t, []uint64{5, 31, 40}, indicesOf(candidates.FilterByRecoverability(50)))
}

func TestCandidateRecoverable(t *testing.T) {
	candidates := sampleCandidates()
	assert.Equal(t, 40.0, candidates[1].Recoverable())
	assert.Equal(t, 100.0, candidates[3].Recoverable())
	require.NotNil(t, candidates[1].Stream("Zone.Identifier"))
	assert.Nil(t, candidates[2].Stream("Zone.Identifier"))
}

func TestFind(t *testing.T) {
	candidates := sampleCandidates()
	for _, index := range []uint64{5, 30, 31, 40} {
		found := candidates.Find(index)
		require.NotNil(t, found)
		assert.Equal(t, index, found.Index)
	}
	assert.Nil(t, candidates.Find(6))
	assert.Nil(t, candidates.Find(41))
	assert.Nil(t, Candidates{}.Find(0))
}
