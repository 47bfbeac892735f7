package exporter

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	ntfs "github.com/aarsakian/MFTRecover/FS/NTFS"
	MFTAttributes "github.com/aarsakian/MFTRecover/FS/NTFS/MFT/attributes"
	"github.com/aarsakian/MFTRecover/img"
	"github.com/aarsakian/MFTRecover/internal/synth"
	"github.com/aarsakian/MFTRecover/recovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// volume has two clusters of 'a' at LCN 300 and two of 'b' at LCN 302.
func volume(t *testing.T) (img.DiskReader, *ntfs.Geometry) {
	t.Helper()
	layout := synth.SmallLayout()
	image := synth.NewImage(layout)
	image.WriteAt(image.ClusterOffset(300), bytes.Repeat([]byte{'a'}, 2*4096))
	image.WriteAt(image.ClusterOffset(302), bytes.Repeat([]byte{'b'}, 2*4096))

	var vbr ntfs.VBR
	require.NoError(t, vbr.Parse(synth.BootSector(layout)))
	geometry, err := ntfs.NewGeometry(vbr.Params(), 0)
	require.NoError(t, err)
	return img.NewMemoryReader(image.Bytes()), geometry
}

func nonResident(size, initialized uint64, runs ...MFTAttributes.Run) recovery.Stream {
	return recovery.Stream{Size: size, InitializedSize: initialized, AllocatedSize: size, Runs: runs}
}

func TestWriteStream(t *testing.T) {
	hD, geometry := volume(t)

	tests := []struct {
		name     string
		stream   recovery.Stream
		expected []byte
		missing  uint64
	}{
		{
			"contiguous",
			nonResident(5000, 5000, MFTAttributes.Run{VCN: 0, LCN: 300, Length: 2}),
			bytes.Repeat([]byte{'a'}, 5000), 0,
		},
		{
			"sparse hole",
			nonResident(3*4096, 3*4096,
				MFTAttributes.Run{VCN: 0, LCN: 302, Length: 1},
				MFTAttributes.Run{VCN: 1, LCN: MFTAttributes.SparseLCN, Length: 1},
				MFTAttributes.Run{VCN: 2, LCN: 300, Length: 1}),
			append(append(bytes.Repeat([]byte{'b'}, 4096), make([]byte, 4096)...), bytes.Repeat([]byte{'a'}, 4096)...), 0,
		},
		{
			"outside the volume",
			nonResident(2*4096, 2*4096,
				MFTAttributes.Run{VCN: 0, LCN: 300, Length: 1},
				MFTAttributes.Run{VCN: 1, LCN: 5000, Length: 1}),
			append(bytes.Repeat([]byte{'a'}, 4096), make([]byte, 4096)...), 4096,
		},
		{
			"past initialized size",
			nonResident(4096, 100, MFTAttributes.Run{VCN: 0, LCN: 302, Length: 1}),
			append(bytes.Repeat([]byte{'b'}, 100), make([]byte, 3996)...), 0,
		},
		{
			"run list shorter than the data",
			nonResident(4096+10, 4096+10, MFTAttributes.Run{VCN: 0, LCN: 300, Length: 1}),
			append(bytes.Repeat([]byte{'a'}, 4096), make([]byte, 10)...), 10,
		},
		{
			"resident",
			recovery.Stream{Resident: true, Payload: []byte("hello"), Size: 5},
			[]byte("hello"), 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			written, missing, err := WriteStream(hD, geometry, tt.stream, &out)
			require.NoError(t, err)
			assert.Equal(t, uint64(len(tt.expected)), written)
			assert.Equal(t, tt.missing, missing)
			assert.Equal(t, tt.expected, out.Bytes())
		})
	}
}

func TestExport(t *testing.T) {
	hD, geometry := volume(t)
	location := t.TempDir()
	candidates := recovery.Candidates{
		{Index: 30, Seq: 2, PreferredName: "report.txt",
			Streams: []recovery.Stream{nonResident(5000, 5000, MFTAttributes.Run{VCN: 0, LCN: 300, Length: 2})}},
		{Index: 31, Seq: 1, PreferredName: "docs", IsDirectory: true},
		{Index: 32, Seq: 1, PreferredName: "a/b:c.txt",
			Streams: []recovery.Stream{{Resident: true, Payload: []byte("hi"), Size: 2}}},
		{Index: 33, Seq: 1,
			Streams: []recovery.Stream{{Name: "ads", Resident: true, Payload: []byte("x"), Size: 1}}},
	}

	exp := Exporter{Location: location, Hash: "md5", Strategy: StrategyID, Workers: 2}
	exported, err := exp.Export(hD, geometry, candidates)
	require.NoError(t, err)
	require.Len(t, exported, 2)

	first := exported[0]
	require.NoError(t, first.Err)
	assert.Equal(t, filepath.Join(location, "30-2_report.txt"), first.Path)
	content, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{'a'}, 5000), content)
	sum := md5.Sum(content)
	assert.Equal(t, "MD5 "+hex.EncodeToString(sum[:]), first.Hash)

	assert.Equal(t, filepath.Join(location, "32-1_a_b_c.txt"), exported[1].Path)
	assert.Equal(t, uint64(2), exported[1].Written)
}

func TestExportSameNameKeepsBoth(t *testing.T) {
	hD, geometry := volume(t)
	location := t.TempDir()
	candidates := recovery.Candidates{
		{Index: 40, Seq: 1, PreferredName: "desktop.ini",
			Streams: []recovery.Stream{nonResident(5000, 5000, MFTAttributes.Run{VCN: 0, LCN: 300, Length: 2})}},
		{Index: 41, Seq: 4, PreferredName: "Desktop.ini",
			Streams: []recovery.Stream{nonResident(5000, 5000, MFTAttributes.Run{VCN: 0, LCN: 302, Length: 2})}},
	}

	exported, err := Exporter{Location: location, Strategy: StrategyOverwrite, Workers: 2}.Export(hD, geometry, candidates)
	require.NoError(t, err)
	require.Len(t, exported, 2)
	assert.Equal(t, filepath.Join(location, "desktop.ini"), exported[0].Path)
	assert.Equal(t, filepath.Join(location, "41-4_Desktop.ini"), exported[1].Path)

	first, err := os.ReadFile(exported[0].Path)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{'a'}, 5000), first)
	second, err := os.ReadFile(exported[1].Path)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{'b'}, 5000), second)
}

func TestExportRejectsHash(t *testing.T) {
	hD, geometry := volume(t)
	_, err := Exporter{Location: t.TempDir(), Hash: "crc32"}.Export(hD, geometry, nil)
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	exp := Exporter{Strategy: StrategyOverwrite}
	assert.Equal(t, "report.txt", exp.fileName(&recovery.Candidate{Index: 30, PreferredName: "report.txt"}))
	assert.Equal(t, "record_40-3", exp.fileName(&recovery.Candidate{Index: 40, Seq: 3}))
	assert.Equal(t, "record_41-1", exp.fileName(&recovery.Candidate{Index: 41, Seq: 1, PreferredName: ".."}))
}
