package ntfs

import (
	"testing"

	"github.com/aarsakian/MFTRecover/img"
	"github.com/aarsakian/MFTRecover/internal/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVBRParse(t *testing.T) {
	var vbr VBR
	require.NoError(t, vbr.Parse(synth.BootSector(synth.SmallLayout())))

	assert.Equal(t, uint16(512), vbr.BytesPerSector)
	assert.Equal(t, uint8(8), vbr.SectorsPerCluster)
	assert.Equal(t, uint64(8192), vbr.TotalSectors)
	assert.Equal(t, uint64(16), vbr.MFTLCN)
	assert.Equal(t, uint64(512), vbr.MFTMirrLCN)
	assert.Equal(t, int8(-10), vbr.ClustersPerMFTRecord)
	assert.Equal(t, uint64(0x1234567890abcdef), vbr.SerialNumber)
}

func TestVBRParseRejects(t *testing.T) {
	sector := synth.BootSector(synth.SmallLayout())
	copy(sector[3:11], "MSDOS5.0")
	var vbr VBR
	assert.ErrorIs(t, vbr.Parse(sector), ErrNotNTFS)

	sector = synth.BootSector(synth.SmallLayout())
	sector[511] = 0
	assert.ErrorIs(t, vbr.Parse(sector), ErrNotNTFS)

	assert.Error(t, vbr.Parse(sector[:40]))
}

func TestNewGeometry(t *testing.T) {
	tests := []struct {
		name       string
		params     BootParams
		cluster    int
		record     int
		index      int
		clusters   uint64
		wantsError bool
	}{
		{
			name:     "negative record size",
			params:   BootParams{SectorSize: 512, SectorsPerCluster: 8, MFTLCN: 4, ClustersPerMFTRecord: -10, ClustersPerIndexRecord: 1, TotalSectors: 80000},
			cluster:  4096,
			record:   1024,
			index:    4096,
			clusters: 10000,
		},
		{
			name:     "records spanning clusters",
			params:   BootParams{SectorSize: 512, SectorsPerCluster: 1, MFTLCN: 4, ClustersPerMFTRecord: 2, ClustersPerIndexRecord: 8, TotalSectors: 1000},
			cluster:  512,
			record:   1024,
			index:    4096,
			clusters: 1000,
		},
		{
			name:     "large clusters",
			params:   BootParams{SectorSize: 4096, SectorsPerCluster: 0xf0, MFTLCN: 1, ClustersPerMFTRecord: -12, ClustersPerIndexRecord: -12, TotalSectors: 1 << 20},
			cluster:  4096 << 16,
			record:   4096,
			index:    4096,
			clusters: (1 << 20) >> 16,
		},
		{
			name:       "odd sector size",
			params:     BootParams{SectorSize: 520, SectorsPerCluster: 1, ClustersPerMFTRecord: -10, TotalSectors: 100},
			wantsError: true,
		},
		{
			name:       "zero clusters per record",
			params:     BootParams{SectorSize: 512, SectorsPerCluster: 1, ClustersPerMFTRecord: 0, TotalSectors: 100},
			wantsError: true,
		},
		{
			name:       "record smaller than a sector",
			params:     BootParams{SectorSize: 4096, SectorsPerCluster: 1, ClustersPerMFTRecord: -10, TotalSectors: 100},
			wantsError: true,
		},
		{
			name:       "mft beyond volume",
			params:     BootParams{SectorSize: 512, SectorsPerCluster: 1, MFTLCN: 100, ClustersPerMFTRecord: -10, TotalSectors: 100},
			wantsError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			geometry, err := NewGeometry(tt.params, 0)
			if tt.wantsError {
				assert.ErrorIs(t, err, ErrInvalidGeometry)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cluster, geometry.ClusterSize)
			assert.Equal(t, tt.record, geometry.MFTRecordSize)
			assert.Equal(t, tt.index, geometry.IndexRecordSize)
			assert.Equal(t, tt.clusters, geometry.TotalClusters)
		})
	}
}

func TestReadGeometryAtOffset(t *testing.T) {
	image := make([]byte, 1<<20)
	copy(image[2048:], synth.BootSector(synth.SmallLayout()))

	geometry, err := ReadGeometry(img.NewMemoryReader(image), 2048)
	require.NoError(t, err)

	assert.Equal(t, int64(2048), geometry.VolumeOffset)
	assert.Equal(t, int64(2048+16*4096), geometry.MFTOffset())
	assert.Equal(t, int64(2048+512*4096), geometry.MirrorOffset())
	assert.Equal(t, uint64(1024), geometry.TotalClusters)

	_, err = ReadGeometry(img.NewMemoryReader(image), 0)
	assert.ErrorIs(t, err, ErrNotNTFS)
}

func TestMFTZone(t *testing.T) {
	geometry := Geometry{ClusterSize: 4096, MFTRecordSize: 1024, MFTLCN: 16, TotalClusters: 1024}

	assert.Equal(t, uint64(128), geometry.MFTZone(3))
	assert.Equal(t, uint64(512), geometry.RecordsInClusters(geometry.MFTZone(3)))
	assert.Equal(t, uint64(1008), geometry.MFTZone(0))

	assert.True(t, geometry.ContainsClusters(1000, 24))
	assert.False(t, geometry.ContainsClusters(1000, 25))
	assert.False(t, geometry.ContainsClusters(1024, 0))
}

func TestFileGeometry(t *testing.T) {
	geometry, err := FileGeometry(10*1024, 1024)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), geometry.TotalClusters)
	assert.Equal(t, uint64(0), geometry.MFTLCN)
	assert.Equal(t, int64(0), geometry.MFTOffset())

	_, err = FileGeometry(10*1024, 1000)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
	_, err = FileGeometry(512, 1024)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}
