package disk

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/aarsakian/MFTRecover/img"
	"github.com/aarsakian/MFTRecover/internal/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putEntry(sector []byte, slot int, partType uint8, start, size uint32) {
	entry := sector[446+16*slot:]
	entry[4] = partType
	binary.LittleEndian.PutUint32(entry[8:], start)
	binary.LittleEndian.PutUint32(entry[12:], size)
	sector[510], sector[511] = 0x55, 0xaa
}

func volumeAt(image []byte, lba int) {
	copy(image[lba*sectorSize:], synth.BootSector(synth.SmallLayout()))
}

// mbrDisk has an NTFS primary partition at 2048, a FAT partition without
// a file system at 10240 and a logical NTFS partition at 12100.
func mbrDisk() []byte {
	image := make([]byte, (12100+8192)*sectorSize)
	putEntry(image, 0, 0x07, 2048, 8192)
	putEntry(image, 1, 0x0c, 10240, 1000)
	putEntry(image, 2, 0x0f, 12000, 9000)
	putEntry(image[12000*sectorSize:], 0, 0x07, 100, 8192)
	volumeAt(image, 2048)
	volumeAt(image, 12100)
	return image
}

func TestLocateBareVolume(t *testing.T) {
	image := synth.NewImage(synth.SmallLayout())
	disk := Disk{Handler: img.NewMemoryReader(image.Bytes())}

	volume, err := disk.Locate(0)
	require.NoError(t, err)
	assert.Equal(t, 0, volume.Number)
	assert.Equal(t, int64(0), volume.Offset)
	assert.Equal(t, 4096, volume.Geometry.ClusterSize)
}

func TestLocateMBR(t *testing.T) {
	disk := Disk{Handler: img.NewMemoryReader(mbrDisk())}

	volumes, err := disk.Volumes()
	require.NoError(t, err)
	require.Len(t, disk.Partitions, 3)
	require.Len(t, volumes, 2)
	assert.Equal(t, 1, volumes[0].Number)
	assert.Equal(t, int64(2048*sectorSize), volumes[0].Offset)
	assert.Equal(t, 3, volumes[1].Number)
	assert.Equal(t, int64(12100*sectorSize), volumes[1].Offset)
	assert.Equal(t, int64(12100*sectorSize), volumes[1].Geometry.VolumeOffset)

	volume, err := disk.Locate(3)
	require.NoError(t, err)
	assert.Equal(t, int64(12100*sectorSize), volume.Offset)

	_, err = disk.Locate(2)
	assert.ErrorIs(t, err, ErrNoVolume)
}

func TestEBRLoop(t *testing.T) {
	image := mbrDisk()
	// the logical partition's EBR points back at itself
	putEntry(image[12000*sectorSize:], 1, 0x05, 0, 9000)
	disk := Disk{Handler: img.NewMemoryReader(image)}

	require.NoError(t, disk.DiscoverPartitions())
	assert.Len(t, disk.Partitions, 3)
}

func TestLocateGPT(t *testing.T) {
	image := make([]byte, (2048+8192)*sectorSize)
	putEntry(image, 0, 0xee, 1, 0xffffffff)

	header := image[sectorSize:]
	copy(header, "EFI PART")
	binary.LittleEndian.PutUint32(header[12:], 92)
	binary.LittleEndian.PutUint64(header[24:], 1)
	binary.LittleEndian.PutUint64(header[72:], 2)
	binary.LittleEndian.PutUint32(header[80:], 4)
	binary.LittleEndian.PutUint32(header[84:], 128)

	entry := image[2*sectorSize:]
	copy(entry, []byte{0xa2, 0xa0, 0xd0, 0xeb, 0xe5, 0xb9, 0x33, 0x44, 0x87, 0xc0, 0x68, 0xb6, 0xb7, 0x26, 0x99, 0xc7})
	entry[16] = 0x01
	binary.LittleEndian.PutUint64(entry[32:], 2048)
	binary.LittleEndian.PutUint64(entry[40:], 2048+8191)
	for idx, r := range "Basic data partition" {
		binary.LittleEndian.PutUint16(entry[56+2*idx:], uint16(r))
	}
	volumeAt(image, 2048)

	disk := Disk{Handler: img.NewMemoryReader(image)}
	volume, err := disk.Locate(0)
	require.NoError(t, err)
	assert.Equal(t, int64(2048*sectorSize), volume.Offset)

	require.NotNil(t, disk.GPT)
	require.Len(t, disk.GPT.Partitions, 1)
	partition := disk.GPT.Partitions[0]
	assert.Equal(t, "Windows", partition.GetPartitionType())
	assert.Equal(t, "Basic data partition", partition.GetName())
	assert.Equal(t, uint64(8192), partition.GetSize())
}

func TestReadPartitionTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.raw")
	require.NoError(t, os.WriteFile(path, mbrDisk(), 0o600))

	partitions, err := ReadPartitionTable(path)
	require.NoError(t, err)
	require.NotEmpty(t, partitions)
	assert.Equal(t, uint64(2048), partitions[0].GetOffset())
	assert.Equal(t, uint64(8192), partitions[0].GetSize())

	reader, err := img.GetHandler(path, "raw")
	require.NoError(t, err)
	defer reader.CloseHandler()
	disk := Disk{Handler: reader, Path: path}
	volume, err := disk.Locate(1)
	require.NoError(t, err)
	assert.Equal(t, int64(2048*sectorSize), volume.Offset)
}
