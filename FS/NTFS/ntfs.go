package ntfs

import (
	"bytes"
	"fmt"

	"github.com/aarsakian/MFTRecover/img"
	"github.com/aarsakian/MFTRecover/logger"
	"github.com/aarsakian/MFTRecover/utils"
	"github.com/pkg/errors"
)

var (
	ErrNotNTFS         = errors.New("not an NTFS boot sector")
	ErrInvalidGeometry = errors.New("invalid volume geometry")
)

var oemID = []byte("NTFS    ")

// VBR is the packed BIOS parameter block at the start of an NTFS volume.
type VBR struct {
	JumpInstruction        [3]byte //0-3
	Signature              [8]byte //3-11 "NTFS    "
	BytesPerSector         uint16  //11-13
	SectorsPerCluster      uint8   //13
	NotUsed1               [7]byte //14-21
	MediaDescriptor        uint8   //21
	NotUsed2               [2]byte //22-24
	SectorsPerTrack        uint16  //24-26
	NumberOfHeads          uint16  //26-28
	HiddenSectors          uint32  //28-32
	NotUsed3               [8]byte //32-40
	TotalSectors           uint64  //40-48
	MFTLCN                 uint64  //48-56
	MFTMirrLCN             uint64  //56-64
	ClustersPerMFTRecord   int8    //64
	NotUsed4               [3]byte //65-68
	ClustersPerIndexRecord int8    //68
	NotUsed5               [3]byte //69-72
	SerialNumber           uint64  //72-80
	Checksum               uint32  //80-84
}

func (vbr *VBR) Parse(buffer []byte) error {
	if err := utils.Unmarshal(buffer, vbr); err != nil {
		return err
	}
	if !bytes.Equal(vbr.Signature[:], oemID) {
		return errors.Wrapf(ErrNotNTFS, "oem id %q", vbr.Signature[:])
	}
	if len(buffer) >= 512 && (buffer[510] != 0x55 || buffer[511] != 0xaa) {
		return errors.Wrapf(ErrNotNTFS, "end of sector marker %x", buffer[510:512])
	}
	return nil
}

func (vbr VBR) Params() BootParams {
	return BootParams{
		SectorSize:             vbr.BytesPerSector,
		SectorsPerCluster:      vbr.SectorsPerCluster,
		MFTLCN:                 vbr.MFTLCN,
		MFTMirrLCN:             vbr.MFTMirrLCN,
		ClustersPerMFTRecord:   vbr.ClustersPerMFTRecord,
		ClustersPerIndexRecord: vbr.ClustersPerIndexRecord,
		TotalSectors:           vbr.TotalSectors,
	}
}

// BootParams are the raw boot sector values geometry is derived from.
type BootParams struct {
	SectorSize             uint16
	SectorsPerCluster      uint8
	MFTLCN                 uint64
	MFTMirrLCN             uint64
	ClustersPerMFTRecord   int8
	ClustersPerIndexRecord int8
	TotalSectors           uint64
}

// Geometry is immutable once derived and shared by every reader of the volume.
type Geometry struct {
	SectorSize      int
	ClusterSize     int
	MFTRecordSize   int
	IndexRecordSize int
	MFTLCN          uint64
	MFTMirrLCN      uint64
	TotalClusters   uint64
	VolumeOffset    int64 // byte offset of the volume inside the image
}

func isPowerOfTwo(v int) bool {
	return v > 0 && v&(v-1) == 0
}

// sectorsPerCluster decodes the byte at 0x0d; values above 0x80 encode
// 2^(256-v) sectors on volumes with clusters larger than 64 KiB.
func sectorsPerCluster(raw uint8) int {
	if raw > 0x80 {
		return 1 << uint(256-int(raw))
	}
	return int(raw)
}

// recordSize applies the on-disk convention: positive counts clusters,
// negative is the log2 of the size in bytes.
func recordSize(clustersPerRecord int8, clusterSize int) (int, error) {
	switch {
	case clustersPerRecord > 0:
		return int(clustersPerRecord) * clusterSize, nil
	case clustersPerRecord < 0 && clustersPerRecord > -32:
		return 1 << uint(-int(clustersPerRecord)), nil
	}
	return 0, errors.Wrapf(ErrInvalidGeometry, "clusters per record %d", clustersPerRecord)
}

func NewGeometry(params BootParams, volumeOffset int64) (*Geometry, error) {
	sectorSize := int(params.SectorSize)
	if !isPowerOfTwo(sectorSize) || sectorSize < 256 || sectorSize > 4096 {
		return nil, errors.Wrapf(ErrInvalidGeometry, "sector size %d", sectorSize)
	}
	spc := sectorsPerCluster(params.SectorsPerCluster)
	if !isPowerOfTwo(spc) {
		return nil, errors.Wrapf(ErrInvalidGeometry, "sectors per cluster %d", params.SectorsPerCluster)
	}
	clusterSize := sectorSize * spc

	mftRecordSize, err := recordSize(params.ClustersPerMFTRecord, clusterSize)
	if err != nil {
		return nil, errors.Wrap(err, "mft record")
	}
	if mftRecordSize < sectorSize || mftRecordSize%sectorSize != 0 {
		return nil, errors.Wrapf(ErrInvalidGeometry, "mft record size %d with %d byte sectors", mftRecordSize, sectorSize)
	}
	indexRecordSize, err := recordSize(params.ClustersPerIndexRecord, clusterSize)
	if err != nil {
		// only directory indexes use it, the scan does not
		indexRecordSize = 4096
	}

	totalClusters := params.TotalSectors / uint64(spc)
	if params.MFTLCN >= totalClusters {
		return nil, errors.Wrapf(ErrInvalidGeometry, "$MFT at cluster %d of %d", params.MFTLCN, totalClusters)
	}

	return &Geometry{
		SectorSize:      sectorSize,
		ClusterSize:     clusterSize,
		MFTRecordSize:   mftRecordSize,
		IndexRecordSize: indexRecordSize,
		MFTLCN:          params.MFTLCN,
		MFTMirrLCN:      params.MFTMirrLCN,
		TotalClusters:   totalClusters,
		VolumeOffset:    volumeOffset,
	}, nil
}

// FileGeometry describes an extracted $MFT of size bytes as a volume of 4 KiB
// clusters holding the table from cluster 0.
func FileGeometry(size int64, recordSize int) (*Geometry, error) {
	const clusterSize = 4096
	if !isPowerOfTwo(recordSize) || recordSize < 512 || recordSize > clusterSize {
		return nil, errors.Wrapf(ErrInvalidGeometry, "mft record size %d", recordSize)
	}
	if size < int64(recordSize) {
		return nil, errors.Wrapf(ErrInvalidGeometry, "$MFT file of %d bytes", size)
	}
	return &Geometry{
		SectorSize:      512,
		ClusterSize:     clusterSize,
		MFTRecordSize:   recordSize,
		IndexRecordSize: 4096,
		TotalClusters:   uint64((size + clusterSize - 1) / clusterSize),
	}, nil
}

// ReadGeometry parses the boot sector of the volume starting at volumeOffset.
func ReadGeometry(hD img.DiskReader, volumeOffset int64) (*Geometry, error) {
	buffer, err := hD.ReadFile(volumeOffset, 512)
	if err != nil {
		return nil, errors.Wrapf(err, "reading boot sector at %d", volumeOffset)
	}
	var vbr VBR
	if err := vbr.Parse(buffer); err != nil {
		return nil, err
	}
	geometry, err := NewGeometry(vbr.Params(), volumeOffset)
	if err != nil {
		return nil, err
	}
	logger.MFTRecoverlogger.Info(fmt.Sprintf("NTFS volume at %d: %s", volumeOffset, geometry))
	return geometry, nil
}

func (geometry Geometry) String() string {
	return fmt.Sprintf("sector %d cluster %d record %d clusters %d $MFT %d $MFTMirr %d",
		geometry.SectorSize, geometry.ClusterSize, geometry.MFTRecordSize,
		geometry.TotalClusters, geometry.MFTLCN, geometry.MFTMirrLCN)
}

// ClusterOffset is the image offset of a logical cluster.
func (geometry Geometry) ClusterOffset(lcn uint64) int64 {
	return geometry.VolumeOffset + int64(lcn)*int64(geometry.ClusterSize)
}

func (geometry Geometry) MFTOffset() int64 {
	return geometry.ClusterOffset(geometry.MFTLCN)
}

func (geometry Geometry) MirrorOffset() int64 {
	return geometry.ClusterOffset(geometry.MFTMirrLCN)
}

func (geometry Geometry) VolumeSize() int64 {
	return int64(geometry.TotalClusters) * int64(geometry.ClusterSize)
}

// ContainsClusters reports whether the extent lies inside the volume.
func (geometry Geometry) ContainsClusters(lcn uint64, count uint64) bool {
	return lcn < geometry.TotalClusters && count <= geometry.TotalClusters-lcn
}

// MFTZone returns the number of clusters reserved for the $MFT from its
// first cluster, TotalClusters >> shift, cut at the end of the volume.
func (geometry Geometry) MFTZone(shift uint) uint64 {
	zone := geometry.TotalClusters >> shift
	if remaining := geometry.TotalClusters - geometry.MFTLCN; zone > remaining {
		zone = remaining
	}
	return zone
}

func (geometry Geometry) RecordsInClusters(clusters uint64) uint64 {
	return clusters * uint64(geometry.ClusterSize) / uint64(geometry.MFTRecordSize)
}
