package synth

import "encoding/binary"

// Layout holds the boot sector fields a test volume is built from.
type Layout struct {
	BytesPerSector         uint16
	SectorsPerCluster      uint8
	TotalSectors           uint64
	MFTLCN                 uint64
	MFTMirrLCN             uint64
	ClustersPerMFTRecord   int8
	ClustersPerIndexRecord int8
}

// SmallLayout is a 4 MiB volume with 4 KiB clusters and 1 KiB records,
// the $MFT at cluster 16 and its mirror at cluster 512.
func SmallLayout() Layout {
	return Layout{
		BytesPerSector:         512,
		SectorsPerCluster:      8,
		TotalSectors:           8192,
		MFTLCN:                 16,
		MFTMirrLCN:             512,
		ClustersPerMFTRecord:   -10,
		ClustersPerIndexRecord: 1,
	}
}

func (layout Layout) ClusterSize() int {
	return int(layout.BytesPerSector) * int(layout.SectorsPerCluster)
}

func (layout Layout) RecordSize() int {
	if layout.ClustersPerMFTRecord < 0 {
		return 1 << uint(-layout.ClustersPerMFTRecord)
	}
	return int(layout.ClustersPerMFTRecord) * layout.ClusterSize()
}

// BootSector encodes the 512 byte NTFS volume boot record.
func BootSector(layout Layout) []byte {
	buf := make([]byte, 512)
	copy(buf[0:3], []byte{0xeb, 0x52, 0x90})
	copy(buf[3:11], "NTFS    ")
	binary.LittleEndian.PutUint16(buf[0x0b:], layout.BytesPerSector)
	buf[0x0d] = layout.SectorsPerCluster
	buf[0x15] = 0xf8
	binary.LittleEndian.PutUint16(buf[0x18:], 63)
	binary.LittleEndian.PutUint16(buf[0x1a:], 255)
	binary.LittleEndian.PutUint64(buf[0x28:], layout.TotalSectors)
	binary.LittleEndian.PutUint64(buf[0x30:], layout.MFTLCN)
	binary.LittleEndian.PutUint64(buf[0x38:], layout.MFTMirrLCN)
	buf[0x40] = byte(layout.ClustersPerMFTRecord)
	buf[0x44] = byte(layout.ClustersPerIndexRecord)
	binary.LittleEndian.PutUint64(buf[0x48:], 0x1234567890abcdef)
	buf[0x1fe] = 0x55
	buf[0x1ff] = 0xaa
	return buf
}

// Image is a whole volume held in memory.
type Image struct {
	Layout Layout
	data   []byte
}

func NewImage(layout Layout) *Image {
	image := &Image{Layout: layout, data: make([]byte, layout.TotalSectors*uint64(layout.BytesPerSector))}
	copy(image.data, BootSector(layout))
	return image
}

func (image *Image) WriteAt(offset int64, data []byte) {
	copy(image.data[offset:], data)
}

func (image *Image) ClusterOffset(lcn uint64) int64 {
	return int64(lcn) * int64(image.Layout.ClusterSize())
}

// PutRecord stores a laid out record at slot of an extent starting at lcn.
func (image *Image) PutRecord(lcn uint64, slot int, record []byte) {
	image.WriteAt(image.ClusterOffset(lcn)+int64(slot*image.Layout.RecordSize()), record)
}

func (image *Image) Bytes() []byte {
	return image.data
}

// Truncate drops everything past size bytes, simulating a partial image.
func (image *Image) Truncate(size int64) {
	image.data = image.data[:size]
}
