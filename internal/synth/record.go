// Package synth builds NTFS structures in memory for tests: MFT records with
// their update sequence arrays applied, attribute values, run lists and
// small volume images with a boot sector.
package synth

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

const (
	StandardInformation uint32 = 0x10
	AttributeList       uint32 = 0x20
	FileName            uint32 = 0x30
	ObjectID            uint32 = 0x40
	VolumeName          uint32 = 0x60
	VolumeInformation   uint32 = 0x70
	Data                uint32 = 0x80
	IndexRoot           uint32 = 0x90
	EndOfAttributes     uint32 = 0xffffffff
)

const (
	FlagCompressed uint16 = 0x0001
	FlagEncrypted  uint16 = 0x4000
	FlagSparse     uint16 = 0x8000
)

const (
	RecordInUse     uint16 = 0x0001
	RecordDirectory uint16 = 0x0002
)

const (
	usaOffset         = 0x30
	DefaultUSN uint16 = 0x0003
)

// Reference packs an MFT record number and sequence the way NTFS stores
// file references.
func Reference(index uint64, seq uint16) uint64 {
	return index&0xffffffffffff | uint64(seq)<<48
}

func align8(n int) int {
	return (n + 7) &^ 7
}

func utf16le(name string) []byte {
	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().String(name)
	if err != nil {
		panic(err)
	}
	return []byte(encoded)
}

// Record describes one MFT record before it is laid out.
type Record struct {
	Index      uint32
	Size       int
	SectorSize int
	Seq        uint16
	Linkcount  uint16
	Flags      uint16
	BaseRef    uint64
	USN        uint16
	attrs      [][]byte
	nextID     uint16
}

// NewRecord returns an in-use base record.
func NewRecord(index uint32, size, sectorSize int) *Record {
	return &Record{
		Index:      index,
		Size:       size,
		SectorSize: sectorSize,
		Seq:        1,
		Linkcount:  1,
		Flags:      RecordInUse,
		USN:        DefaultUSN,
	}
}

func (record *Record) AttrsOffset() int {
	return align8(usaOffset + 2*(record.Size/record.SectorSize+1))
}

// AddRaw appends an already encoded attribute.
func (record *Record) AddRaw(attr []byte) *Record {
	record.attrs = append(record.attrs, attr)
	return record
}

func (record *Record) AddResident(typ uint32, name string, value []byte) *Record {
	record.attrs = append(record.attrs, ResidentAttribute(typ, name, record.nextID, value))
	record.nextID++
	return record
}

func (record *Record) AddNonResident(attr NonResident) *Record {
	attr.ID = record.nextID
	record.attrs = append(record.attrs, attr.Bytes())
	record.nextID++
	return record
}

// Plain lays the record out without the update sequence fixup applied.
func (record *Record) Plain() []byte {
	buf := make([]byte, record.Size)
	count := record.Size/record.SectorSize + 1
	attrsOff := record.AttrsOffset()

	copy(buf[0:4], "FILE")
	binary.LittleEndian.PutUint16(buf[4:], usaOffset)
	binary.LittleEndian.PutUint16(buf[6:], uint16(count))
	binary.LittleEndian.PutUint64(buf[8:], 0x1000)
	binary.LittleEndian.PutUint16(buf[16:], record.Seq)
	binary.LittleEndian.PutUint16(buf[18:], record.Linkcount)
	binary.LittleEndian.PutUint16(buf[20:], uint16(attrsOff))
	binary.LittleEndian.PutUint16(buf[22:], record.Flags)
	binary.LittleEndian.PutUint64(buf[32:], record.BaseRef)
	binary.LittleEndian.PutUint16(buf[40:], record.nextID)
	binary.LittleEndian.PutUint32(buf[44:], record.Index)

	pos := attrsOff
	for _, attr := range record.attrs {
		if pos+len(attr)+8 > record.Size {
			panic(fmt.Sprintf("record %d: attributes overflow %d bytes", record.Index, record.Size))
		}
		copy(buf[pos:], attr)
		pos += len(attr)
	}
	binary.LittleEndian.PutUint32(buf[pos:], EndOfAttributes)
	pos += 8

	binary.LittleEndian.PutUint32(buf[24:], uint32(pos))
	binary.LittleEndian.PutUint32(buf[28:], uint32(record.Size))
	return buf
}

// Bytes lays the record out as it is stored on disk, with every sector tail
// replaced by the update sequence number.
func (record *Record) Bytes() []byte {
	buf := record.Plain()
	binary.LittleEndian.PutUint16(buf[usaOffset:], record.USN)
	for sector := 0; sector < record.Size/record.SectorSize; sector++ {
		tail := (sector+1)*record.SectorSize - 2
		saved := usaOffset + 2 + 2*sector
		copy(buf[saved:saved+2], buf[tail:tail+2])
		binary.LittleEndian.PutUint16(buf[tail:], record.USN)
	}
	return buf
}

// ResidentAttribute encodes a resident attribute with its value.
func ResidentAttribute(typ uint32, name string, id uint16, value []byte) []byte {
	encodedName := utf16le(name)
	valueOff := align8(24 + len(encodedName))
	length := align8(valueOff + len(value))

	buf := make([]byte, length)
	binary.LittleEndian.PutUint32(buf[0:], typ)
	binary.LittleEndian.PutUint32(buf[4:], uint32(length))
	buf[8] = 0
	buf[9] = uint8(len(encodedName) / 2)
	binary.LittleEndian.PutUint16(buf[10:], 24)
	binary.LittleEndian.PutUint16(buf[14:], id)
	binary.LittleEndian.PutUint32(buf[16:], uint32(len(value)))
	binary.LittleEndian.PutUint16(buf[20:], uint16(valueOff))
	copy(buf[24:], encodedName)
	copy(buf[valueOff:], value)
	return buf
}

// NonResident describes a non resident attribute extent.
type NonResident struct {
	Type            uint32
	Name            string
	ID              uint16
	Flags           uint16
	StartVCN        uint64
	LastVCN         uint64
	AllocatedSize   uint64
	DataSize        uint64
	InitializedSize uint64
	Runs            []byte
}

func (attr NonResident) Bytes() []byte {
	encodedName := utf16le(attr.Name)
	runOff := align8(64 + len(encodedName))
	length := align8(runOff + len(attr.Runs))

	buf := make([]byte, length)
	binary.LittleEndian.PutUint32(buf[0:], attr.Type)
	binary.LittleEndian.PutUint32(buf[4:], uint32(length))
	buf[8] = 1
	buf[9] = uint8(len(encodedName) / 2)
	binary.LittleEndian.PutUint16(buf[10:], 64)
	binary.LittleEndian.PutUint16(buf[12:], attr.Flags)
	binary.LittleEndian.PutUint16(buf[14:], attr.ID)
	binary.LittleEndian.PutUint64(buf[16:], attr.StartVCN)
	binary.LittleEndian.PutUint64(buf[24:], attr.LastVCN)
	binary.LittleEndian.PutUint16(buf[32:], uint16(runOff))
	if attr.Flags&FlagCompressed != 0 {
		binary.LittleEndian.PutUint16(buf[34:], 4)
	}
	binary.LittleEndian.PutUint64(buf[40:], attr.AllocatedSize)
	binary.LittleEndian.PutUint64(buf[48:], attr.DataSize)
	binary.LittleEndian.PutUint64(buf[56:], attr.InitializedSize)
	copy(buf[64:], encodedName)
	copy(buf[runOff:], attr.Runs)
	return buf
}

// FileNameValue encodes a $FILE_NAME value. All four timestamps are set to
// stamp.
func FileNameValue(parent uint64, parentSeq uint16, name string, namespace uint8, stamp uint64, size uint64) []byte {
	encodedName := utf16le(name)
	buf := make([]byte, 66+len(encodedName))
	binary.LittleEndian.PutUint64(buf[0:], Reference(parent, parentSeq))
	for _, off := range []int{8, 16, 24, 32} {
		binary.LittleEndian.PutUint64(buf[off:], stamp)
	}
	binary.LittleEndian.PutUint64(buf[40:], (size+4095)&^4095)
	binary.LittleEndian.PutUint64(buf[48:], size)
	binary.LittleEndian.PutUint32(buf[56:], 0x20)
	buf[64] = uint8(len(encodedName) / 2)
	buf[65] = namespace
	copy(buf[66:], encodedName)
	return buf
}

// StandardInformationValue encodes a 72 byte $STANDARD_INFORMATION value.
func StandardInformationValue(crtime, mtime, mfttime, atime uint64) []byte {
	buf := make([]byte, 72)
	binary.LittleEndian.PutUint64(buf[0:], crtime)
	binary.LittleEndian.PutUint64(buf[8:], mtime)
	binary.LittleEndian.PutUint64(buf[16:], mfttime)
	binary.LittleEndian.PutUint64(buf[24:], atime)
	binary.LittleEndian.PutUint32(buf[32:], 0x20)
	return buf
}

// AttributeListEntry encodes one $ATTRIBUTE_LIST entry.
func AttributeListEntry(typ uint32, name string, startVCN uint64, index uint64, seq uint16, id uint16) []byte {
	encodedName := utf16le(name)
	length := align8(26 + len(encodedName))
	buf := make([]byte, length)
	binary.LittleEndian.PutUint32(buf[0:], typ)
	binary.LittleEndian.PutUint16(buf[4:], uint16(length))
	buf[6] = uint8(len(encodedName) / 2)
	buf[7] = 26
	binary.LittleEndian.PutUint64(buf[8:], startVCN)
	binary.LittleEndian.PutUint64(buf[16:], Reference(index, seq))
	binary.LittleEndian.PutUint16(buf[24:], id)
	copy(buf[26:], encodedName)
	return buf
}
