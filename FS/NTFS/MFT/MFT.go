package MFT

import (
	"bytes"
	"encoding/binary"
	"fmt"

	MFTAttributes "github.com/aarsakian/MFTRecover/FS/NTFS/MFT/attributes"
	"github.com/aarsakian/MFTRecover/utils"
	"github.com/pkg/errors"
)

var (
	ErrRecordNotInUse = errors.New("record not in use")
	ErrRecordTooShort = errors.New("record shorter than its header")
	ErrFatalIO        = errors.New("fatal volume I/O error")
	ErrOutsideMFT     = errors.New("record index outside the $MFT")
	ErrFixupMismatch  = errors.New("update sequence mismatch")
	ErrMalformed      = errors.New("malformed record")
)

const (
	FlagInUse     uint16 = 0x0001
	FlagDirectory uint16 = 0x0002
)

// NTFS applies the update sequence per 512 byte block whatever the
// physical sector size.
const ntfsBlockSize = 512

const headerSize = 48

var fileMagic = []byte("FILE")

var MFTflags = map[uint16]string{
	0: "File Unallocted", 1: "File Allocated", 2: "Folder Unalloc", 3: "Folder Allocated",
}

type RecordHeader struct {
	Signature          [4]byte //0-4
	UpdateSeqArrOffset uint16  //4-6 relative to the start of the entry
	UpdateSeqArrSize   uint16  //6-8
	Lsn                uint64  //8-16 logical file sequence number
	Seq                uint16  //16-18 incremented when the entry is (de)allocated
	Linkcount          uint16  //18-20
	AttrOff            uint16  //20-22 first attribute
	Flags              uint16  //22-24
	Size               uint32  //24-28 bytes in use
	AllocSize          uint32  //28-32
	BaseRef            uint64  //32-40
	NextAttrID         uint16  //40-42
	F1                 uint16  //42-44
	Entry              uint32  //44-48
}

// Record is a validated, fixed up copy of one MFT entry. Data is owned by
// the record.
type Record struct {
	RecordHeader
	Index uint64 // position in the $MFT it was read from
	Data  []byte
	Flaws Flaw
}

// Process validates bs and keeps a fixed up copy. A missing FILE magic
// yields ErrRecordNotInUse; fixup and length problems are recorded in
// record.Flaws and do not fail.
func (record *Record) Process(bs []byte, sectorSize int) error {
	if len(bs) < headerSize {
		return errors.Wrapf(ErrRecordTooShort, "%d bytes", len(bs))
	}
	if !bytes.Equal(bs[:4], fileMagic) {
		return errors.Wrapf(ErrRecordNotInUse, "magic %s", utils.Hexify(bs[:4]))
	}

	record.Data = append(record.Data[:0], bs...)
	record.Flaws = 0
	if err := utils.Unmarshal(record.Data, &record.RecordHeader); err != nil {
		return err
	}

	if err := ApplyFixup(record.Data, sectorSize); err != nil {
		if errors.Is(err, ErrFixupMismatch) {
			record.Flaws |= FixupMismatch
		} else {
			record.Flaws |= MalformedRecord
		}
	}
	if !record.lengthsValid() {
		record.Flaws |= MalformedRecord
	}
	return nil
}

func (record Record) lengthsValid() bool {
	return int(record.AllocSize) == len(record.Data) &&
		record.Size <= record.AllocSize &&
		record.AttrOff%8 == 0 &&
		uint32(record.AttrOff) >= headerSize &&
		uint32(record.AttrOff) < record.Size
}

// fixupStride picks the block size the update sequence array count
// describes for a record of recordSize bytes.
func fixupStride(recordSize int, sectorSize int, count int) (int, bool) {
	for _, stride := range []int{sectorSize, ntfsBlockSize} {
		if stride > 0 && recordSize%stride == 0 && count == recordSize/stride+1 {
			return stride, true
		}
	}
	return 0, false
}

// ApplyFixup restores the last two bytes of every block from the update
// sequence array. A block that already holds its saved value is left alone,
// so fixing up twice changes nothing.
func ApplyFixup(data []byte, sectorSize int) error {
	if len(data) < headerSize {
		return errors.Wrapf(ErrRecordTooShort, "%d bytes", len(data))
	}
	usaOff := int(binary.LittleEndian.Uint16(data[4:]))
	count := int(binary.LittleEndian.Uint16(data[6:]))

	stride, ok := fixupStride(len(data), sectorSize, count)
	if !ok {
		return errors.Wrapf(ErrMalformed, "update sequence count %d for %d bytes", count, len(data))
	}
	if usaOff%2 != 0 || usaOff < 0x28 || usaOff+2*count > stride-2 {
		return errors.Wrapf(ErrMalformed, "update sequence array at %d", usaOff)
	}

	usn := data[usaOff : usaOff+2]
	mismatched := 0
	for block := 0; block < count-1; block++ {
		tail := data[(block+1)*stride-2 : (block+1)*stride]
		saved := data[usaOff+2+2*block : usaOff+4+2*block]
		switch {
		case bytes.Equal(tail, usn):
			copy(tail, saved)
		case bytes.Equal(tail, saved):
		default:
			mismatched++
		}
	}
	if mismatched > 0 {
		return errors.Wrapf(ErrFixupMismatch, "%d of %d blocks", mismatched, count-1)
	}
	return nil
}

func (record Record) IsInUse() bool {
	return record.Flags&FlagInUse != 0
}

func (record Record) IsFolder() bool {
	return record.Flags&FlagDirectory != 0
}

func (record Record) IsExtension() bool {
	return record.BaseRecord() != 0
}

func (record Record) BaseRecord() uint64 {
	return record.BaseRef & 0xffffffffffff
}

func (record Record) BaseSeq() uint16 {
	return uint16(record.BaseRef >> 48)
}

func (record Record) getType() string {
	return MFTflags[record.Flags&(FlagInUse|FlagDirectory)]
}

// Walker iterates the attributes of the record within its bytes in use.
func (record *Record) Walker() *MFTAttributes.Walker {
	return MFTAttributes.NewWalker(record.Data, record.Index, int(record.AttrOff), int(record.Size))
}

func (record Record) String() string {
	return fmt.Sprintf("record %d seq %d %s flaws %s", record.Index, record.Seq, record.getType(), record.Flaws)
}
