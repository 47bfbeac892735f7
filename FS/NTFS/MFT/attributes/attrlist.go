package attributes

import (
	"encoding/binary"
	"fmt"

	"github.com/aarsakian/MFTRecover/utils"
	"github.com/pkg/errors"
)

var ErrTruncatedAttrList = errors.New("truncated attribute list")

const attrListEntryLen = 26

type AttributeListEntries struct {
	Entries []AttributeListEntry
}

// AttributeListEntry locates one attribute instance of a file that spans
// several records.
type AttributeListEntry struct {
	Type       uint32 //0-4
	Len        uint16 //4-6
	Namelen    uint8  //6
	Nameoffset uint8  //7
	StartVcn   uint64 //8-16
	ParRef     uint64 //16-22
	ParSeq     uint16 //22-24
	ID         uint16 //24-26
	Name       string
}

func (attrList AttributeListEntry) GetType() string {
	return AttributeHeader{Type: attrList.Type}.GetType()
}

// Parse decodes entries until the value ends. A bad entry stops parsing,
// the entries before it are kept and ErrTruncatedAttrList is returned.
func (attrListEntries *AttributeListEntries) Parse(data []byte) error {
	attrListEntries.Entries = attrListEntries.Entries[:0]
	for pos := 0; pos+attrListEntryLen <= len(data); {
		entryBuf := data[pos:]
		entry := AttributeListEntry{
			Type:       binary.LittleEndian.Uint32(entryBuf[0:]),
			Len:        binary.LittleEndian.Uint16(entryBuf[4:]),
			Namelen:    entryBuf[6],
			Nameoffset: entryBuf[7],
			StartVcn:   binary.LittleEndian.Uint64(entryBuf[8:]),
			ID:         binary.LittleEndian.Uint16(entryBuf[24:]),
		}
		if entry.Type == 0 && entry.Len == 0 { // zero padding
			return nil
		}
		ref := binary.LittleEndian.Uint64(entryBuf[16:])
		entry.ParRef, entry.ParSeq = ref&0xffffffffffff, uint16(ref>>48)

		if entry.Type%0x10 != 0 || int(entry.Len) < attrListEntryLen || int(entry.Len) > len(entryBuf) {
			return errors.Wrapf(ErrTruncatedAttrList, "entry at %d type %#x len %d", pos, entry.Type, entry.Len)
		}
		if entry.Namelen > 0 {
			nameEnd := int(entry.Nameoffset) + 2*int(entry.Namelen)
			if int(entry.Nameoffset) < attrListEntryLen || nameEnd > int(entry.Len) {
				return errors.Wrapf(ErrTruncatedAttrList, "entry at %d name out of bounds", pos)
			}
			entry.Name = utils.DecodeUTF16(entryBuf[entry.Nameoffset:nameEnd])
		}
		attrListEntries.Entries = append(attrListEntries.Entries, entry)
		pos += int(entry.Len)
	}
	return nil
}

func (attrList AttributeListEntry) String() string {
	return fmt.Sprintf("%s %q vcn %d in record %d", attrList.GetType(), attrList.Name, attrList.StartVcn, attrList.ParRef)
}
