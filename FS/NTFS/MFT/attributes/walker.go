package attributes

import (
	"encoding/binary"

	"github.com/aarsakian/MFTRecover/utils"
)

// Walker iterates the attributes of a fixed up record, from the first
// attribute offset to the end marker. A header that is out of bounds or
// inconsistent ends the walk early and marks it truncated.
type Walker struct {
	data      []byte
	start     int
	limit     int
	entry     uint64
	pos       int
	done      bool
	truncated bool
}

// NewWalker walks data[attrOff:bytesInUse]; bytesInUse is cut to len(data).
func NewWalker(data []byte, entry uint64, attrOff int, bytesInUse int) *Walker {
	limit := bytesInUse
	if limit > len(data) || limit <= 0 {
		limit = len(data)
	}
	walker := &Walker{data: data, start: attrOff, limit: limit, entry: entry}
	walker.Reset()
	return walker
}

func (walker *Walker) Reset() {
	walker.pos = walker.start
	walker.done = false
	walker.truncated = false
}

func (walker *Walker) Truncated() bool {
	return walker.truncated
}

func (walker *Walker) truncate() (Attribute, bool) {
	walker.truncated = true
	walker.done = true
	return Attribute{}, false
}

// Next returns the following attribute, false once the walk is over.
func (walker *Walker) Next() (Attribute, bool) {
	if walker.done {
		return Attribute{}, false
	}
	pos := walker.pos
	if pos < 0 || pos+4 > walker.limit {
		return walker.truncate()
	}
	bs := walker.data

	attrType := binary.LittleEndian.Uint32(bs[pos:])
	if attrType == EndOfAttributes {
		walker.done = true
		return Attribute{}, false
	}
	if attrType == 0 || attrType%0x10 != 0 || pos+headerLen > walker.limit {
		return walker.truncate()
	}

	attrHeader := AttributeHeader{
		Type:        attrType,
		AttrLen:     binary.LittleEndian.Uint32(bs[pos+4:]),
		NoNResident: bs[pos+8],
		Nlen:        bs[pos+9],
		NameOff:     binary.LittleEndian.Uint16(bs[pos+10:]),
		Flags:       binary.LittleEndian.Uint16(bs[pos+12:]),
		ID:          binary.LittleEndian.Uint16(bs[pos+14:]),
	}
	attrLen := int(attrHeader.AttrLen)
	if attrLen == 0 || attrLen%8 != 0 || attrLen > walker.limit-pos || attrHeader.NoNResident > 1 {
		return walker.truncate()
	}
	attrBuf := bs[pos : pos+attrLen]

	if attrHeader.Nlen > 0 {
		nameEnd := int(attrHeader.NameOff) + 2*int(attrHeader.Nlen)
		if int(attrHeader.NameOff) < headerLen || nameEnd > attrLen {
			return walker.truncate()
		}
		attrHeader.Name = utils.DecodeUTF16(attrBuf[attrHeader.NameOff:nameEnd])
	}

	attr := Attribute{Entry: walker.entry}
	if !attrHeader.IsNoNResident() {
		if attrLen < residentHeaderLen {
			return walker.truncate()
		}
		resident := &ATRrecordResident{
			ContentSize:   binary.LittleEndian.Uint32(attrBuf[16:]),
			OffsetContent: binary.LittleEndian.Uint16(attrBuf[20:]),
			IdxFlags:      attrBuf[22],
		}
		contentEnd := int(resident.OffsetContent) + int(resident.ContentSize)
		if int(resident.OffsetContent) < residentHeaderLen || contentEnd > attrLen {
			return walker.truncate()
		}
		attrHeader.ATRrecordResident = resident
		attr.Content = append([]byte(nil), attrBuf[resident.OffsetContent:contentEnd]...)
	} else {
		if attrLen < nonResidentHeaderLen {
			return walker.truncate()
		}
		nonresident := &ATRrecordNoNResident{
			StartVcn:     binary.LittleEndian.Uint64(attrBuf[16:]),
			LastVcn:      binary.LittleEndian.Uint64(attrBuf[24:]),
			RunOff:       binary.LittleEndian.Uint16(attrBuf[32:]),
			Compusize:    binary.LittleEndian.Uint16(attrBuf[34:]),
			F1:           binary.LittleEndian.Uint32(attrBuf[36:]),
			Length:       binary.LittleEndian.Uint64(attrBuf[40:]),
			ActualLength: binary.LittleEndian.Uint64(attrBuf[48:]),
			InitLength:   binary.LittleEndian.Uint64(attrBuf[56:]),
		}
		if int(nonresident.RunOff) < nonResidentHeaderLen || int(nonresident.RunOff) > attrLen {
			return walker.truncate()
		}
		runlist, err := DecodeRunlist(attrBuf[nonresident.RunOff:], nonresident.StartVcn)
		nonresident.RunList = runlist
		attr.Incomplete = err != nil
		attrHeader.ATRrecordNoNResident = nonresident
	}

	attr.Header = attrHeader
	walker.pos = pos + attrLen
	return attr, true
}

// Collect walks from the first attribute and returns all of them.
func (walker *Walker) Collect() []Attribute {
	walker.Reset()
	var attributes []Attribute
	for {
		attr, ok := walker.Next()
		if !ok {
			break
		}
		attributes = append(attributes, attr)
	}
	return attributes
}
