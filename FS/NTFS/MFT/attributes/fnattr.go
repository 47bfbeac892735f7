package attributes

import (
	"encoding/binary"

	"github.com/aarsakian/MFTRecover/utils"
	"github.com/pkg/errors"
)

var RecordTypes = map[uint32]string{
	1: "Read Only", 2: "Hidden", 4: "System",
	32: "Archive", 64: "Device", 128: "Normal", 256: "Temporary", 512: "Sparse file",
	1024: "Reparse", 2048: "Compressed", 4096: "Offline",
	8192:  "Content  is not being indexed for faster searches",
	16384: "Encrypted"}

const (
	POSIX       uint8 = 0
	Win32       uint8 = 1
	Dos         uint8 = 2
	Win32AndDos uint8 = 3
)

var NameSpaceFlags = map[uint8]string{
	POSIX: "POSIX", Win32: "Win32", Dos: "Dos", Win32AndDos: "Win32 & Dos",
}

const fnHeaderLen = 66

type FNAttribute struct {
	ParRef     uint64            //0-6
	ParSeq     uint16            //6-8
	Crtime     utils.WindowsTime //8-16
	Mtime      utils.WindowsTime //16-24
	MFTmtime   utils.WindowsTime //24-32
	Atime      utils.WindowsTime //32-40
	AllocFsize uint64            //40-48
	RealFsize  uint64            //48-56
	Flags      uint32            //56-60
	Reparse    uint32            //60-64
	Nlen       uint8             //64
	Nspace     uint8             //65
	RawName    []byte            //66- UTF-16LE
	Fname      string
}

func (fnAttr *FNAttribute) Parse(data []byte) error {
	if len(data) < fnHeaderLen {
		return errors.Wrapf(utils.ErrShortBuffer, "file name value of %d bytes", len(data))
	}
	ref := binary.LittleEndian.Uint64(data[0:])
	fnAttr.ParRef, fnAttr.ParSeq = ref&0xffffffffffff, uint16(ref>>48)
	fnAttr.Crtime = utils.WindowsTime{Stamp: binary.LittleEndian.Uint64(data[8:])}
	fnAttr.Mtime = utils.WindowsTime{Stamp: binary.LittleEndian.Uint64(data[16:])}
	fnAttr.MFTmtime = utils.WindowsTime{Stamp: binary.LittleEndian.Uint64(data[24:])}
	fnAttr.Atime = utils.WindowsTime{Stamp: binary.LittleEndian.Uint64(data[32:])}
	fnAttr.AllocFsize = binary.LittleEndian.Uint64(data[40:])
	fnAttr.RealFsize = binary.LittleEndian.Uint64(data[48:])
	fnAttr.Flags = binary.LittleEndian.Uint32(data[56:])
	fnAttr.Reparse = binary.LittleEndian.Uint32(data[60:])
	fnAttr.Nlen = data[64]
	fnAttr.Nspace = data[65]

	nameEnd := fnHeaderLen + 2*int(fnAttr.Nlen)
	if nameEnd > len(data) {
		return errors.Wrapf(utils.ErrShortBuffer, "file name of %d chars in %d bytes", fnAttr.Nlen, len(data))
	}
	fnAttr.RawName = append([]byte(nil), data[fnHeaderLen:nameEnd]...)
	fnAttr.Fname = utils.DecodeUTF16(fnAttr.RawName)
	return nil
}

func (fnAttr FNAttribute) GetFileNameType() string {
	return NameSpaceFlags[fnAttr.Nspace]
}

func (fnAttr FNAttribute) IsDirectory() bool {
	return fnAttr.Flags&0x10000000 != 0
}

func (fnAttr FNAttribute) GetTimestamps() (string, string, string, string) {
	atime := fnAttr.Atime.ConvertToIsoTime()
	ctime := fnAttr.Crtime.ConvertToIsoTime()
	mtime := fnAttr.Mtime.ConvertToIsoTime()
	mftime := fnAttr.MFTmtime.ConvertToIsoTime()
	return atime, ctime, mtime, mftime
}
