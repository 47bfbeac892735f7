package attributes

import (
	"encoding/binary"

	"github.com/aarsakian/MFTRecover/utils"
	"github.com/pkg/errors"
)

// NTFS 1.2 values stop after the class id, 3.x adds owner, security, quota and usn.
const (
	siShortLen = 48
	siLongLen  = 72
)

type SIAttribute struct {
	Crtime   utils.WindowsTime //0-8
	Mtime    utils.WindowsTime //8-16
	MFTmtime utils.WindowsTime //16-24
	Atime    utils.WindowsTime //24-32
	Dos      uint32            //32-36
	Maxver   uint32            //36-40
	Ver      uint32            //40-44
	ClassID  uint32            //44-48
	OwnID    uint32            //48-52
	SecID    uint32            //52-56
	Quota    uint64            //56-64
	Usn      uint64            //64-72
}

func (siattr *SIAttribute) Parse(data []byte) error {
	switch {
	case len(data) >= siLongLen:
		return utils.Unmarshal(data, siattr)
	case len(data) >= siShortLen:
		*siattr = SIAttribute{
			Crtime:   utils.WindowsTime{Stamp: binary.LittleEndian.Uint64(data[0:])},
			Mtime:    utils.WindowsTime{Stamp: binary.LittleEndian.Uint64(data[8:])},
			MFTmtime: utils.WindowsTime{Stamp: binary.LittleEndian.Uint64(data[16:])},
			Atime:    utils.WindowsTime{Stamp: binary.LittleEndian.Uint64(data[24:])},
			Dos:      binary.LittleEndian.Uint32(data[32:]),
			Maxver:   binary.LittleEndian.Uint32(data[36:]),
			Ver:      binary.LittleEndian.Uint32(data[40:]),
			ClassID:  binary.LittleEndian.Uint32(data[44:]),
		}
		return nil
	}
	return errors.Wrapf(utils.ErrShortBuffer, "standard information of %d bytes", len(data))
}

func (siattr SIAttribute) GetTimestamps() (string, string, string, string) {
	atime := siattr.Atime.ConvertToIsoTime()
	ctime := siattr.Crtime.ConvertToIsoTime()
	mtime := siattr.Mtime.ConvertToIsoTime()
	mftime := siattr.MFTmtime.ConvertToIsoTime()
	return atime, ctime, mtime, mftime
}
