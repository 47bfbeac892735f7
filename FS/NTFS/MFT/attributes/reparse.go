package attributes

import (
	"encoding/binary"
	"fmt"

	"github.com/aarsakian/MFTRecover/utils"
	"github.com/pkg/errors"
)

const (
	ReparseTagMountPoint uint32 = 0xa0000003
	ReparseTagSymlink    uint32 = 0xa000000c
	ReparseTagDedup      uint32 = 0x80000013
	ReparseTagWof        uint32 = 0x80000017
	ReparseTagCloud      uint32 = 0x9000001a
)

var ReparseTags = map[uint32]string{
	ReparseTagMountPoint: "mount point", ReparseTagSymlink: "symlink",
	ReparseTagDedup: "dedup", ReparseTagWof: "wof", ReparseTagCloud: "cloud",
}

const reparseHeaderLen = 8

// Reparse is the $REPARSE_POINT value. Target names are decoded for mount
// points and symbolic links, other tags carry data opaque to us.
type Reparse struct {
	Tag        uint32 //0-4
	DataLen    uint16 //4-6
	TargetName string
	PrintName  string
}

func (reparse *Reparse) Parse(data []byte) error {
	if len(data) < reparseHeaderLen {
		return errors.Wrapf(utils.ErrShortBuffer, "reparse point of %d bytes", len(data))
	}
	*reparse = Reparse{
		Tag:     binary.LittleEndian.Uint32(data[0:]),
		DataLen: binary.LittleEndian.Uint16(data[4:]),
	}

	var pathStart int
	switch reparse.Tag {
	case ReparseTagMountPoint:
		pathStart = 16
	case ReparseTagSymlink:
		pathStart = 20 // flags follow the name offsets
	default:
		return nil
	}
	if len(data) < pathStart {
		return errors.Wrapf(utils.ErrShortBuffer, "%s reparse data of %d bytes", reparse.Kind(), len(data))
	}

	var err error
	reparse.TargetName, err = pathName(data, pathStart, data[8:12])
	if err != nil {
		return err
	}
	reparse.PrintName, err = pathName(data, pathStart, data[12:16])
	return err
}

// pathName decodes the name located by an offset/length pair relative to
// the path buffer.
func pathName(data []byte, pathStart int, location []byte) (string, error) {
	start := pathStart + int(binary.LittleEndian.Uint16(location[0:]))
	end := start + int(binary.LittleEndian.Uint16(location[2:]))
	if end > len(data) {
		return "", errors.Wrapf(utils.ErrShortBuffer, "reparse name %d-%d of %d bytes", start, end, len(data))
	}
	return utils.DecodeUTF16(data[start:end]), nil
}

func (reparse Reparse) Kind() string {
	if kind, ok := ReparseTags[reparse.Tag]; ok {
		return kind
	}
	return fmt.Sprintf("tag 0x%08x", reparse.Tag)
}

func (reparse Reparse) IsLink() bool {
	return reparse.Tag == ReparseTagMountPoint || reparse.Tag == ReparseTagSymlink
}

func (reparse Reparse) String() string {
	if !reparse.IsLink() {
		return reparse.Kind()
	}
	return fmt.Sprintf("%s -> %s", reparse.Kind(), reparse.PrintName)
}
