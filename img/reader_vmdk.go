package img

import (
	"path/filepath"
	"strings"

	extent "github.com/aarsakian/VMDK_Reader/extent"
	"github.com/pkg/errors"
)

// VMDKReader serves sparse VMDK disks.
type VMDKReader struct {
	PathToEvidenceFiles string
	fd                  extent.Extents
}

func (imgreader *VMDKReader) CreateHandler() error {
	extension := filepath.Ext(imgreader.PathToEvidenceFiles)
	if !strings.EqualFold(extension, ".vmdk") {
		return errors.Errorf("only VMDK sparse images are supported, got %s", extension)
	}
	imgreader.fd = extent.ProcessExtents(imgreader.PathToEvidenceFiles)
	return nil
}

func (imgreader *VMDKReader) CloseHandler() {}

func (imgreader *VMDKReader) ReadFile(physicalOffset int64, length int) ([]byte, error) {
	size := imgreader.GetDiskSize()
	if err := checkRange(physicalOffset, length, size); err != nil {
		return nil, err
	}
	available := int64(length)
	if size > 0 && physicalOffset+available > size {
		available = size - physicalOffset
	}
	data := imgreader.fd.RetrieveData(filepath.Dir(imgreader.PathToEvidenceFiles), physicalOffset, available)
	if len(data) < length {
		return data, errors.Wrapf(ErrShortRead, "got %d of %d bytes at %d", len(data), length, physicalOffset)
	}
	return data[:length], nil
}

func (imgreader *VMDKReader) GetDiskSize() int64 {
	return imgreader.fd.GetHDSize()
}
