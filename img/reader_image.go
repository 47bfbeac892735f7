package img

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ewfLib "github.com/aarsakian/EWF_Reader/ewf"
	"github.com/pkg/errors"
)

// ImageReader serves Expert Witness (E01) evidence files.
type ImageReader struct {
	PathToEvidenceFiles string
	fd                  ewfLib.EWF_Image
}

func (imgreader *ImageReader) CreateHandler() error {
	extension := filepath.Ext(imgreader.PathToEvidenceFiles)
	if !strings.EqualFold(extension, ".e01") {
		return errors.Errorf("only EWF images are supported, got %s", extension)
	}

	filenames := FindEvidenceFiles(imgreader.PathToEvidenceFiles)
	if len(filenames) == 0 {
		return errors.Errorf("no evidence segments found for %s", imgreader.PathToEvidenceFiles)
	}

	var ewf_image ewfLib.EWF_Image
	ewf_image.ParseEvidence(filenames)
	imgreader.fd = ewf_image
	return nil
}

// FindEvidenceFiles returns the E01, E02, ... segments next to the first one.
func FindEvidenceFiles(firstSegment string) []string {
	base := strings.TrimSuffix(firstSegment, filepath.Ext(firstSegment))
	prefix := filepath.Ext(firstSegment)[:2] // keep the case of ".E"/".e"

	var segments []string
	for idx := 1; idx < 100; idx++ {
		candidate := fmt.Sprintf("%s%s%02d", base, prefix, idx)
		if _, err := os.Stat(candidate); err != nil {
			break
		}
		segments = append(segments, candidate)
	}
	return segments
}

func (imgreader *ImageReader) CloseHandler() {}

func (imgreader *ImageReader) ReadFile(physicalOffset int64, length int) ([]byte, error) {
	size := imgreader.GetDiskSize()
	if err := checkRange(physicalOffset, length, size); err != nil {
		return nil, err
	}
	available := int64(length)
	if physicalOffset+available > size {
		available = size - physicalOffset
	}
	data := imgreader.fd.RetrieveData(physicalOffset, available)
	if len(data) < length {
		return data, errors.Wrapf(ErrShortRead, "got %d of %d bytes at %d", len(data), length, physicalOffset)
	}
	return data[:length], nil
}

func (imgreader *ImageReader) GetDiskSize() int64 {
	return int64(imgreader.fd.Chuncksize) * int64(imgreader.fd.NofChunks)
}
