package img

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrOutOfRange is returned when a read starts or ends beyond the device.
	ErrOutOfRange = errors.New("read beyond end of disk")
	// ErrShortRead is returned when the device returned fewer bytes than asked.
	ErrShortRead = errors.New("short read")
)

// DiskReader is a read only, randomly addressable byte source. ReadFile
// returns ErrOutOfRange, ErrShortRead (with the bytes read so far) or an
// I/O error.
type DiskReader interface {
	CreateHandler() error
	CloseHandler()
	ReadFile(offset int64, length int) ([]byte, error)
	GetDiskSize() int64
}

// GetHandler opens the evidence at pathToDisk. kind is one of raw, device,
// ewf, vmdk or mft; an empty kind is guessed from the file extension.
func GetHandler(pathToDisk string, kind string) (DiskReader, error) {
	if kind == "" {
		kind = GuessKind(pathToDisk)
	}

	var dr DiskReader
	switch kind {
	case "ewf":
		dr = &LockedReader{Reader: &ImageReader{PathToEvidenceFiles: pathToDisk}}
	case "vmdk":
		dr = &LockedReader{Reader: &VMDKReader{PathToEvidenceFiles: pathToDisk}}
	case "mft":
		data, err := os.ReadFile(pathToDisk)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", pathToDisk)
		}
		dr = NewMemoryReader(data)
	case "raw", "device":
		dr = newDeviceReader(pathToDisk)
	default:
		return nil, errors.Errorf("unknown evidence type %q", kind)
	}

	if err := dr.CreateHandler(); err != nil {
		return nil, errors.Wrapf(err, "opening %s", pathToDisk)
	}
	return dr, nil
}

func GuessKind(pathToDisk string) string {
	switch strings.ToLower(filepath.Ext(pathToDisk)) {
	case ".e01", ".ex01":
		return "ewf"
	case ".vmdk":
		return "vmdk"
	}
	if strings.HasPrefix(pathToDisk, `\\.\`) || strings.HasPrefix(pathToDisk, "/dev/") {
		return "device"
	}
	return "raw"
}

// checkRange rejects reads starting outside the device; size <= 0 means unknown.
func checkRange(offset int64, length int, size int64) error {
	if offset < 0 || length < 0 || (size > 0 && offset >= size) {
		return errors.Wrapf(ErrOutOfRange, "offset %d length %d disk size %d", offset, length, size)
	}
	return nil
}

// LockedReader serializes access to readers that keep a file position or
// internal caches.
type LockedReader struct {
	Reader DiskReader
	mu     sync.Mutex
}

func (locked *LockedReader) CreateHandler() error {
	return locked.Reader.CreateHandler()
}

func (locked *LockedReader) CloseHandler() {
	locked.mu.Lock()
	defer locked.mu.Unlock()
	locked.Reader.CloseHandler()
}

func (locked *LockedReader) ReadFile(offset int64, length int) ([]byte, error) {
	locked.mu.Lock()
	defer locked.mu.Unlock()
	return locked.Reader.ReadFile(offset, length)
}

func (locked *LockedReader) GetDiskSize() int64 {
	return locked.Reader.GetDiskSize()
}

// MemoryReader serves an in memory image, e.g. an extracted $MFT file.
type MemoryReader struct {
	data []byte
}

func NewMemoryReader(data []byte) *MemoryReader {
	return &MemoryReader{data: data}
}

func (memreader *MemoryReader) CreateHandler() error { return nil }

func (memreader *MemoryReader) CloseHandler() {}

func (memreader *MemoryReader) ReadFile(offset int64, length int) ([]byte, error) {
	if offset >= memreader.GetDiskSize() {
		return nil, errors.Wrapf(ErrOutOfRange, "offset %d length %d disk size %d", offset, length, len(memreader.data))
	}
	if err := checkRange(offset, length, 0); err != nil {
		return nil, err
	}
	end := offset + int64(length)
	if end > int64(len(memreader.data)) {
		buf := make([]byte, int64(len(memreader.data))-offset)
		copy(buf, memreader.data[offset:])
		return buf, errors.Wrapf(ErrShortRead, "got %d of %d bytes", len(buf), length)
	}
	buf := make([]byte, length)
	copy(buf, memreader.data[offset:end])
	return buf, nil
}

func (memreader *MemoryReader) GetDiskSize() int64 {
	return int64(len(memreader.data))
}
