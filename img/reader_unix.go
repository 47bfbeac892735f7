//go:build !windows

package img

import (
	"io"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// UnixReader reads raw images and block devices with positioned reads, so
// it is safe for concurrent use.
type UnixReader struct {
	pathToDisk string
	fd         int
	size       int64
}

func newDeviceReader(pathToDisk string) DiskReader {
	return &UnixReader{pathToDisk: pathToDisk, fd: -1}
}

func (unixreader *UnixReader) CreateHandler() error {
	fd, err := unix.Open(unixreader.pathToDisk, unix.O_RDONLY, 0)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	unixreader.fd = fd

	// block devices report a zero st_size
	size, err := unix.Seek(fd, 0, io.SeekEnd)
	if err != nil {
		unix.Close(fd)
		return errors.Wrap(err, "seek")
	}
	unixreader.size = size
	return nil
}

func (unixreader *UnixReader) ReadFile(offset int64, length int) ([]byte, error) {
	if err := checkRange(offset, length, unixreader.size); err != nil {
		return nil, err
	}
	buffer := make([]byte, length)
	read := 0
	for read < length {
		n, err := unix.Pread(unixreader.fd, buffer[read:], offset+int64(read))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return buffer[:read], errors.Wrapf(err, "pread at %d", offset+int64(read))
		}
		if n == 0 {
			return buffer[:read], errors.Wrapf(ErrShortRead, "got %d of %d bytes at %d", read, length, offset)
		}
		read += n
	}
	return buffer, nil
}

func (unixreader *UnixReader) CloseHandler() {
	if unixreader.fd >= 0 {
		unix.Close(unixreader.fd)
		unixreader.fd = -1
	}
}

func (unixreader *UnixReader) GetDiskSize() int64 {
	return unixreader.size
}
