//go:build windows

package img

import (
	"strings"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

type DISK_GEOMETRY struct {
	Cylinders         int64
	MediaType         int32
	TracksPerCylinder int32
	SectorsPerTrack   int32
	BytesPerSector    int32
}

// WindowsReader reads physical drives (\\.\PHYSICALDRIVEn) and image files.
type WindowsReader struct {
	a_file string
	fd     windows.Handle
	size   int64
}

func newDeviceReader(pathToDisk string) DiskReader {
	return &WindowsReader{a_file: pathToDisk}
}

func (winreader *WindowsReader) CreateHandler() error {
	file_ptr, err := windows.UTF16PtrFromString(winreader.a_file)
	if err != nil {
		return err
	}
	var templateHandle windows.Handle
	fd, err := windows.CreateFile(file_ptr, windows.FILE_READ_DATA,
		windows.FILE_SHARE_READ, nil,
		windows.OPEN_EXISTING, 0, templateHandle)
	if err != nil {
		return errors.Wrap(err, "CreateFile")
	}
	winreader.fd = fd

	if strings.HasPrefix(winreader.a_file, `\\.\`) {
		winreader.size, err = winreader.driveSize()
	} else {
		winreader.size, err = windows.Seek(fd, 0, 2)
	}
	if err != nil {
		windows.Close(fd)
		return errors.Wrap(err, "disk size")
	}
	return nil
}

func (winreader *WindowsReader) CloseHandler() {
	windows.Close(winreader.fd)
}

func (winreader *WindowsReader) driveSize() (int64, error) {
	const IOCTL_DISK_GET_DRIVE_GEOMETRY = 0x70000
	disk_geometry := DISK_GEOMETRY{}

	var returned uint32
	err := windows.DeviceIoControl(winreader.fd, IOCTL_DISK_GET_DRIVE_GEOMETRY,
		nil, 0, (*byte)(unsafe.Pointer(&disk_geometry)), uint32(unsafe.Sizeof(disk_geometry)), &returned, nil)
	if err != nil {
		return 0, err
	}

	return disk_geometry.Cylinders * int64(disk_geometry.TracksPerCylinder) *
		int64(disk_geometry.SectorsPerTrack) * int64(disk_geometry.BytesPerSector), nil
}

func (winreader *WindowsReader) GetDiskSize() int64 {
	return winreader.size
}

// ReadFile issues a positioned read through an OVERLAPPED offset, the file
// pointer of the handle is never moved.
func (winreader *WindowsReader) ReadFile(offset int64, length int) ([]byte, error) {
	if err := checkRange(offset, length, winreader.size); err != nil {
		return nil, err
	}
	buffer := make([]byte, length)

	overlapped := windows.Overlapped{Offset: uint32(offset), OffsetHigh: uint32(offset >> 32)}
	var bytesRead uint32
	err := windows.ReadFile(winreader.fd, buffer, &bytesRead, &overlapped)
	if err != nil && err != windows.ERROR_HANDLE_EOF {
		return buffer[:bytesRead], errors.Wrapf(err, "ReadFile at %d", offset)
	}
	if int(bytesRead) < length {
		return buffer[:bytesRead], errors.Wrapf(ErrShortRead, "got %d of %d bytes at %d", bytesRead, length, offset)
	}
	return buffer, nil
}
