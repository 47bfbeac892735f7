package disk

import (
	"fmt"
	"io"

	ntfs "github.com/aarsakian/MFTRecover/FS/NTFS"
	gptLib "github.com/aarsakian/MFTRecover/disk/partition/GPT"
	mbrLib "github.com/aarsakian/MFTRecover/disk/partition/MBR"
	"github.com/aarsakian/MFTRecover/img"
	"github.com/aarsakian/MFTRecover/logger"
	diskfs "github.com/diskfs/go-diskfs"
	"github.com/pkg/errors"
)

var (
	ErrNTFSVol  = errors.New("NTFS volume discovered instead of MBR")
	ErrNoVolume = errors.New("no NTFS volume found")
)

const sectorSize = 512

type Partition interface {
	GetOffset() uint64 // sectors
	GetSize() uint64   // sectors
	GetInfo() string
}

// Volume is an NTFS file system found on the disk.
type Volume struct {
	Number   int // position in the partition list from 1, 0 for a bare volume
	Offset   int64
	Info     string
	Geometry *ntfs.Geometry
}

type Disk struct {
	MBR        *mbrLib.MBR
	GPT        *gptLib.GPT
	Handler    img.DiskReader
	Path       string // set for raw images go-diskfs can open
	Partitions []Partition
}

func (disk Disk) Close() {
	disk.Handler.CloseHandler()
}

func (disk Disk) readSector(lba uint64) ([]byte, error) {
	return disk.Handler.ReadFile(int64(lba)*sectorSize, sectorSize)
}

func (disk *Disk) populateMBR(data []byte) error {
	var mbr mbrLib.MBR
	if err := mbr.Parse(data); err != nil {
		return err
	}
	if offset, err := mbr.GetExtendedPartitionOffset(); err == nil {
		if err := mbr.DiscoverExtendedPartitions(offset, disk.readSector); err != nil {
			logger.MFTRecoverlogger.Warning(err.Error())
		}
	}
	disk.MBR = &mbr
	return nil
}

func (disk *Disk) populateGPT() error {
	data, err := disk.readSector(1) // gpt header always at LBA 1
	if err != nil {
		return errors.Wrap(err, "reading GPT header")
	}
	var gpt gptLib.GPT
	if err := gpt.ParseHeader(data); err != nil {
		return err
	}
	length, err := gpt.GetPartitionArraySize()
	if err != nil {
		return err
	}
	data, err = disk.Handler.ReadFile(int64(gpt.Header.PartitionsStartLBA)*sectorSize, int(length))
	if err != nil && !errors.Is(err, img.ErrShortRead) {
		return errors.Wrap(err, "reading GPT partition array")
	}
	gpt.ParsePartitions(data)
	disk.GPT = &gpt
	return nil
}

// DiscoverPartitions reads the partition table. Raw images that go-diskfs
// can open are read through it, everything else through the MBR and GPT
// parsers over the disk handler.
func (disk *Disk) DiscoverPartitions() error {
	disk.Partitions = nil
	data, err := disk.readSector(0) // MBR always at first sector
	if err != nil {
		return errors.Wrap(err, "reading MBR")
	}
	if string(data[3:7]) == "NTFS" {
		return ErrNTFSVol
	}

	if disk.Path != "" {
		partitions, err := ReadPartitionTable(disk.Path)
		if err == nil && len(partitions) > 0 {
			disk.Partitions = partitions
			return nil
		}
		if err != nil {
			logger.MFTRecoverlogger.Info(fmt.Sprintf("go-diskfs: %v", err))
		}
	}

	if err := disk.populateMBR(data); err != nil {
		return err
	}
	if disk.MBR.IsProtective() {
		if err := disk.populateGPT(); err != nil {
			return err
		}
		for idx := range disk.GPT.Partitions {
			disk.Partitions = append(disk.Partitions, disk.GPT.Partitions[idx])
		}
		return nil
	}
	for idx := range disk.MBR.Partitions {
		partition := disk.MBR.Partitions[idx]
		if partition.IsEmpty() || partition.IsExtended() {
			continue
		}
		disk.Partitions = append(disk.Partitions, partition)
	}
	for idx := range disk.MBR.ExtendedPartitions {
		disk.Partitions = append(disk.Partitions, disk.MBR.ExtendedPartitions[idx])
	}
	return nil
}

// Volumes returns the partitions holding an NTFS boot sector. A disk that
// starts with an NTFS boot sector is a single volume at offset 0.
func (disk *Disk) Volumes() ([]Volume, error) {
	err := disk.DiscoverPartitions()
	if errors.Is(err, ErrNTFSVol) {
		logger.MFTRecoverlogger.Warning("No MBR discovered, instead NTFS volume found at 1st sector")
		geometry, err := ntfs.ReadGeometry(disk.Handler, 0)
		if err != nil {
			return nil, err
		}
		return []Volume{{Number: 0, Offset: 0, Info: "NTFS volume", Geometry: geometry}}, nil
	}
	if err != nil {
		return nil, err
	}

	var volumes []Volume
	for idx, partition := range disk.Partitions {
		offset := int64(partition.GetOffset()) * sectorSize
		geometry, err := ntfs.ReadGeometry(disk.Handler, offset)
		if err != nil {
			logger.MFTRecoverlogger.Info(fmt.Sprintf("partition %d %s: %v", idx+1, partition.GetInfo(), err))
			continue
		}
		volumes = append(volumes, Volume{Number: idx + 1, Offset: offset, Info: partition.GetInfo(), Geometry: geometry})
	}
	return volumes, nil
}

// Locate picks the NTFS volume of partition partitionNum, or the first one
// when partitionNum is 0.
func (disk *Disk) Locate(partitionNum int) (Volume, error) {
	volumes, err := disk.Volumes()
	if err != nil {
		return Volume{}, err
	}
	for _, volume := range volumes {
		if partitionNum == 0 || volume.Number == partitionNum || (volume.Number == 0 && partitionNum == 1) {
			msg := fmt.Sprintf("Partition %d %s at %d", volume.Number, volume.Info, volume.Offset)
			logger.MFTRecoverlogger.Info(msg)
			return volume, nil
		}
	}
	if partitionNum == 0 {
		return Volume{}, ErrNoVolume
	}
	return Volume{}, errors.Wrapf(ErrNoVolume, "partition %d", partitionNum)
}

func (disk Disk) ListPartitions(out io.Writer) {
	for idx, partition := range disk.Partitions {
		fmt.Fprintf(out, "%d %s\n", idx+1, partition.GetInfo())
	}
}

type tablePartition struct {
	kind  string
	start uint64
	size  uint64
}

func (partition tablePartition) GetOffset() uint64 { return partition.start }

func (partition tablePartition) GetSize() uint64 { return partition.size }

func (partition tablePartition) GetInfo() string {
	return fmt.Sprintf("%s at %d sectors %d", partition.kind, partition.start, partition.size)
}

// ReadPartitionTable lists the partitions of a raw image or device with
// go-diskfs.
func ReadPartitionTable(path string) ([]Partition, error) {
	image, err := diskfs.Open(path, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer image.Close()

	table, err := image.GetPartitionTable()
	if err != nil {
		return nil, errors.Wrapf(err, "partition table of %s", path)
	}
	var partitions []Partition
	for _, part := range table.GetPartitions() {
		if part.GetSize() <= 0 {
			continue
		}
		partitions = append(partitions, tablePartition{
			kind:  table.Type(),
			start: uint64(part.GetStart()) / sectorSize,
			size:  uint64(part.GetSize()) / sectorSize,
		})
	}
	return partitions, nil
}
