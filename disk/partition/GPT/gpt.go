package gpt

import (
	"fmt"

	"github.com/aarsakian/MFTRecover/utils"
	"github.com/pkg/errors"
)

var ErrNoGPT = errors.New("no EFI PART header")

// entries of a sane table fit in a few sectors; cap what a corrupt header asks
const maxPartitionArray = 1 << 20

const entrySize = 128

var PartitionTypeGuids = map[string]string{
	"ebd0a0a2-b9e5-4433-87c0-68b6b72699c7": "Windows",
	"e3c9e316-0b5c-4db8-817d-f92df00215ae": "Microsoft reserved",
	"de94bba4-06d1-4d40-a16a-bfd50179d6ac": "Windows recovery",
	"c12a7328-f81f-11d2-ba4b-00a0c93ec93b": "EFI system",
	"a19d880f-05fc-4d3b-a006-743f0f84911e": "Linux RAID",
	"0fc63daf-8483-4772-8e79-3d69d8477de4": "Linux",
}

type GPT struct {
	Header     *GPTHeader
	Partitions []Partition
}

type GPTHeader struct {
	StartSignature     [8]byte
	Revision           [4]byte
	HeaderSize         uint32
	HeaderCRC          uint32
	Reserved           [4]byte
	CurrentLBA         uint64 //location of header
	BackupLBA          uint64
	FirstUsableLBA     uint64
	LastUsableLBA      uint64
	DiskGUID           [16]byte
	PartitionsStartLBA uint64 // usually LBA 2
	NofPartitions      uint32
	PartitionSize      uint32
	PartionArrayCRC    uint32
	Reserved2          [418]byte
	EndSignature       [2]byte //510-511
}

type Partition struct {
	PartitionTypeGUID [16]byte
	PartitionGUID     [16]byte
	StartLBA          uint64
	EndLBA            uint64
	Atttributes       [8]byte
	RawName           [72]byte // UTF-16LE
}

func (partition Partition) GetPartitionType() string {
	guid := utils.StringifyGUID(partition.PartitionTypeGUID[:])
	if partitionType, ok := PartitionTypeGuids[guid]; ok {
		return partitionType
	}
	return guid
}

func (partition Partition) GetUniquePartitionType() string {
	return utils.StringifyGUID(partition.PartitionGUID[:])
}

func (partition Partition) GetName() string {
	name := partition.RawName[:]
	for idx := 0; idx+1 < len(name); idx += 2 {
		if name[idx] == 0 && name[idx+1] == 0 {
			name = name[:idx]
			break
		}
	}
	return utils.DecodeUTF16(name)
}

func (partition Partition) IsEmpty() bool {
	return partition.PartitionTypeGUID == [16]byte{}
}

func (partition Partition) GetOffset() uint64 {
	return partition.StartLBA
}

func (partition Partition) GetSize() uint64 {
	if partition.EndLBA < partition.StartLBA {
		return 0
	}
	return partition.EndLBA - partition.StartLBA + 1
}

func (partition Partition) GetInfo() string {
	return fmt.Sprintf("GPT %s %s %q at %d sectors %d", partition.GetUniquePartitionType(),
		partition.GetPartitionType(), partition.GetName(), partition.GetOffset(), partition.GetSize())
}

func (gpt *GPT) ParseHeader(buffer []byte) error {
	var header GPTHeader
	if err := utils.Unmarshal(buffer, &header); err != nil {
		return err
	}
	if string(header.StartSignature[:]) != "EFI PART" {
		return ErrNoGPT
	}
	if header.PartitionSize < entrySize {
		return errors.Errorf("partition entry size %d", header.PartitionSize)
	}
	gpt.Header = &header
	return nil
}

func (gpt GPT) GetPartitionArraySize() (uint32, error) {
	size := uint64(gpt.Header.PartitionSize) * uint64(gpt.Header.NofPartitions)
	if size > maxPartitionArray {
		return 0, errors.Errorf("partition array of %d bytes", size)
	}
	return uint32(size), nil
}

// ParsePartitions keeps the used entries of the partition array.
func (gpt *GPT) ParsePartitions(data []byte) {
	gpt.Partitions = nil
	entryLen := int(gpt.Header.PartitionSize)
	for idx := 0; idx < int(gpt.Header.NofPartitions); idx++ {
		if (idx+1)*entryLen > len(data) {
			break
		}
		var partition Partition
		if err := utils.Unmarshal(data[idx*entryLen:idx*entryLen+entrySize], &partition); err != nil {
			break
		}
		if partition.IsEmpty() {
			continue
		}
		gpt.Partitions = append(gpt.Partitions, partition)
	}
}
