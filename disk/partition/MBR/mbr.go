package MBR

import (
	"encoding/binary"
	"fmt"

	"github.com/aarsakian/MFTRecover/utils"
	"github.com/pkg/errors"
)

var ErrNoMBR = errors.New("no MBR signature")

const (
	TypeNTFS       uint8 = 0x07
	TypeHiddenNTFS uint8 = 0x17
	TypeExtended   uint8 = 0x0f
	TypeExtCHS     uint8 = 0x05
	TypeProtective uint8 = 0xee
)

var PartitionTypes = map[uint8]string{0x07: "HPFS/NTFS/exFAT",
	0x05: "Extended",
	0x0c: "W95 FAT32 (LBA)",
	0x0f: "Extended",
	0x17: "Hidden NTFS",
	0x27: "Hidden NTFS Win",
	0xee: "GPT protective"}

// extended partition chains longer than this are treated as loops
const maxLogicalPartitions = 128

type MBR struct {
	Partitions         []Partition
	ExtendedPartitions []ExtendedPartition
}

type Partition struct {
	Flag     uint8   //0
	StartCHS [3]byte //1-4
	Type     uint8   //4
	EndCHS   [3]byte //5-8
	StartLBA uint32  //8-12
	Size     uint32  //12-16 sectors
}

// ExtendedPartition is a logical partition; TableOffset is the sector of the
// EBR describing it, StartLBA being relative to it.
type ExtendedPartition struct {
	Partition   Partition
	TableOffset uint64
}

func (partition Partition) GetOffset() uint64 {
	return uint64(partition.StartLBA)
}

func (partition Partition) GetSize() uint64 {
	return uint64(partition.Size)
}

func (partition Partition) GetPartitionType() string {
	if name, ok := PartitionTypes[partition.Type]; ok {
		return name
	}
	return fmt.Sprintf("type 0x%02x", partition.Type)
}

func (partition Partition) IsExtended() bool {
	return partition.Type == TypeExtended || partition.Type == TypeExtCHS
}

func (partition Partition) IsEmpty() bool {
	return partition.Type == 0 || partition.Size == 0
}

func (partition Partition) GetInfo() string {
	return fmt.Sprintf("MBR %s at %d sectors %d", partition.GetPartitionType(), partition.GetOffset(), partition.Size)
}

func (extPartition ExtendedPartition) GetOffset() uint64 {
	return uint64(extPartition.Partition.StartLBA) + extPartition.TableOffset
}

func (extPartition ExtendedPartition) GetSize() uint64 {
	return extPartition.Partition.GetSize()
}

func (extPartition ExtendedPartition) GetInfo() string {
	return fmt.Sprintf("EBR %s at %d sectors %d", extPartition.Partition.GetPartitionType(),
		extPartition.GetOffset(), extPartition.Partition.Size)
}

func (mbr MBR) IsProtective() bool {
	return len(mbr.Partitions) > 0 && mbr.Partitions[0].Type == TypeProtective
}

func LocatePartitions(data []byte) []Partition {
	var partitions []Partition
	for pos := 0; pos+16 <= len(data); pos += 16 {
		var partition Partition
		if err := utils.Unmarshal(data[pos:pos+16], &partition); err != nil {
			break
		}
		partitions = append(partitions, partition)
	}
	return partitions
}

func hasSignature(buffer []byte) bool {
	return len(buffer) >= 512 && binary.LittleEndian.Uint16(buffer[510:]) == 0xaa55
}

func (mbr *MBR) Parse(buffer []byte) error {
	if !hasSignature(buffer) {
		return ErrNoMBR
	}
	mbr.Partitions = LocatePartitions(buffer[446:510])
	return nil
}

func (mbr MBR) GetExtendedPartitionOffset() (uint64, error) {
	for _, partition := range mbr.Partitions {
		if partition.IsExtended() {
			return partition.GetOffset(), nil
		}
	}
	return 0, errors.New("extended partition not found")
}

// DiscoverExtendedPartitions follows the EBR chain starting at sector
// extendedStart. readSector returns the 512 bytes of a sector.
func (mbr *MBR) DiscoverExtendedPartitions(extendedStart uint64, readSector func(lba uint64) ([]byte, error)) error {
	tableOffset := extendedStart
	seen := make(map[uint64]bool)
	for count := 0; count < maxLogicalPartitions; count++ {
		if seen[tableOffset] {
			return errors.Errorf("EBR chain loops at sector %d", tableOffset)
		}
		seen[tableOffset] = true

		buffer, err := readSector(tableOffset)
		if err != nil {
			return errors.Wrapf(err, "EBR at sector %d", tableOffset)
		}
		if !hasSignature(buffer) {
			return errors.Wrapf(ErrNoMBR, "EBR at sector %d", tableOffset)
		}
		entries := LocatePartitions(buffer[446:478])
		if len(entries) < 2 {
			return nil
		}
		if !entries[0].IsEmpty() {
			mbr.ExtendedPartitions = append(mbr.ExtendedPartitions,
				ExtendedPartition{Partition: entries[0], TableOffset: tableOffset})
		}
		if !entries[1].IsExtended() || entries[1].IsEmpty() {
			return nil
		}
		// next EBR is relative to the start of the extended partition
		tableOffset = extendedStart + entries[1].GetOffset()
	}
	return errors.Errorf("more than %d logical partitions", maxLogicalPartitions)
}
