package MFT

import (
	"fmt"

	ntfs "github.com/aarsakian/MFTRecover/FS/NTFS"
	MFTAttributes "github.com/aarsakian/MFTRecover/FS/NTFS/MFT/attributes"
	"github.com/aarsakian/MFTRecover/img"
	"github.com/aarsakian/MFTRecover/logger"
	"github.com/pkg/errors"
)

// attribute values read through a run list are capped, an attribute list
// never comes close
const maxRunlistRead = 16 << 20

// clusters are probed this many bytes at a time
const probeChunk = 1 << 20

type segment struct {
	offset int64
	length int
}

// Fetcher reads MFT records by index. The $MFT layout is a run list over the
// volume; until SetLayout is called the table is assumed contiguous from
// the $MFT cluster to the end of the volume. A Fetcher is safe for
// concurrent use when its reader is.
type Fetcher struct {
	hD       img.DiskReader
	geometry *ntfs.Geometry
	layout   MFTAttributes.Runlist
	records  uint64
	probe    bool
}

func NewFetcher(hD img.DiskReader, geometry *ntfs.Geometry) *Fetcher {
	fetcher := &Fetcher{hD: hD, geometry: geometry, probe: true}
	clusters := geometry.TotalClusters - geometry.MFTLCN
	fetcher.SetLayout(MFTAttributes.Runlist{{VCN: 0, LCN: int64(geometry.MFTLCN), Length: clusters}},
		clusters*uint64(geometry.ClusterSize))
	return fetcher
}

// SetLayout installs the $MFT data runs; dataSize bounds the record count.
func (fetcher *Fetcher) SetLayout(runlist MFTAttributes.Runlist, dataSize uint64) {
	fetcher.layout = runlist
	fetcher.records = dataSize / uint64(fetcher.geometry.MFTRecordSize)
	if mapped := fetcher.geometry.RecordsInClusters(runlist.TotalClusters()); mapped < fetcher.records {
		fetcher.records = mapped
	}
}

// SetProbe switches cluster read probing in Readable.
func (fetcher *Fetcher) SetProbe(probe bool) {
	fetcher.probe = probe
}

func (fetcher Fetcher) RecordCount() uint64 {
	return fetcher.records
}

func (fetcher Fetcher) Layout() MFTAttributes.Runlist {
	return fetcher.layout
}

func (fetcher Fetcher) Geometry() *ntfs.Geometry {
	return fetcher.geometry
}

// segments maps a record onto volume extents; a record straddles runs when
// clusters are smaller than records.
func (fetcher Fetcher) segments(index uint64) ([]segment, error) {
	if index >= fetcher.records {
		return nil, errors.Wrapf(ErrOutsideMFT, "record %d of %d", index, fetcher.records)
	}
	clusterSize := uint64(fetcher.geometry.ClusterSize)
	byteOff := index * uint64(fetcher.geometry.MFTRecordSize)
	remaining := uint64(fetcher.geometry.MFTRecordSize)

	var segments []segment
	for remaining > 0 {
		vcn, within := byteOff/clusterSize, byteOff%clusterSize
		lcn, left, ok := fetcher.layout.Lookup(vcn)
		if !ok || lcn == MFTAttributes.SparseLCN {
			return nil, errors.Wrapf(ErrOutsideMFT, "record %d: vcn %d not mapped", index, vcn)
		}
		length := left*clusterSize - within
		if length > remaining {
			length = remaining
		}
		// a damaged layout run loses its records, not the scan
		if !fetcher.geometry.ContainsClusters(uint64(lcn), (within+length+clusterSize-1)/clusterSize) {
			return nil, errors.Wrapf(ErrOutsideMFT, "record %d: lcn %d outside the volume", index, lcn)
		}
		segments = append(segments, segment{
			offset: fetcher.geometry.ClusterOffset(uint64(lcn)) + int64(within),
			length: int(length),
		})
		byteOff += length
		remaining -= length
	}
	return segments, nil
}

// Offset is the image offset of the first byte of a record.
func (fetcher Fetcher) Offset(index uint64) (int64, error) {
	segments, err := fetcher.segments(index)
	if err != nil {
		return 0, err
	}
	return segments[0].offset, nil
}

// classify keeps short reads recognisable and turns every other reader
// failure into ErrFatalIO.
func classify(err error, what string, offset int64) error {
	if errors.Is(err, img.ErrShortRead) {
		return errors.Wrapf(err, "%s at %d", what, offset)
	}
	return errors.Wrapf(ErrFatalIO, "%s at %d: %v", what, offset, err)
}

// Fetch returns the raw bytes of a record.
func (fetcher Fetcher) Fetch(index uint64) ([]byte, error) {
	segments, err := fetcher.segments(index)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, fetcher.geometry.MFTRecordSize)
	for _, seg := range segments {
		data, err := fetcher.hD.ReadFile(seg.offset, seg.length)
		if err != nil {
			return nil, classify(err, fmt.Sprintf("record %d", index), seg.offset)
		}
		buf = append(buf, data...)
	}
	return buf, nil
}

// FetchRecord reads and validates a record.
func (fetcher Fetcher) FetchRecord(index uint64) (*Record, error) {
	data, err := fetcher.Fetch(index)
	if err != nil {
		return nil, err
	}
	return fetcher.newRecord(data, index)
}

// ReadRecordAt reads a record stored outside the layout, as in $MFTMirr.
func (fetcher Fetcher) ReadRecordAt(offset int64, index uint64) (*Record, error) {
	data, err := fetcher.hD.ReadFile(offset, fetcher.geometry.MFTRecordSize)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("record %d", index), offset)
	}
	return fetcher.newRecord(data, index)
}

func (fetcher Fetcher) newRecord(data []byte, index uint64) (*Record, error) {
	record := &Record{Index: index}
	if err := record.Process(data, fetcher.geometry.SectorSize); err != nil {
		return nil, errors.Wrapf(err, "record %d", index)
	}
	if record.Flaws != 0 {
		logger.MFTRecoverlogger.WithRecord(index).Warning(fmt.Sprintf("record flaws %s", record.Flaws))
	}
	return record, nil
}

// ReadRunlist reads size bytes of a non resident value; holes read as zeros.
func (fetcher Fetcher) ReadRunlist(runlist MFTAttributes.Runlist, size uint64) ([]byte, error) {
	if size > maxRunlistRead {
		return nil, errors.Errorf("value of %d bytes exceeds %d", size, maxRunlistRead)
	}
	clusterSize := uint64(fetcher.geometry.ClusterSize)
	buf := make([]byte, 0, size)

	for _, run := range runlist {
		if uint64(len(buf)) >= size {
			break
		}
		want := run.Length * clusterSize
		if left := size - uint64(len(buf)); want > left {
			want = left
		}
		if run.IsSparse() {
			buf = append(buf, make([]byte, want)...)
			continue
		}
		if !fetcher.geometry.ContainsClusters(uint64(run.LCN), run.Length) {
			return buf, errors.Errorf("run %s outside the volume", run)
		}
		offset := fetcher.geometry.ClusterOffset(uint64(run.LCN))
		data, err := fetcher.hD.ReadFile(offset, int(want))
		if err != nil {
			return buf, classify(err, "run list", offset)
		}
		buf = append(buf, data...)
	}
	if uint64(len(buf)) < size {
		return buf, errors.Errorf("run list covers %d of %d bytes", len(buf), size)
	}
	return buf, nil
}

// Readable reports whether an allocated run lies inside the volume and,
// with probing on, whether all of its clusters can be read.
func (fetcher Fetcher) Readable(run MFTAttributes.Run) bool {
	if run.IsSparse() || run.Length == 0 {
		return false
	}
	if !fetcher.geometry.ContainsClusters(uint64(run.LCN), run.Length) {
		return false
	}
	if !fetcher.probe {
		return true
	}
	clusterSize := uint64(fetcher.geometry.ClusterSize)
	perRead := max(probeChunk/clusterSize, 1)
	end := uint64(run.LCN) + run.Length
	for lcn := uint64(run.LCN); lcn < end; lcn += perRead {
		count := min(perRead, end-lcn)
		if _, err := fetcher.hD.ReadFile(fetcher.geometry.ClusterOffset(lcn), int(count*clusterSize)); err != nil {
			return false
		}
	}
	return true
}
