package recovery

import (
	"fmt"
	"math"
	"time"

	"github.com/aarsakian/MFTRecover/FS/NTFS/MFT"
	MFTAttributes "github.com/aarsakian/MFTRecover/FS/NTFS/MFT/attributes"
	"github.com/aarsakian/MFTRecover/logger"
	"github.com/aarsakian/MFTRecover/utils"
)

// ClusterProber tells whether the clusters of an allocated run can be read.
type ClusterProber interface {
	Readable(run MFTAttributes.Run) bool
}

// Builder turns a resolved attribute set into a Candidate.
type Builder struct {
	prober      ClusterProber
	clusterSize uint64
	locale      utils.Locale
}

func NewBuilder(prober ClusterProber, clusterSize int, locale utils.Locale) *Builder {
	return &Builder{prober: prober, clusterSize: uint64(clusterSize), locale: locale}
}

func (builder Builder) Build(base *MFT.Record, set MFT.AttributeSet) Candidate {
	msgLogger := logger.MFTRecoverlogger.WithRecord(base.Index)

	candidate := Candidate{
		Index:        base.Index,
		Seq:          base.Seq,
		IsDirectory:  base.IsFolder(),
		InUse:        base.IsInUse(),
		Link:         set.Link,
		Flaws:        set.Flaws,
		SpansRecords: len(set.Link.Extents) > 0,
		Raw:          append([]byte(nil), base.Data...),
	}

	for _, attr := range set.Attributes {
		switch attr.Header.Type {
		case MFTAttributes.StandardInformation:
			var siattr MFTAttributes.SIAttribute
			if err := siattr.Parse(attr.Content); err != nil {
				msgLogger.Warning(fmt.Sprintf("standard information: %v", err))
				continue
			}
			candidate.Modified = latest(candidate.Modified, siattr.Mtime.ConvertToTime())
		case MFTAttributes.FileName:
			var fnattr MFTAttributes.FNAttribute
			if err := fnattr.Parse(attr.Content); err != nil {
				msgLogger.Warning(fmt.Sprintf("file name: %v", err))
				continue
			}
			filename := builder.filename(fnattr)
			candidate.Filenames = append(candidate.Filenames, filename)
			candidate.Modified = latest(candidate.Modified, filename.Modified)
			candidate.MaxSize = max(candidate.MaxSize, filename.RealSize)
		case MFTAttributes.Data:
			stream := builder.stream(attr)
			candidate.Streams = append(candidate.Streams, stream)
			candidate.MaxSize = max(candidate.MaxSize, stream.Size)
		case MFTAttributes.IndexRoot:
			candidate.IsDirectory = true
		case MFTAttributes.ObjectIDType:
			var objectID MFTAttributes.ObjectID
			if err := objectID.Parse(attr.Content); err != nil {
				msgLogger.Warning(fmt.Sprintf("object id: %v", err))
				continue
			}
			candidate.ObjectID = objectID.String()
		case MFTAttributes.ReparsePoint:
			if attr.Header.IsNoNResident() {
				continue
			}
			var reparse MFTAttributes.Reparse
			if err := reparse.Parse(attr.Content); err != nil {
				msgLogger.Warning(fmt.Sprintf("reparse point: %v", err))
				continue
			}
			candidate.Reparse = reparse.String()
		}
	}

	if preferred := candidate.Preferred(); preferred != nil {
		candidate.PreferredName = preferred.Name
	}
	return candidate
}

func (builder Builder) filename(fnattr MFTAttributes.FNAttribute) Filename {
	return Filename{
		Namespace:     fnattr.Nspace,
		Units:         utils.UTF16Units(fnattr.RawName),
		Name:          fnattr.Fname,
		LocaleName:    builder.locale.Encode(fnattr.Fname),
		AllocatedSize: fnattr.AllocFsize,
		RealSize:      fnattr.RealFsize,
		Created:       fnattr.Crtime.ConvertToTime(),
		Modified:      fnattr.Mtime.ConvertToTime(),
		MFTModified:   fnattr.MFTmtime.ConvertToTime(),
		Accessed:      fnattr.Atime.ConvertToTime(),
		Flags:         fnattr.Flags,
		ParentRef:     fnattr.ParRef,
		ParentSeq:     fnattr.ParSeq,
	}
}

func (builder Builder) stream(attr MFTAttributes.Attribute) Stream {
	stream := Stream{
		Name:       attr.Header.Name,
		Resident:   !attr.Header.IsNoNResident(),
		Compressed: attr.Header.IsCompressed(),
		Encrypted:  attr.Header.IsEncrypted(),
		Sparse:     attr.Header.IsSparse(),
	}
	if stream.Resident {
		stream.Payload = append([]byte(nil), attr.Content...)
		stream.Size = uint64(len(attr.Content))
		stream.AllocatedSize = stream.Size
		stream.InitializedSize = stream.Size
		stream.Recoverable = 100
		return stream
	}

	nonresident := attr.Header.ATRrecordNoNResident
	stream.AllocatedSize = nonresident.Length
	stream.Size = nonresident.ActualLength
	stream.InitializedSize = nonresident.InitLength
	stream.LastVCN = nonresident.LastVcn
	stream.Runs = append(MFTAttributes.Runlist(nil), nonresident.RunList...)
	stream.Recoverable = builder.Recoverability(stream.Runs, stream.AllocatedSize)
	return stream
}

// Recoverability is the percentage of allocated clusters held by readable
// runs. A stream with nothing allocated and no runs is fully recoverable.
func (builder Builder) Recoverability(runs MFTAttributes.Runlist, allocatedSize uint64) float64 {
	var allocated uint64
	if builder.clusterSize > 0 {
		allocated = (allocatedSize + builder.clusterSize - 1) / builder.clusterSize
	}
	if allocated == 0 {
		allocated = runs.TotalClusters()
	}
	if allocated == 0 {
		return 100
	}

	var readable uint64
	for _, run := range runs {
		if run.IsSparse() {
			continue
		}
		if builder.prober == nil || builder.prober.Readable(run) {
			readable += run.Length
		}
	}
	return math.Max(0, math.Min(100, float64(readable)*100/float64(allocated)))
}

// preferredFilename ranks Win32 names over POSIX over DOS, the latest
// modification winning between equals. -1 when there are no names.
func preferredFilename(filenames []Filename) int {
	rank := func(namespace uint8) int {
		switch namespace {
		case MFTAttributes.Win32, MFTAttributes.Win32AndDos:
			return 0
		case MFTAttributes.POSIX:
			return 1
		default:
			return 2
		}
	}

	chosen := -1
	for idx, filename := range filenames {
		if chosen < 0 {
			chosen = idx
			continue
		}
		current := filenames[chosen]
		if r, rc := rank(filename.Namespace), rank(current.Namespace); r < rc ||
			(r == rc && filename.Modified.After(current.Modified)) {
			chosen = idx
		}
	}
	return chosen
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
