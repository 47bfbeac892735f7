package recovery

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aarsakian/MFTRecover/FS/NTFS/MFT"
	MFTAttributes "github.com/aarsakian/MFTRecover/FS/NTFS/MFT/attributes"
	"github.com/aarsakian/MFTRecover/utils"
)

// Filename is one $FILE_NAME instance of a candidate.
type Filename struct {
	Namespace     uint8
	Units         []uint16 // UTF-16 code units as stored
	Name          string
	LocaleName    []byte // Name in the configured code page
	AllocatedSize uint64
	RealSize      uint64
	Created       time.Time
	Modified      time.Time
	MFTModified   time.Time
	Accessed      time.Time
	Flags         uint32
	ParentRef     uint64
	ParentSeq     uint16
}

func (filename Filename) NamespaceName() string {
	return MFTAttributes.NameSpaceFlags[filename.Namespace]
}

// Stream is one $DATA attribute, named or not.
type Stream struct {
	Name            string
	Resident        bool
	Compressed      bool
	Encrypted       bool
	Sparse          bool
	AllocatedSize   uint64
	Size            uint64
	InitializedSize uint64
	LastVCN         uint64
	Runs            MFTAttributes.Runlist
	Payload         []byte
	Recoverable     float64 // percent
}

func (stream Stream) String() string {
	name := stream.Name
	if name == "" {
		name = "::$DATA"
	}
	if stream.Resident {
		return fmt.Sprintf("%s resident %d bytes", name, stream.Size)
	}
	return fmt.Sprintf("%s %d bytes %d runs %.1f%% recoverable", name, stream.Size, len(stream.Runs), stream.Recoverable)
}

// Candidate is the reconstructed view of one base record.
type Candidate struct {
	Index               uint64
	Seq                 uint16
	Modified            time.Time
	Filenames           []Filename
	Streams             []Stream
	PreferredName       string
	PreferredParentName string
	Path                string
	MaxSize             uint64
	SpansRecords        bool
	IsDirectory         bool
	InUse               bool
	ObjectID            string
	Reparse             string
	Link                MFT.Base
	Flaws               MFT.Flaw
	Raw                 []byte
}

// Preferred returns the filename chosen as PreferredName.
func (candidate Candidate) Preferred() *Filename {
	idx := preferredFilename(candidate.Filenames)
	if idx < 0 {
		return nil
	}
	return &candidate.Filenames[idx]
}

// Stream returns the data stream called name, "" being the unnamed one.
func (candidate Candidate) Stream(name string) *Stream {
	for idx := range candidate.Streams {
		if candidate.Streams[idx].Name == name {
			return &candidate.Streams[idx]
		}
	}
	return nil
}

func (candidate Candidate) HasFilename(filename string) bool {
	for _, fname := range candidate.Filenames {
		if strings.EqualFold(fname.Name, filename) {
			return true
		}
	}
	return false
}

func (candidate Candidate) HasFilenameExtension(extension string) bool {
	extension = strings.ToLower(strings.TrimPrefix(extension, "."))
	for _, fname := range candidate.Filenames {
		if strings.TrimPrefix(strings.ToLower(filepath.Ext(fname.Name)), ".") == extension {
			return true
		}
	}
	return false
}

// Recoverable is the lowest recoverability over the candidate's streams,
// 100 for a candidate without data.
func (candidate Candidate) Recoverable() float64 {
	lowest := 100.0
	for _, stream := range candidate.Streams {
		if stream.Recoverable < lowest {
			lowest = stream.Recoverable
		}
	}
	return lowest
}

func (candidate Candidate) String() string {
	kind := "file"
	if candidate.IsDirectory {
		kind = "dir"
	}
	state := "allocated"
	if !candidate.InUse {
		state = "deleted"
	}
	return fmt.Sprintf("%d-%d %s %s %s size %d flaws %s", candidate.Index, candidate.Seq,
		kind, state, candidate.PreferredName, candidate.MaxSize, candidate.Flaws)
}

type Candidates []Candidate

func (candidates Candidates) FilterByNames(filenames []string) Candidates {
	return utils.Filter(candidates, func(candidate Candidate) bool {
		for _, filename := range filenames {
			if candidate.HasFilename(filename) {
				return true
			}
		}
		return false
	})
}

func (candidates Candidates) FilterByExtensions(extensions []string) Candidates {
	return utils.Filter(candidates, func(candidate Candidate) bool {
		for _, extension := range extensions {
			if candidate.HasFilenameExtension(extension) {
				return true
			}
		}
		return false
	})
}

func (candidates Candidates) FilterByPath(path string) Candidates {
	path = strings.ToLower(path)
	return utils.Filter(candidates, func(candidate Candidate) bool {
		return strings.HasPrefix(strings.ToLower(candidate.Path), path)
	})
}

func (candidates Candidates) FilterDeleted() Candidates {
	return utils.Filter(candidates, func(candidate Candidate) bool {
		return !candidate.InUse
	})
}

func (candidates Candidates) FilterOutFolders() Candidates {
	return utils.Filter(candidates, func(candidate Candidate) bool {
		return !candidate.IsDirectory
	})
}

func (candidates Candidates) FilterByRecoverability(percent float64) Candidates {
	return utils.Filter(candidates, func(candidate Candidate) bool {
		return candidate.Recoverable() >= percent
	})
}

// Find looks a candidate up by record index; candidates are ordered by index.
func (candidates Candidates) Find(index uint64) *Candidate {
	lo, hi := 0, len(candidates)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case candidates[mid].Index == index:
			return &candidates[mid]
		case candidates[mid].Index < index:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return nil
}
