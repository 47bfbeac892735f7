package exporter

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	ntfs "github.com/aarsakian/MFTRecover/FS/NTFS"
	"github.com/aarsakian/MFTRecover/img"
	"github.com/aarsakian/MFTRecover/logger"
	"github.com/aarsakian/MFTRecover/recovery"
	"github.com/pkg/errors"
)

const (
	StrategyOverwrite = "overwrite"
	StrategyID        = "id"
)

const chunkSize = 1 << 20

var zeros = make([]byte, chunkSize)

// Exporter writes the unnamed stream of candidates under Location. Clusters
// that are sparse, outside the volume or unreadable are written as zeros.
type Exporter struct {
	Location string
	Hash     string // md5, sha1 or empty
	Strategy string // files sharing a name: overwrite or prefix with the record id
	Workers  int
}

// Exported tells how much of a candidate made it to disk.
type Exported struct {
	Index   uint64
	Path    string
	Written uint64
	Missing uint64 // bytes zero filled because their clusters could not be read
	Hash    string
	Err     error
}

func (exported Exported) String() string {
	if exported.Err != nil {
		return fmt.Sprintf("%d %s failed: %v", exported.Index, exported.Path, exported.Err)
	}
	msg := fmt.Sprintf("%d %s %d bytes, %d missing", exported.Index, exported.Path, exported.Written, exported.Missing)
	if exported.Hash != "" {
		msg += " " + exported.Hash
	}
	return msg
}

func (exp Exporter) newHash() (hash.Hash, error) {
	switch strings.ToLower(exp.Hash) {
	case "":
		return nil, nil
	case "md5":
		return md5.New(), nil
	case "sha1":
		return sha1.New(), nil
	}
	return nil, errors.Errorf("only md5 or sha1 hashes are supported, not %s", exp.Hash)
}

// Export writes every candidate that is not a directory and has an unnamed
// stream. Results come back ordered by record index. A name already used in
// this export gets the record id prefix whatever the strategy.
func (exp Exporter) Export(hD img.DiskReader, geometry *ntfs.Geometry, candidates recovery.Candidates) ([]Exported, error) {
	if _, err := exp.newHash(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(exp.Location, 0750); err != nil {
		return nil, errors.Wrapf(err, "creating %s", exp.Location)
	}

	type job struct {
		candidate *recovery.Candidate
		name      string
	}
	workers := max(exp.Workers, 1)
	jobs := make(chan job)
	results := make(chan Exported)

	var wg sync.WaitGroup
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for work := range jobs {
				results <- exp.exportCandidate(hD, geometry, work.candidate, work.name)
			}
		}()
	}
	go func() {
		// names are taken in index order so two workers never share a file
		taken := make(map[string]bool)
		for idx := range candidates {
			candidate := &candidates[idx]
			if candidate.IsDirectory || candidate.Stream("") == nil {
				continue
			}
			name := exp.fileName(candidate)
			if taken[strings.ToLower(name)] {
				name = Exporter{Strategy: StrategyID}.fileName(candidate)
			}
			taken[strings.ToLower(name)] = true
			jobs <- job{candidate: candidate, name: name}
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	var exported []Exported
	for result := range results {
		exported = append(exported, result)
	}
	sort.Slice(exported, func(i, j int) bool { return exported[i].Index < exported[j].Index })
	return exported, nil
}

func (exp Exporter) fileName(candidate *recovery.Candidate) string {
	name := sanitize(candidate.PreferredName)
	if name == "" {
		return fmt.Sprintf("record_%d-%d", candidate.Index, candidate.Seq)
	}
	if exp.Strategy == StrategyID {
		return fmt.Sprintf("%d-%d_%s", candidate.Index, candidate.Seq, name)
	}
	return name
}

func sanitize(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, name)
	if name == "." || name == ".." {
		return ""
	}
	return name
}

func (exp Exporter) exportCandidate(hD img.DiskReader, geometry *ntfs.Geometry, candidate *recovery.Candidate, name string) Exported {
	exported := Exported{Index: candidate.Index, Path: filepath.Join(exp.Location, name)}
	msgLogger := logger.MFTRecoverlogger.WithRecord(candidate.Index)
	stream := candidate.Stream("")
	if stream.Compressed || stream.Encrypted {
		msgLogger.Warning(fmt.Sprintf("%s exported as stored on disk", stream))
	}

	file, err := os.Create(exported.Path)
	if err != nil {
		exported.Err = err
		return exported
	}
	defer file.Close()

	var out io.Writer = file
	hasher, _ := exp.newHash()
	if hasher != nil {
		out = io.MultiWriter(file, hasher)
	}

	exported.Written, exported.Missing, exported.Err = WriteStream(hD, geometry, *stream, out)
	if exported.Missing > 0 {
		msgLogger.Info(fmt.Sprintf("%d of %d bytes zero filled", exported.Missing, stream.Size))
	}
	if hasher != nil && exported.Err == nil {
		exported.Hash = strings.ToUpper(exp.Hash) + " " + hex.EncodeToString(hasher.Sum(nil))
	}
	return exported
}

// WriteStream copies the Size bytes of stream to out. Bytes past the
// initialized size read as zeros, as they do on a live volume.
func WriteStream(hD img.DiskReader, geometry *ntfs.Geometry, stream recovery.Stream, out io.Writer) (uint64, uint64, error) {
	if stream.Resident {
		n, err := out.Write(stream.Payload)
		return uint64(n), 0, err
	}

	clusterSize := uint64(geometry.ClusterSize)
	initialized := min(stream.InitializedSize, stream.Size)
	var written, missing uint64

	for _, run := range stream.Runs {
		runStart := run.VCN * clusterSize
		runEnd := min(runStart+run.Length*clusterSize, stream.Size)
		if runStart > written {
			// gap in the run list
			gap := min(runStart, stream.Size) - written
			if err := writeZeros(out, gap); err != nil {
				return written, missing, err
			}
			written += gap
			missing += gap
		}
		readable := !run.IsSparse() && geometry.ContainsClusters(uint64(run.LCN), run.Length)

		for written < runEnd {
			n := min(runEnd-written, chunkSize)
			var data []byte
			switch {
			case written >= initialized || run.IsSparse():
			case !readable:
				missing += n
			default:
				offset := geometry.ClusterOffset(uint64(run.LCN)) + int64(written-runStart)
				var err error
				if data, err = hD.ReadFile(offset, int(n)); err != nil {
					logger.MFTRecoverlogger.Warning(fmt.Sprintf("reading %d bytes at %d: %v", n, offset, err))
					data = nil
					missing += n
				}
			}
			if data == nil {
				data = zeros[:n]
			} else if written+n > initialized {
				clear(data[initialized-written:])
			}
			if _, err := out.Write(data); err != nil {
				return written, missing, err
			}
			written += n
		}
	}

	if written < stream.Size {
		tail := stream.Size - written
		if err := writeZeros(out, tail); err != nil {
			return written, missing, err
		}
		written += tail
		missing += tail
	}
	return written, missing, nil
}

func writeZeros(out io.Writer, n uint64) error {
	for n > 0 {
		chunk := min(n, chunkSize)
		if _, err := out.Write(zeros[:chunk]); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
