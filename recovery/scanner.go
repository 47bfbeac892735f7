package recovery

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	ntfs "github.com/aarsakian/MFTRecover/FS/NTFS"
	"github.com/aarsakian/MFTRecover/FS/NTFS/MFT"
	MFTAttributes "github.com/aarsakian/MFTRecover/FS/NTFS/MFT/attributes"
	"github.com/aarsakian/MFTRecover/config"
	"github.com/aarsakian/MFTRecover/img"
	"github.com/aarsakian/MFTRecover/logger"
	"github.com/aarsakian/MFTRecover/utils"
	"github.com/pkg/errors"
)

// Where the $MFT layout came from.
const (
	SourceRecord0 = "record 0"
	SourceMirror  = "$MFTMirr"
	SourceZone    = "mft zone"
	SourceFile    = "$MFT file"
)

type Stats struct {
	Scanned    uint64
	NotInUse   uint64
	Extensions uint64
	Skipped    uint64 // unreadable or outside the table
	Flawed     uint64
	Candidates uint64
}

// Volume is what record 3 tells about the file system.
type Volume struct {
	Label   string
	Version string
	Dirty   bool
}

type Result struct {
	Candidates Candidates
	Stats      Stats
	MFTSource  string
	Layout     MFTAttributes.Runlist
	Volume     Volume

	OutsideRuns int // layout runs past the end of the volume
}

// volumeEntry is the $Volume record
const volumeEntry = 3

type counters struct {
	scanned, notInUse, extensions, skipped, flawed atomic.Uint64
}

// Scanner walks the MFT of one volume and builds a candidate for every base
// record it can decode.
type Scanner struct {
	geometry *ntfs.Geometry
	cfg      config.Config
	fetcher  *MFT.Fetcher
	resolver *MFT.Resolver
	builder  *Builder

	// the reader holds the table itself, as an extracted $MFT
	contiguous bool
}

func NewScanner(hD img.DiskReader, geometry *ntfs.Geometry, cfg config.Config) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	locale, err := utils.NewLocale(cfg.Locale)
	if err != nil {
		return nil, err
	}
	fetcher := MFT.NewFetcher(hD, geometry)
	fetcher.SetProbe(cfg.ProbeReads)
	return &Scanner{
		geometry: geometry,
		cfg:      cfg,
		fetcher:  fetcher,
		resolver: MFT.NewResolver(fetcher),
		builder:  NewBuilder(fetcher, geometry.ClusterSize, locale),
	}, nil
}

// AssumeContiguous makes Scan read size bytes of table from the start of the
// volume without looking for its layout. Data runs of an extracted $MFT point
// into a volume that is not there, so clusters are not probed either.
func (scanner *Scanner) AssumeContiguous(size uint64) {
	scanner.contiguous = true
	scanner.builder.prober = nil
	scanner.fetcher.SetLayout(MFTAttributes.Runlist{{VCN: 0, LCN: 0, Length: scanner.geometry.TotalClusters}}, size)
}

// Scan locates the $MFT and processes the configured index range. On a
// fatal read error the candidates gathered so far come back with the error.
func (scanner *Scanner) Scan() (Result, error) {
	result := Result{}
	source := SourceFile
	if !scanner.contiguous {
		var err error
		if source, err = scanner.locateMFT(); err != nil {
			return result, err
		}
	}
	result.MFTSource = source
	result.Layout = scanner.fetcher.Layout()
	result.OutsideRuns = len(scanner.outsideRuns(result.Layout))
	result.Volume = scanner.volume()

	from, to, ok := scanner.indexRange()
	if !ok {
		logger.MFTRecoverlogger.Warning(fmt.Sprintf("empty index range, table has %d records", scanner.fetcher.RecordCount()))
		return result, nil
	}
	logger.MFTRecoverlogger.Info(fmt.Sprintf("scanning records %d-%d, layout from %s %s", from, to, source, result.Layout))

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		once       sync.Once
		fatal      error
		candidates Candidates
		stats      counters
	)
	indices := make(chan uint64)
	stop := make(chan struct{})
	fail := func(err error) {
		once.Do(func() {
			fatal = err
			close(stop)
		})
	}

	for worker := 0; worker < scanner.cfg.Workers; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range indices {
				candidate, err := scanner.process(index, &stats)
				if err != nil {
					fail(err)
					continue
				}
				if candidate == nil {
					continue
				}
				mu.Lock()
				candidates = append(candidates, *candidate)
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(indices)
		for index := from; index <= to; index++ {
			select {
			case indices <- index:
			case <-stop:
				return
			}
		}
	}()
	wg.Wait()

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Index < candidates[j].Index })
	result.Candidates = candidates
	result.Stats = Stats{
		Scanned:    stats.scanned.Load(),
		NotInUse:   stats.notInUse.Load(),
		Extensions: stats.extensions.Load(),
		Skipped:    stats.skipped.Load(),
		Flawed:     stats.flawed.Load(),
		Candidates: uint64(len(candidates)),
	}
	if fatal != nil {
		logger.MFTRecoverlogger.Error(fmt.Sprintf("scan stopped: %v", fatal))
	}
	return result, fatal
}

// process returns a nil candidate for records that are skipped and an error
// only when the scan has to stop.
func (scanner *Scanner) process(index uint64, stats *counters) (*Candidate, error) {
	stats.scanned.Add(1)
	record, err := scanner.fetcher.FetchRecord(index)
	switch {
	case err == nil:
	case errors.Is(err, MFT.ErrFatalIO):
		return nil, err
	case errors.Is(err, MFT.ErrRecordNotInUse):
		stats.notInUse.Add(1)
		return nil, nil
	default:
		logger.MFTRecoverlogger.WithRecord(index).Warning(err.Error())
		stats.skipped.Add(1)
		return nil, nil
	}

	if record.IsExtension() {
		stats.extensions.Add(1)
		return nil, nil
	}

	set, err := scanner.resolver.Resolve(record)
	if err != nil {
		return nil, err
	}
	candidate := scanner.builder.Build(record, set)
	if candidate.Flaws != 0 {
		stats.flawed.Add(1)
	}
	return &candidate, nil
}

// volume reads the label and version from $Volume, leaving them empty when
// the record is gone.
func (scanner *Scanner) volume() Volume {
	var volume Volume
	record, err := scanner.fetcher.FetchRecord(volumeEntry)
	if err != nil {
		logger.MFTRecoverlogger.Info(fmt.Sprintf("$Volume record: %v", err))
		return volume
	}
	set, err := scanner.resolver.Resolve(record)
	if err != nil {
		logger.MFTRecoverlogger.Warning(fmt.Sprintf("$Volume record: %v", err))
		return volume
	}
	if attr := set.FindAttribute(MFTAttributes.VolumeNameType, ""); attr != nil {
		var volName MFTAttributes.VolumeName
		if err := volName.Parse(attr.Content); err == nil {
			volume.Label = volName.Name
		}
	}
	if attr := set.FindAttribute(MFTAttributes.VolumeInformation, ""); attr != nil {
		var volInfo MFTAttributes.VolumeInfo
		if err := volInfo.Parse(attr.Content); err != nil {
			logger.MFTRecoverlogger.Warning(fmt.Sprintf("$VOLUME_INFORMATION: %v", err))
		} else {
			volume.Version, volume.Dirty = volInfo.Version(), volInfo.IsDirty()
		}
	}
	return volume
}

func (scanner *Scanner) indexRange() (uint64, uint64, bool) {
	count := scanner.fetcher.RecordCount()
	if count == 0 {
		return 0, 0, false
	}
	from, to := scanner.cfg.FromEntry, scanner.cfg.ToEntry
	if to == 0 || to >= count {
		to = count - 1
	}
	return from, to, from <= to
}

// locateMFT installs the $MFT run list, read from record 0, from its copy
// in $MFTMirr or, failing both, guessed from the MFT zone.
func (scanner *Scanner) locateMFT() (string, error) {
	runlist, size, err := scanner.mftLayout(func() (*MFT.Record, error) {
		return scanner.fetcher.FetchRecord(0)
	})
	if err == nil {
		scanner.install(runlist, size)
		return SourceRecord0, nil
	}
	if errors.Is(err, MFT.ErrFatalIO) {
		return "", err
	}
	logger.MFTRecoverlogger.Warning(fmt.Sprintf("$MFT record: %v", err))

	if scanner.cfg.UseMirror {
		runlist, size, err = scanner.mftLayout(func() (*MFT.Record, error) {
			return scanner.fetcher.ReadRecordAt(scanner.geometry.MirrorOffset(), 0)
		})
		if err == nil {
			scanner.install(runlist, size)
			return SourceMirror, nil
		}
		logger.MFTRecoverlogger.Warning(fmt.Sprintf("$MFTMirr record: %v", err))
	}

	clusters := scanner.geometry.MFTZone(scanner.cfg.MFTZoneShift)
	scanner.fetcher.SetLayout(MFTAttributes.Runlist{{VCN: 0, LCN: int64(scanner.geometry.MFTLCN), Length: clusters}},
		clusters*uint64(scanner.geometry.ClusterSize))
	return SourceZone, nil
}

// mftLayout reads the unnamed $DATA run list of the $MFT record. Extension
// records of $MFT are fetched through the bootstrap layout.
func (scanner *Scanner) mftLayout(fetch func() (*MFT.Record, error)) (MFTAttributes.Runlist, uint64, error) {
	record, err := fetch()
	if err != nil {
		return nil, 0, err
	}
	if !record.IsInUse() || record.IsExtension() {
		return nil, 0, errors.New("not an in use base record")
	}
	set, err := scanner.resolver.Resolve(record)
	if err != nil {
		return nil, 0, err
	}
	data := set.FindAttribute(MFTAttributes.Data, "")
	if data == nil || !data.Header.IsNoNResident() {
		return nil, 0, errors.New("no non resident $DATA")
	}
	nonresident := data.Header.ATRrecordNoNResident
	runlist := nonresident.RunList
	if len(runlist) == 0 || runlist[0].IsSparse() || nonresident.ActualLength == 0 ||
		!scanner.geometry.ContainsClusters(uint64(runlist[0].LCN), runlist[0].Length) {
		return nil, 0, errors.Errorf("unusable run list %s", runlist)
	}
	if outside := scanner.outsideRuns(runlist); len(outside) > 0 {
		logger.MFTRecoverlogger.Warning(fmt.Sprintf("$MFT runs %s outside the volume, their records are skipped", outside))
	}
	if set.Flaws != 0 {
		logger.MFTRecoverlogger.Warning(fmt.Sprintf("$MFT layout taken from a record with flaws %s", set.Flaws))
	}
	return runlist, nonresident.ActualLength, nil
}

// outsideRuns lists the allocated runs that do not fit in the volume.
func (scanner *Scanner) outsideRuns(runlist MFTAttributes.Runlist) MFTAttributes.Runlist {
	return utils.Filter(runlist, func(run MFTAttributes.Run) bool {
		return !run.IsSparse() && !scanner.geometry.ContainsClusters(uint64(run.LCN), run.Length)
	})
}

// install sets the layout, extended over the MFT zone when asked and the
// table is a single run at the $MFT cluster.
func (scanner *Scanner) install(runlist MFTAttributes.Runlist, size uint64) {
	if scanner.cfg.ScanMFTZone && len(runlist) == 1 && runlist[0].LCN == int64(scanner.geometry.MFTLCN) {
		if zone := scanner.geometry.MFTZone(scanner.cfg.MFTZoneShift); zone > runlist[0].Length {
			logger.MFTRecoverlogger.Info(fmt.Sprintf("extending $MFT scan from %d to %d clusters", runlist[0].Length, zone))
			runlist = MFTAttributes.Runlist{{VCN: 0, LCN: runlist[0].LCN, Length: zone}}
			size = zone * uint64(scanner.geometry.ClusterSize)
		}
	}
	scanner.fetcher.SetLayout(runlist, size)
}
