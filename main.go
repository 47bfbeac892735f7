package main

import (
	"fmt"
	"os"
	"time"

	ntfs "github.com/aarsakian/MFTRecover/FS/NTFS"
	"github.com/aarsakian/MFTRecover/config"
	"github.com/aarsakian/MFTRecover/disk"
	"github.com/aarsakian/MFTRecover/exporter"
	"github.com/aarsakian/MFTRecover/filtermanager"
	"github.com/aarsakian/MFTRecover/filters"
	"github.com/aarsakian/MFTRecover/img"
	FSLogger "github.com/aarsakian/MFTRecover/logger"
	"github.com/aarsakian/MFTRecover/recovery"
	"github.com/aarsakian/MFTRecover/reporter"
	"github.com/aarsakian/MFTRecover/tree"
	"github.com/aarsakian/MFTRecover/utils"
	"github.com/pkg/errors"
	"golang.org/x/text/language"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

func main() {
	app := kingpin.New("mftrecover", "Recover file records from a damaged or partially overwritten NTFS $MFT.")

	image := app.Arg("image", "disk image, device, EWF/VMDK evidence or extracted $MFT").Required().String()
	kind := app.Flag("type", "evidence type, guessed from the extension when omitted").Enum("raw", "ewf", "vmdk", "device", "mft")
	partitionNum := app.Flag("partition", "partition number, the first NTFS volume when 0").Default("0").Int()
	volumeOffset := app.Flag("offset", "byte offset of the NTFS volume, skips partition discovery").Default("-1").Int64()
	recordSize := app.Flag("record-size", "record size of an extracted $MFT").Default("1024").Int()
	listPartitions := app.Flag("list-partitions", "list partitions and exit").Bool()

	configFile := app.Flag("config", "scan configuration, YAML or INI").ExistingFile()
	logactive := app.Flag("log", "enable logging").Bool()
	workers := app.Flag("workers", "number of record workers").Int()
	fromEntry := app.Flag("from", "first record to scan").Uint64()
	toEntry := app.Flag("to", "last record to scan").Uint64()
	scanZone := app.Flag("scan-zone", "extend a contiguous $MFT over the MFT zone").Bool()
	skipMirror := app.Flag("skip-mirror", "do not read the $MFT layout from $MFTMirr").Bool()
	skipProbe := app.Flag("skip-probe", "judge clusters by volume bounds only").Bool()
	locale := app.Flag("locale", "encoding of the locale file names").String()

	deleted := app.Flag("deleted", "show deleted records only").Bool()
	folders := app.Flag("folders", "include directories").Bool()
	names := app.Flag("names", "file names to keep, comma separated").String()
	extensions := app.Flag("extensions", "file extensions to keep, comma separated").String()
	namePath := app.Flag("path", "keep files under this path").String()
	minRecoverable := app.Flag("min-recoverable", "minimum recoverable percentage").Float64()

	showRunList := app.Flag("runlist", "show data runs").Bool()
	showTimestamps := app.Flag("timestamps", "show all timestamps").Bool()
	showFileName := app.Flag("filenames", "show every filename attribute").Bool()
	showFileSize := app.Flag("filesize", "show size and recoverability").Bool()
	showParent := app.Flag("parent", "show parent reference").Bool()
	showPath := app.Flag("showpath", "show reconstructed path").Bool()
	showFlaws := app.Flag("flaws", "show record flaws").Bool()
	showFull := app.Flag("showfull", "show everything").Bool()
	showtree := app.Flag("showtree", "show the directory tree").Bool()
	lang := app.Flag("lang", "language of numbers in the report").Default("en").String()

	location := app.Flag("export", "write the content of the selected files to this directory").String()
	hashFiles := app.Flag("hash", "hash exported files").Enum("md5", "sha1")
	strategy := app.Flag("strategy", "files sharing a name: overwrite or prefix with the record id").Default(exporter.StrategyOverwrite).Enum(exporter.StrategyOverwrite, exporter.StrategyID)

	kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		app.FatalIfError(err, "config")
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *fromEntry > 0 {
		cfg.FromEntry = *fromEntry
	}
	if *toEntry > 0 {
		cfg.ToEntry = *toEntry
	}
	if *scanZone {
		cfg.ScanMFTZone = true
	}
	if *skipMirror {
		cfg.UseMirror = false
	}
	if *skipProbe {
		cfg.ProbeReads = false
	}
	if *locale != "" {
		cfg.Locale = *locale
	}
	if *logactive {
		cfg.Log = true
	}

	if cfg.Log {
		logfilename := cfg.LogFile
		if logfilename == "" {
			logfilename = "logs" + time.Now().Format("2006-01-02T15_04_05") + ".txt"
		}
		FSLogger.InitializeLogger(true, logfilename)
	}

	tag, err := language.Parse(*lang)
	app.FatalIfError(err, "lang")

	evidenceKind := *kind
	if evidenceKind == "" {
		evidenceKind = img.GuessKind(*image)
	}
	hD, err := img.GetHandler(*image, evidenceKind)
	app.FatalIfError(err, "evidence")
	defer hD.CloseHandler()

	physicalDisk := disk.Disk{Handler: hD}
	if evidenceKind == "raw" || evidenceKind == "device" {
		physicalDisk.Path = *image
	}

	if *listPartitions {
		err := physicalDisk.DiscoverPartitions()
		if err != nil && !errors.Is(err, disk.ErrNTFSVol) {
			app.FatalIfError(err, "partitions")
		}
		physicalDisk.ListPartitions(os.Stdout)
		return
	}

	var geometry *ntfs.Geometry
	switch {
	case evidenceKind == "mft":
		geometry, err = ntfs.FileGeometry(hD.GetDiskSize(), *recordSize)
	case *volumeOffset >= 0:
		geometry, err = ntfs.ReadGeometry(hD, *volumeOffset)
	default:
		var volume disk.Volume
		volume, err = physicalDisk.Locate(*partitionNum)
		geometry = volume.Geometry
	}
	app.FatalIfError(err, "volume")

	scanner, err := recovery.NewScanner(hD, geometry, cfg)
	app.FatalIfError(err, "scanner")
	if evidenceKind == "mft" {
		scanner.AssumeContiguous(uint64(hD.GetDiskSize()))
	}
	// a fatal read still leaves the records scanned so far to report
	result, scanErr := scanner.Scan()

	recordsTree := tree.Tree{}
	recordsTree.Build(result.Candidates)
	recordsTree.ResolvePaths()

	flm := filtermanager.FilterManager{}
	flm.Register(filters.FoldersFilter{Include: *folders})
	flm.Register(filters.DeletedFilter{Include: *deleted})
	if *names != "" {
		flm.Register(filters.NameFilter{Filenames: utils.GetEntries(*names)})
	}
	if *extensions != "" {
		flm.Register(filters.ExtensionsFilter{Extensions: utils.GetEntries(*extensions)})
	}
	if *namePath != "" {
		flm.Register(filters.PathFilter{NamePath: *namePath})
	}
	flm.Register(filters.RecoverableFilter{Percent: *minRecoverable})

	rp := reporter.Reporter{
		ShowFileName:   *showFileName,
		ShowTimestamps: *showTimestamps,
		ShowRunList:    *showRunList,
		ShowFileSize:   *showFileSize,
		ShowParent:     *showParent,
		ShowPath:       *showPath,
		ShowFlaws:      *showFlaws,
		ShowFull:       *showFull,
		Language:       tag,
	}

	if *showtree {
		recordsTree.Show(os.Stdout)
	}
	selected := flm.ApplyFilters(result.Candidates)
	rp.Show(os.Stdout, selected)
	rp.Summary(os.Stdout, result)

	if *location != "" {
		if evidenceKind == "mft" {
			app.Fatalf("export needs the volume, an extracted $MFT holds no file content")
		}
		exp := exporter.Exporter{Location: *location, Hash: *hashFiles, Strategy: *strategy, Workers: cfg.Workers}
		exported, err := exp.Export(hD, geometry, selected)
		app.FatalIfError(err, "export")
		for _, file := range exported {
			fmt.Println(file)
		}
	}

	app.FatalIfError(scanErr, "scan")
}
