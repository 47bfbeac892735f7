package reporter

import (
	"bytes"
	"testing"
	"time"

	"github.com/aarsakian/MFTRecover/FS/NTFS/MFT"
	MFTAttributes "github.com/aarsakian/MFTRecover/FS/NTFS/MFT/attributes"
	"github.com/aarsakian/MFTRecover/recovery"
	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func sample() recovery.Candidates {
	stamp := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	return recovery.Candidates{{
		Index:               42,
		Seq:                 3,
		PreferredName:       "big.vhd",
		PreferredParentName: "images",
		Path:                "/images/big.vhd",
		MaxSize:             16000,
		InUse:               false,
		Modified:            stamp,
		Flaws:               MFT.PartiallyRecovered,
		SpansRecords:        true,
		Reparse:             "symlink -> C:\\data",
		ObjectID:            "0f6c6a2e-1b3a-4d5e-8f90-123456789abc",
		Link:                MFT.Base{Extents: []uint64{43}},
		Filenames: []recovery.Filename{{
			Name: "big.vhd", Namespace: MFTAttributes.Win32, ParentRef: 7, ParentSeq: 1,
			Created: stamp, Modified: stamp, MFTModified: stamp, Accessed: stamp,
		}},
		Streams: []recovery.Stream{{
			Size: 16000, Recoverable: 50,
			Runs: MFTAttributes.Runlist{{VCN: 0, LCN: 300, Length: 2}, {VCN: 2, LCN: MFTAttributes.SparseLCN, Length: 2}},
		}},
	}}
}

func TestShowMinimal(t *testing.T) {
	var out bytes.Buffer
	Reporter{Language: language.English}.Show(&out, sample())
	assert.Equal(t, "42-3 file deleted big.vhd\n", out.String())
}

func TestShowFull(t *testing.T) {
	var out bytes.Buffer
	Reporter{ShowFull: true, Language: language.English}.Show(&out, sample())
	report := out.String()

	assert.Contains(t, report, "path /images/big.vhd")
	assert.Contains(t, report, "parent 7-1 images")
	assert.Contains(t, report, "size 16,000 recoverable 50.0%")
	assert.Contains(t, report, "flaws partial extents [43]")
	assert.Contains(t, report, "reparse symlink -> C:\\data objid 0f6c6a2e-1b3a-4d5e-8f90-123456789abc")
	assert.Contains(t, report, "\tWin32 big.vhd\n")
	assert.Contains(t, report, "\tmodified 2020-01-01T00:00:00\n")
	assert.Contains(t, report, "\t\tvcn 0 lcn 300 len 2 cl\n")
	assert.Contains(t, report, "\t\tvcn 2 lcn -1 len 2 cl\n")
}

func TestSummary(t *testing.T) {
	var out bytes.Buffer
	Reporter{Language: language.English}.Summary(&out, recovery.Result{
		MFTSource: recovery.SourceMirror,
		Layout:    MFTAttributes.Runlist{{VCN: 0, LCN: 16, Length: 64}},
		Stats:     recovery.Stats{Scanned: 1200, Candidates: 900, NotInUse: 290, Extensions: 10},
	})
	assert.Equal(t, "$MFT layout from $MFTMirr, 1 runs\n"+
		"scanned 1,200 records: 900 candidates, 290 not in use, 10 extensions, 0 skipped, 0 with flaws\n", out.String())
}

func TestSummaryVolume(t *testing.T) {
	var out bytes.Buffer
	Reporter{Language: language.English}.Summary(&out, recovery.Result{
		MFTSource: recovery.SourceRecord0,
		Volume:    recovery.Volume{Label: "DATA", Version: "3.1", Dirty: true},
	})
	assert.Contains(t, out.String(), "volume \"DATA\" NTFS 3.1 dirty\n")
}
