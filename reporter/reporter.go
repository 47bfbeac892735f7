package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/aarsakian/MFTRecover/recovery"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const timeLayout = "2006-01-02T15:04:05"

type Reporter struct {
	ShowFileName   bool
	ShowTimestamps bool
	ShowRunList    bool
	ShowFileSize   bool
	ShowStreams    bool
	ShowParent     bool
	ShowPath       bool
	ShowFlaws      bool
	ShowFull       bool
	Language       language.Tag
}

func (rp Reporter) Show(out io.Writer, candidates recovery.Candidates) {
	p := message.NewPrinter(rp.Language)
	for _, candidate := range candidates {
		state := "allocated"
		if !candidate.InUse {
			state = "deleted"
		}
		kind := "file"
		if candidate.IsDirectory {
			kind = "dir"
		}
		p.Fprintf(out, "%d-%d %s %s %s", candidate.Index, candidate.Seq, kind, state, nameOrDash(candidate.PreferredName))

		if rp.ShowPath || rp.ShowFull {
			fmt.Fprintf(out, " path %s", nameOrDash(candidate.Path))
		}
		if rp.ShowParent || rp.ShowFull {
			if preferred := candidate.Preferred(); preferred != nil {
				fmt.Fprintf(out, " parent %d-%d %s", preferred.ParentRef, preferred.ParentSeq, nameOrDash(candidate.PreferredParentName))
			}
		}
		if rp.ShowFileSize || rp.ShowFull {
			p.Fprintf(out, " size %d recoverable %.1f%%", candidate.MaxSize, candidate.Recoverable())
		}
		if rp.ShowFlaws || rp.ShowFull {
			fmt.Fprintf(out, " flaws %s", candidate.Flaws)
			if candidate.SpansRecords {
				fmt.Fprintf(out, " extents %v", candidate.Link.Extents)
			}
		}
		if candidate.Reparse != "" && (rp.ShowPath || rp.ShowFull) {
			fmt.Fprintf(out, " reparse %s", candidate.Reparse)
		}
		if candidate.ObjectID != "" && rp.ShowFull {
			fmt.Fprintf(out, " objid %s", candidate.ObjectID)
		}
		fmt.Fprintln(out)

		if rp.ShowFileName || rp.ShowFull {
			for _, filename := range candidate.Filenames {
				fmt.Fprintf(out, "\t%s %s\n", filename.NamespaceName(), filename.Name)
			}
		}
		if rp.ShowTimestamps || rp.ShowFull {
			fmt.Fprintf(out, "\tmodified %s\n", candidate.Modified.Format(timeLayout))
			for _, filename := range candidate.Filenames {
				fmt.Fprintf(out, "\tFN %s c %s m %s mftm %s a %s\n", filename.NamespaceName(),
					filename.Created.Format(timeLayout), filename.Modified.Format(timeLayout),
					filename.MFTModified.Format(timeLayout), filename.Accessed.Format(timeLayout))
			}
		}
		if rp.ShowStreams || rp.ShowRunList || rp.ShowFull {
			for _, stream := range candidate.Streams {
				fmt.Fprintf(out, "\t%s\n", stream)
				if rp.ShowRunList || rp.ShowFull {
					for _, run := range stream.Runs {
						p.Fprintf(out, "\t\tvcn %d lcn %d len %d cl\n", run.VCN, run.LCN, run.Length)
					}
				}
			}
		}
	}
}

// Summary prints the scan counters.
func (rp Reporter) Summary(out io.Writer, result recovery.Result) {
	p := message.NewPrinter(rp.Language)
	stats := result.Stats
	if volume := result.Volume; volume.Label != "" || volume.Version != "" {
		state := "clean"
		if volume.Dirty {
			state = "dirty"
		}
		fmt.Fprintf(out, "volume %q NTFS %s %s\n", volume.Label, volume.Version, state)
	}
	p.Fprintf(out, "$MFT layout from %s, %d runs\n", result.MFTSource, len(result.Layout))
	if result.OutsideRuns > 0 {
		p.Fprintf(out, "%d $MFT runs outside the volume\n", result.OutsideRuns)
	}
	p.Fprintf(out, "scanned %d records: %d candidates, %d not in use, %d extensions, %d skipped, %d with flaws\n",
		stats.Scanned, stats.Candidates, stats.NotInUse, stats.Extensions, stats.Skipped, stats.Flawed)
}

func nameOrDash(name string) string {
	if strings.TrimSpace(name) == "" {
		return "-"
	}
	return name
}
