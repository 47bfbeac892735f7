package attributes

import (
	"fmt"

	"github.com/aarsakian/MFTRecover/utils"
	"github.com/pkg/errors"
)

// SparseLCN marks a run with no clusters behind it.
const SparseLCN int64 = -1

var ErrIncompleteRunlist = errors.New("incomplete run list")

type Run struct {
	VCN    uint64
	LCN    int64
	Length uint64
}

func (run Run) IsSparse() bool {
	return run.LCN == SparseLCN
}

func (run Run) String() string {
	if run.IsSparse() {
		return fmt.Sprintf("vcn %d sparse len %d", run.VCN, run.Length)
	}
	return fmt.Sprintf("vcn %d lcn %d len %d", run.VCN, run.LCN, run.Length)
}

// Runlist maps consecutive VCN ranges to absolute LCNs.
type Runlist []Run

// DecodeRunlist unpacks a mapping pairs array. Each run starts with a header
// byte, low nibble the width of the length field and high nibble the width
// of the signed LCN delta; a zero width delta is a hole. Decoding stops at a
// zero header or at the end of data. On a malformed run the runs decoded so
// far are returned with ErrIncompleteRunlist.
func DecodeRunlist(data []byte, startVCN uint64) (Runlist, error) {
	var runlist Runlist
	vcn := startVCN
	lcn := int64(0)

	for pos := 0; pos < len(data); {
		header := data[pos]
		if header == 0 {
			return runlist, nil
		}
		lengthB, offsetB := int(header&0x0f), int(header>>4)
		if lengthB == 0 || lengthB > 8 || offsetB > 8 {
			return runlist, errors.Wrapf(ErrIncompleteRunlist, "bad header %#x at %d", header, pos)
		}
		if pos+1+lengthB+offsetB > len(data) {
			return runlist, errors.Wrapf(ErrIncompleteRunlist, "run at %d needs %d bytes, %d left",
				pos, 1+lengthB+offsetB, len(data)-pos)
		}

		length := utils.ReadEndianInt(data[pos+1 : pos+1+lengthB])
		if length <= 0 {
			return runlist, errors.Wrapf(ErrIncompleteRunlist, "run length %d at %d", length, pos)
		}
		run := Run{VCN: vcn, LCN: SparseLCN, Length: uint64(length)}
		if offsetB != 0 {
			lcn += utils.ReadEndianInt(data[pos+1+lengthB : pos+1+lengthB+offsetB])
			if lcn < 0 {
				return runlist, errors.Wrapf(ErrIncompleteRunlist, "negative lcn %d at %d", lcn, pos)
			}
			run.LCN = lcn
		}

		runlist = append(runlist, run)
		vcn += run.Length
		pos += 1 + lengthB + offsetB
	}
	return runlist, nil
}

// TotalClusters counts clusters including holes.
func (runlist Runlist) TotalClusters() uint64 {
	total := uint64(0)
	for _, run := range runlist {
		total += run.Length
	}
	return total
}

// AllocatedClusters counts clusters backed by disk.
func (runlist Runlist) AllocatedClusters() uint64 {
	total := uint64(0)
	for _, run := range runlist {
		if !run.IsSparse() {
			total += run.Length
		}
	}
	return total
}

// NextVCN is the first VCN after the last run.
func (runlist Runlist) NextVCN() uint64 {
	if len(runlist) == 0 {
		return 0
	}
	last := runlist[len(runlist)-1]
	return last.VCN + last.Length
}

// IsContiguous reports whether the runs cover VCNs from start without gaps
// or overlaps.
func (runlist Runlist) IsContiguous(start uint64) bool {
	vcn := start
	for _, run := range runlist {
		if run.VCN != vcn {
			return false
		}
		vcn += run.Length
	}
	return true
}

// Lookup maps a VCN to its LCN and the clusters left in that run.
func (runlist Runlist) Lookup(vcn uint64) (int64, uint64, bool) {
	for _, run := range runlist {
		if vcn >= run.VCN && vcn < run.VCN+run.Length {
			if run.IsSparse() {
				return SparseLCN, run.VCN + run.Length - vcn, true
			}
			return run.LCN + int64(vcn-run.VCN), run.VCN + run.Length - vcn, true
		}
	}
	return 0, 0, false
}
