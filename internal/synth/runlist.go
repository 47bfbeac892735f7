package synth

// SparseLCN marks a hole in Run.LCN.
const SparseLCN int64 = -1

// Run is an extent with an absolute starting LCN.
type Run struct {
	LCN    int64
	Length uint64
}

// signedWidth is the smallest number of bytes holding v as a two's
// complement little endian integer.
func signedWidth(v int64) int {
	for width := 1; width < 8; width++ {
		limit := int64(1) << (8*width - 1)
		if v >= -limit && v < limit {
			return width
		}
	}
	return 8
}

func putSigned(buf []byte, v int64, width int) []byte {
	for idx := 0; idx < width; idx++ {
		buf = append(buf, byte(v>>(8*idx)))
	}
	return buf
}

// EncodeRunlist packs runs the way NTFS does: LCNs become deltas from the
// previous allocated run, holes carry no offset field, and a zero byte
// terminates the list.
func EncodeRunlist(runs []Run) []byte {
	var buf []byte
	prevLCN := int64(0)
	for _, run := range runs {
		lengthWidth := signedWidth(int64(run.Length))
		if run.LCN == SparseLCN {
			buf = append(buf, byte(lengthWidth))
			buf = putSigned(buf, int64(run.Length), lengthWidth)
			continue
		}
		delta := run.LCN - prevLCN
		offsetWidth := signedWidth(delta)
		buf = append(buf, byte(offsetWidth<<4|lengthWidth))
		buf = putSigned(buf, int64(run.Length), lengthWidth)
		buf = putSigned(buf, delta, offsetWidth)
		prevLCN = run.LCN
	}
	return append(buf, 0)
}
