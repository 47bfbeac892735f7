package attributes

import (
	"testing"

	"github.com/aarsakian/MFTRecover/internal/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRunlistSingleRun(t *testing.T) {
	runlist, err := DecodeRunlist([]byte{0x11, 0x20, 0x05, 0x00}, 0)
	require.NoError(t, err)
	assert.Equal(t, Runlist{{VCN: 0, LCN: 5, Length: 32}}, runlist)
}

func TestDecodeRunlistOffsetWiderThanBuffer(t *testing.T) {
	// 0x31: one length byte, three offset bytes, only three bytes follow
	runlist, err := DecodeRunlist([]byte{0x31, 0x20, 0x00, 0x00}, 0)
	assert.ErrorIs(t, err, ErrIncompleteRunlist)
	assert.Empty(t, runlist)
}

func TestDecodeRunlist(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		startVCN   uint64
		want       Runlist
		incomplete bool
	}{
		{
			name: "negative delta",
			data: []byte{0x21, 0x10, 0x00, 0x01, 0x11, 0x08, 0xf0, 0x00},
			want: Runlist{{VCN: 0, LCN: 256, Length: 16}, {VCN: 16, LCN: 240, Length: 8}},
		},
		{
			name: "sparse run keeps lcn base",
			data: []byte{0x11, 0x04, 0x10, 0x01, 0x08, 0x11, 0x04, 0x02, 0x00},
			want: Runlist{{VCN: 0, LCN: 16, Length: 4}, {VCN: 4, LCN: SparseLCN, Length: 8}, {VCN: 12, LCN: 18, Length: 4}},
		},
		{
			name:     "extension extent starts at its vcn",
			data:     []byte{0x11, 0x02, 0x40, 0x00},
			startVCN: 100,
			want:     Runlist{{VCN: 100, LCN: 64, Length: 2}},
		},
		{
			name: "no terminator",
			data: []byte{0x11, 0x02, 0x40},
			want: Runlist{{VCN: 0, LCN: 64, Length: 2}},
		},
		{
			name:       "negative absolute lcn",
			data:       []byte{0x11, 0x02, 0x04, 0x11, 0x02, 0xf0, 0x00},
			want:       Runlist{{VCN: 0, LCN: 4, Length: 2}},
			incomplete: true,
		},
		{
			name:       "zero length field width",
			data:       []byte{0x11, 0x02, 0x04, 0x10, 0x02, 0x00},
			want:       Runlist{{VCN: 0, LCN: 4, Length: 2}},
			incomplete: true,
		},
		{
			name:       "zero run length",
			data:       []byte{0x11, 0x00, 0x04, 0x00},
			incomplete: true,
		},
		{
			name:       "field wider than eight bytes",
			data:       []byte{0x91, 0x01, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0},
			incomplete: true,
		},
		{
			name: "empty",
			data: []byte{0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runlist, err := DecodeRunlist(tt.data, tt.startVCN)
			if tt.incomplete {
				assert.ErrorIs(t, err, ErrIncompleteRunlist)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, runlist)
		})
	}
}

func TestRunlistRoundTrip(t *testing.T) {
	runs := []synth.Run{
		{LCN: 0x10, Length: 1},
		{LCN: synth.SparseLCN, Length: 0x80},
		{LCN: 0x123456, Length: 0x7fff},
		{LCN: 0x20, Length: 0x10000},
		{LCN: synth.SparseLCN, Length: 3},
		{LCN: 0x1_0000_0000, Length: 42},
		{LCN: 1, Length: 1},
	}

	runlist, err := DecodeRunlist(synth.EncodeRunlist(runs), 0)
	require.NoError(t, err)
	require.Len(t, runlist, len(runs))

	vcn := uint64(0)
	for idx, run := range runs {
		assert.Equal(t, vcn, runlist[idx].VCN, "run %d", idx)
		assert.Equal(t, run.LCN, runlist[idx].LCN, "run %d", idx)
		assert.Equal(t, run.Length, runlist[idx].Length, "run %d", idx)
		vcn += run.Length
	}
	assert.True(t, runlist.IsContiguous(0))
	assert.Equal(t, vcn, runlist.NextVCN())
}

func TestRunlistHelpers(t *testing.T) {
	runlist := Runlist{{VCN: 0, LCN: 100, Length: 4}, {VCN: 4, LCN: SparseLCN, Length: 4}, {VCN: 8, LCN: 10, Length: 2}}

	assert.Equal(t, uint64(10), runlist.TotalClusters())
	assert.Equal(t, uint64(6), runlist.AllocatedClusters())
	assert.Equal(t, uint64(10), runlist.NextVCN())
	assert.True(t, runlist.IsContiguous(0))
	assert.False(t, runlist.IsContiguous(1))

	lcn, left, ok := runlist.Lookup(2)
	assert.True(t, ok)
	assert.Equal(t, int64(102), lcn)
	assert.Equal(t, uint64(2), left)

	lcn, _, ok = runlist.Lookup(5)
	assert.True(t, ok)
	assert.Equal(t, SparseLCN, lcn)

	_, _, ok = runlist.Lookup(10)
	assert.False(t, ok)

	gap := Runlist{{VCN: 0, LCN: 1, Length: 2}, {VCN: 3, LCN: 9, Length: 1}}
	assert.False(t, gap.IsContiguous(0))
}
