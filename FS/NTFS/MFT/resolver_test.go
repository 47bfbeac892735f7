package MFT

import (
	"testing"

	MFTAttributes "github.com/aarsakian/MFTRecover/FS/NTFS/MFT/attributes"
	"github.com/aarsakian/MFTRecover/img"
	"github.com/aarsakian/MFTRecover/internal/synth"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseEntry = 40

func baseWithList(entries ...[]byte) *synth.Record {
	var value []byte
	for _, entry := range entries {
		value = append(value, entry...)
	}
	base := synth.NewRecord(baseEntry, 1024, 512)
	base.Seq = 3
	base.AddResident(synth.StandardInformation, "", synth.StandardInformationValue(1, 2, 3, 4))
	base.AddResident(synth.AttributeList, "", value)
	base.AddResident(synth.FileName, "", synth.FileNameValue(5, 5, "big.vhd", 1, 10, 16000))
	return base
}

func extensionWith(entry uint32, attr synth.NonResident) *synth.Record {
	extension := synth.NewRecord(entry, 1024, 512)
	extension.BaseRef = synth.Reference(baseEntry, 3)
	extension.AddNonResident(attr)
	return extension
}

func resolve(t *testing.T, image *synth.Image) AttributeSet {
	t.Helper()
	fetcher := NewFetcher(img.NewMemoryReader(image.Bytes()), geometryFor(t, image.Layout))
	base, err := fetcher.FetchRecord(baseEntry)
	require.NoError(t, err)
	set, err := NewResolver(fetcher).Resolve(base)
	require.NoError(t, err)
	return set
}

// dyingSource loses the volume when record failAt is read.
type dyingSource struct {
	*Fetcher
	failAt uint64
}

func (source dyingSource) FetchRecord(index uint64) (*Record, error) {
	if index == source.failAt {
		return nil, errors.Wrap(ErrFatalIO, "device removed")
	}
	return source.Fetcher.FetchRecord(index)
}

func splitDataImage() *synth.Image {
	layout := synth.SmallLayout()
	image := synth.NewImage(layout)

	base := baseWithList(
		synth.AttributeListEntry(synth.StandardInformation, "", 0, baseEntry, 3, 0),
		synth.AttributeListEntry(synth.FileName, "", 0, baseEntry, 3, 2),
		synth.AttributeListEntry(synth.Data, "", 0, 41, 1, 0),
		synth.AttributeListEntry(synth.Data, "", 2, 42, 1, 0),
	)
	image.PutRecord(layout.MFTLCN, baseEntry, base.Bytes())
	image.PutRecord(layout.MFTLCN, 41, extensionWith(41, synth.NonResident{
		Type: synth.Data, StartVCN: 0, LastVCN: 3,
		AllocatedSize: 4 * 4096, DataSize: 16000, InitializedSize: 16000,
		Runs: synth.EncodeRunlist([]synth.Run{{LCN: 300, Length: 2}}),
	}).Bytes())
	image.PutRecord(layout.MFTLCN, 42, extensionWith(42, synth.NonResident{
		Type: synth.Data, StartVCN: 2, LastVCN: 3,
		Runs: synth.EncodeRunlist([]synth.Run{{LCN: 500, Length: 2}}),
	}).Bytes())
	return image
}

func TestResolveSplitData(t *testing.T) {
	set := resolve(t, splitDataImage())

	assert.Equal(t, Flaw(0), set.Flaws)
	assert.Equal(t, []uint64{41, 42}, set.Link.Extents)
	assert.Len(t, set.FindAttributes(MFTAttributes.StandardInformation), 1)
	assert.Len(t, set.FindAttributes(MFTAttributes.FileName), 1)
	assert.Empty(t, set.FindAttributes(MFTAttributes.AttributeList))

	datas := set.FindAttributes(MFTAttributes.Data)
	require.Len(t, datas, 1)
	nonresident := datas[0].Header.ATRrecordNoNResident
	assert.Equal(t, MFTAttributes.Runlist{
		{VCN: 0, LCN: 300, Length: 2},
		{VCN: 2, LCN: 500, Length: 2},
	}, nonresident.RunList)
	assert.True(t, nonresident.RunList.IsContiguous(0))
	assert.Equal(t, uint64(3), nonresident.LastVcn)
	assert.Equal(t, uint64(16000), nonresident.ActualLength)
}

func TestResolveMissingExtension(t *testing.T) {
	layout := synth.SmallLayout()
	image := synth.NewImage(layout)
	base := baseWithList(
		synth.AttributeListEntry(synth.StandardInformation, "", 0, baseEntry, 3, 0),
		synth.AttributeListEntry(synth.Data, "", 0, 999999, 1, 0),
	)
	image.PutRecord(layout.MFTLCN, baseEntry, base.Bytes())

	set := resolve(t, image)

	assert.True(t, set.Flaws.Has(PartiallyRecovered))
	assert.Len(t, set.FindAttributes(MFTAttributes.StandardInformation), 1)
	assert.Len(t, set.FindAttributes(MFTAttributes.FileName), 1)
	assert.Empty(t, set.FindAttributes(MFTAttributes.Data))
	assert.Equal(t, []uint64{999999}, set.Link.Extents)
}

func TestResolveForeignExtension(t *testing.T) {
	image := splitDataImage()
	stranger := extensionWith(42, synth.NonResident{Type: synth.Data, StartVCN: 2, LastVCN: 3,
		Runs: synth.EncodeRunlist([]synth.Run{{LCN: 500, Length: 2}})})
	stranger.BaseRef = synth.Reference(77, 1)
	image.PutRecord(image.Layout.MFTLCN, 42, stranger.Bytes())

	set := resolve(t, image)

	assert.True(t, set.Flaws.Has(PartiallyRecovered))
	datas := set.FindAttributes(MFTAttributes.Data)
	require.Len(t, datas, 1)
	assert.Equal(t, MFTAttributes.Runlist{{VCN: 0, LCN: 300, Length: 2}}, datas[0].Header.ATRrecordNoNResident.RunList)
}

func TestResolveStopsOnFatalIO(t *testing.T) {
	image := splitDataImage()
	fetcher := NewFetcher(img.NewMemoryReader(image.Bytes()), geometryFor(t, image.Layout))
	base, err := fetcher.FetchRecord(baseEntry)
	require.NoError(t, err)

	_, err = NewResolver(dyingSource{Fetcher: fetcher, failAt: 42}).Resolve(base)
	assert.ErrorIs(t, err, ErrFatalIO)
}

func TestResolveUnlistedAttribute(t *testing.T) {
	image := splitDataImage()
	base := baseWithList(
		synth.AttributeListEntry(synth.Data, "", 0, 41, 1, 0),
		synth.AttributeListEntry(synth.Data, "$SRAT", 0, 41, 1, 0),
	)
	image.PutRecord(image.Layout.MFTLCN, baseEntry, base.Bytes())

	set := resolve(t, image)
	assert.True(t, set.Flaws.Has(PartiallyRecovered))
	assert.Len(t, set.FindAttributes(MFTAttributes.Data), 1)
	// the extent at vcn 2 was never listed
	assert.Equal(t, uint64(2), set.FindAttribute(MFTAttributes.Data, "").Header.ATRrecordNoNResident.RunList.NextVCN())
}

func TestResolveNonResidentAttributeList(t *testing.T) {
	image := splitDataImage()
	var value []byte
	for _, entry := range [][]byte{
		synth.AttributeListEntry(synth.Data, "", 0, 41, 1, 0),
		synth.AttributeListEntry(synth.Data, "", 2, 42, 1, 0),
	} {
		value = append(value, entry...)
	}
	image.WriteAt(image.ClusterOffset(700), value)

	base := synth.NewRecord(baseEntry, 1024, 512)
	base.Seq = 3
	base.AddNonResident(synth.NonResident{
		Type: synth.AttributeList, LastVCN: 0,
		AllocatedSize: 4096, DataSize: uint64(len(value)), InitializedSize: uint64(len(value)),
		Runs: synth.EncodeRunlist([]synth.Run{{LCN: 700, Length: 1}}),
	})
	image.PutRecord(image.Layout.MFTLCN, baseEntry, base.Bytes())

	set := resolve(t, image)
	assert.Equal(t, Flaw(0), set.Flaws)
	require.Len(t, set.Attributes, 1)
	assert.Equal(t, uint64(4), set.Attributes[0].Header.ATRrecordNoNResident.RunList.TotalClusters())
}

func TestResolveTruncatedBase(t *testing.T) {
	layout := synth.SmallLayout()
	image := synth.NewImage(layout)
	base := synth.NewRecord(baseEntry, 1024, 512)
	base.AddResident(synth.StandardInformation, "", synth.StandardInformationValue(1, 2, 3, 4))
	base.AddRaw([]byte{0x30, 0, 0, 0, 0x13, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	image.PutRecord(layout.MFTLCN, baseEntry, base.Bytes())

	set := resolve(t, image)
	assert.True(t, set.Flaws.Has(TruncatedAttributeList))
	assert.Len(t, set.Attributes, 1)
}
