package attributes

import (
	"fmt"
)

const (
	StandardInformation uint32 = 0x10
	AttributeList       uint32 = 0x20
	FileName            uint32 = 0x30
	ObjectIDType        uint32 = 0x40
	SecurityDescriptor  uint32 = 0x50
	VolumeNameType      uint32 = 0x60
	VolumeInformation   uint32 = 0x70
	Data                uint32 = 0x80
	IndexRoot           uint32 = 0x90
	IndexAllocation     uint32 = 0xa0
	Bitmap              uint32 = 0xb0
	ReparsePoint        uint32 = 0xc0
	EAInformation       uint32 = 0xd0
	EA                  uint32 = 0xe0
	LoggedUtilityStream uint32 = 0x100
	EndOfAttributes     uint32 = 0xffffffff
)

var AttrTypes = map[uint32]string{
	StandardInformation: "Standard Information", AttributeList: "Attribute List",
	FileName: "FileName", ObjectIDType: "Object ID",
	SecurityDescriptor: "Security Descriptor", VolumeNameType: "Volume Name",
	VolumeInformation: "Volume Information", Data: "DATA",
	IndexRoot: "Index Root", IndexAllocation: "Index Allocation",
	Bitmap: "BitMap", ReparsePoint: "Reparse Point",
	EAInformation: "Extended Attribute Information", EA: "Extended Attribute",
	LoggedUtilityStream: "Logged Utility Stream",
	EndOfAttributes:     "Last",
}

// attribute header flags
const (
	FlagCompressed uint16 = 0x0001
	FlagEncrypted  uint16 = 0x4000
	FlagSparse     uint16 = 0x8000
)

const (
	headerLen            = 16
	residentHeaderLen    = 24
	nonResidentHeaderLen = 64
)

type AttributeHeader struct {
	Type                 uint32 //0-4
	AttrLen              uint32 //4-8
	NoNResident          uint8  //8
	Nlen                 uint8  //9
	NameOff              uint16 //10-12 relative to the start of the attribute
	Flags                uint16 //12-14
	ID                   uint16 //14-16
	Name                 string
	ATRrecordResident    *ATRrecordResident
	ATRrecordNoNResident *ATRrecordNoNResident
}

type ATRrecordResident struct {
	ContentSize   uint32 //16-20
	OffsetContent uint16 //20-22
	IdxFlags      uint8  //22
}

type ATRrecordNoNResident struct {
	StartVcn     uint64 //16-24
	LastVcn      uint64 //24-32
	RunOff       uint16 //32-34
	Compusize    uint16 //34-36
	F1           uint32 //36-40
	Length       uint64 //40-48 allocated
	ActualLength uint64 //48-56
	InitLength   uint64 //56-64
	RunList      Runlist
}

// Attribute is one attribute instance lifted out of a record. Content is a
// copy of the resident value; Incomplete is set when the run list of a non
// resident attribute could not be decoded to its end.
type Attribute struct {
	Header     AttributeHeader
	Content    []byte
	Entry      uint64 // record holding the instance
	Incomplete bool
}

func (attrHeader AttributeHeader) GetType() string {
	attrType, ok := AttrTypes[attrHeader.Type]
	if ok {
		return attrType
	}
	return fmt.Sprintf("%x", attrHeader.Type)
}

func (attrHeader AttributeHeader) IsLast() bool {
	return attrHeader.Type == EndOfAttributes
}

func (attrHeader AttributeHeader) IsFileName() bool {
	return attrHeader.Type == FileName
}

func (attrHeader AttributeHeader) IsData() bool {
	return attrHeader.Type == Data
}

func (attrHeader AttributeHeader) IsAttrList() bool {
	return attrHeader.Type == AttributeList
}

func (attrHeader AttributeHeader) IsStdInfo() bool {
	return attrHeader.Type == StandardInformation
}

func (attrHeader AttributeHeader) IsNoNResident() bool {
	return attrHeader.NoNResident == 1
}

func (attrHeader AttributeHeader) IsCompressed() bool {
	return attrHeader.Flags&FlagCompressed != 0
}

func (attrHeader AttributeHeader) IsEncrypted() bool {
	return attrHeader.Flags&FlagEncrypted != 0
}

func (attrHeader AttributeHeader) IsSparse() bool {
	return attrHeader.Flags&FlagSparse != 0
}

func (attr Attribute) StartVCN() uint64 {
	if attr.Header.ATRrecordNoNResident == nil {
		return 0
	}
	return attr.Header.ATRrecordNoNResident.StartVcn
}

// Matches tells whether attr is the instance an attribute list entry names.
func (attr Attribute) Matches(typ uint32, name string, startVCN uint64) bool {
	return attr.Header.Type == typ && attr.Header.Name == name && attr.StartVCN() == startVCN
}

func (attr Attribute) String() string {
	if attr.Header.IsNoNResident() {
		nonres := attr.Header.ATRrecordNoNResident
		return fmt.Sprintf("%s %q vcn %d-%d runs %d", attr.Header.GetType(), attr.Header.Name,
			nonres.StartVcn, nonres.LastVcn, len(nonres.RunList))
	}
	return fmt.Sprintf("%s %q resident %d bytes", attr.Header.GetType(), attr.Header.Name, len(attr.Content))
}
