package MFT

// Linkage tells a base record, which may own extension records, from an
// extension record pointing back to its base.
type Linkage interface {
	IsBase() bool
}

type Base struct {
	Extents []uint64
}

type Extent struct {
	Base uint64
	Seq  uint16
}

func (Base) IsBase() bool { return true }

func (Extent) IsBase() bool { return false }

func (base *Base) add(entry uint64) {
	for _, extent := range base.Extents {
		if extent == entry {
			return
		}
	}
	base.Extents = append(base.Extents, entry)
}

func (record Record) Linkage() Linkage {
	if record.IsExtension() {
		return Extent{Base: record.BaseRecord(), Seq: record.BaseSeq()}
	}
	return Base{}
}
