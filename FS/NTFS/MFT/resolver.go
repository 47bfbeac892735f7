package MFT

import (
	"fmt"
	"sort"

	MFTAttributes "github.com/aarsakian/MFTRecover/FS/NTFS/MFT/attributes"
	"github.com/aarsakian/MFTRecover/logger"
	"github.com/pkg/errors"
)

// RecordSource is what attribute list resolution needs from the volume.
type RecordSource interface {
	FetchRecord(index uint64) (*Record, error)
	ReadRunlist(runlist MFTAttributes.Runlist, size uint64) ([]byte, error)
}

// AttributeSet is the logical attribute set of one file after extension
// records are merged in.
type AttributeSet struct {
	Attributes []MFTAttributes.Attribute
	Flaws      Flaw
	Link       Base
}

func (set AttributeSet) FindAttributes(attrType uint32) []MFTAttributes.Attribute {
	var found []MFTAttributes.Attribute
	for _, attr := range set.Attributes {
		if attr.Header.Type == attrType {
			found = append(found, attr)
		}
	}
	return found
}

func (set AttributeSet) FindAttribute(attrType uint32, name string) *MFTAttributes.Attribute {
	for idx := range set.Attributes {
		if set.Attributes[idx].Header.Type == attrType && set.Attributes[idx].Header.Name == name {
			return &set.Attributes[idx]
		}
	}
	return nil
}

type Resolver struct {
	source RecordSource
}

func NewResolver(source RecordSource) *Resolver {
	return &Resolver{source: source}
}

type extensionRecord struct {
	record     *Record
	attributes []MFTAttributes.Attribute
	truncated  bool
	err        error
}

// Resolve walks base and, when it holds an attribute list, pulls the listed
// attributes out of their extension records. Split non resident attributes
// are joined into one run list. Damaged or missing extensions only degrade
// the set; the error is ErrFatalIO, when the volume stopped answering.
func (resolver Resolver) Resolve(base *Record) (AttributeSet, error) {
	msgLogger := logger.MFTRecoverlogger.WithRecord(base.Index)

	set := AttributeSet{Flaws: base.Flaws}
	walker := base.Walker()
	local := walker.Collect()
	if walker.Truncated() {
		set.Flaws |= TruncatedAttributeList
	}

	var attrListAttr *MFTAttributes.Attribute
	for idx := range local {
		if local[idx].Header.IsAttrList() && attrListAttr == nil {
			attrListAttr = &local[idx]
			continue
		}
		set.Attributes = append(set.Attributes, local[idx])
	}

	if attrListAttr != nil {
		if err := resolver.resolveList(base, attrListAttr, &set); err != nil {
			return set, err
		}
	}

	set.Attributes = resolver.merge(set.Attributes, &set.Flaws)
	for _, attr := range set.Attributes {
		if attr.Incomplete {
			set.Flaws |= IncompleteRunlist
		}
	}
	if set.Flaws != base.Flaws {
		msgLogger.Info(fmt.Sprintf("resolved %d attributes flaws %s", len(set.Attributes), set.Flaws))
	}
	return set, nil
}

func (resolver Resolver) listValue(attr *MFTAttributes.Attribute) ([]byte, error) {
	if !attr.Header.IsNoNResident() {
		return attr.Content, nil
	}
	nonresident := attr.Header.ATRrecordNoNResident
	if attr.Incomplete {
		return nil, errors.Wrap(MFTAttributes.ErrIncompleteRunlist, "attribute list")
	}
	return resolver.source.ReadRunlist(nonresident.RunList, nonresident.ActualLength)
}

func (resolver Resolver) resolveList(base *Record, attrListAttr *MFTAttributes.Attribute, set *AttributeSet) error {
	msgLogger := logger.MFTRecoverlogger.WithRecord(base.Index)

	value, err := resolver.listValue(attrListAttr)
	if errors.Is(err, ErrFatalIO) {
		return err
	}
	if err != nil {
		msgLogger.Warning(fmt.Sprintf("attribute list unreadable: %v", err))
		set.Flaws |= PartiallyRecovered
		return nil
	}
	var attrList MFTAttributes.AttributeListEntries
	if err := attrList.Parse(value); err != nil {
		msgLogger.Warning(err.Error())
		set.Flaws |= TruncatedAttributeList
	}

	extensions := make(map[uint64]*extensionRecord)
	for _, entry := range attrList.Entries {
		if entry.ParRef == base.Index {
			continue
		}
		set.Link.add(entry.ParRef)

		extension, seen := extensions[entry.ParRef]
		if !seen {
			extension = resolver.fetchExtension(base, entry.ParRef)
			extensions[entry.ParRef] = extension
			if errors.Is(extension.err, ErrFatalIO) {
				return extension.err
			}
			if extension.err != nil {
				msgLogger.Warning(extension.err.Error())
			} else {
				set.Flaws |= extension.record.Flaws & (FixupMismatch | MalformedRecord)
				if extension.truncated {
					set.Flaws |= TruncatedAttributeList
				}
			}
		}
		if extension.err != nil {
			set.Flaws |= PartiallyRecovered
			continue
		}

		found := false
		for _, attr := range extension.attributes {
			if attr.Matches(entry.Type, entry.Name, entry.StartVcn) {
				set.Attributes = append(set.Attributes, attr)
				found = true
				break
			}
		}
		if !found {
			msgLogger.Warning(fmt.Sprintf("%s not found in its record", entry))
			set.Flaws |= PartiallyRecovered
		}
	}
	return nil
}

func (resolver Resolver) fetchExtension(base *Record, entry uint64) *extensionRecord {
	record, err := resolver.source.FetchRecord(entry)
	if err != nil {
		return &extensionRecord{err: errors.Wrapf(err, "extension record %d", entry)}
	}
	if record.BaseRecord() != base.Index {
		return &extensionRecord{err: errors.Errorf("extension record %d belongs to %d", entry, record.BaseRecord())}
	}
	walker := record.Walker()
	return &extensionRecord{record: record, attributes: walker.Collect(), truncated: walker.Truncated()}
}

type attrKey struct {
	attrType uint32
	name     string
}

// merge joins non resident extents of the same attribute in VCN order, in
// place of the first extent met. The extent starting at VCN 0 carries the
// sizes of the whole attribute.
func (resolver Resolver) merge(attrs []MFTAttributes.Attribute, flaws *Flaw) []MFTAttributes.Attribute {
	extents := make(map[attrKey][]MFTAttributes.Attribute)
	positions := make(map[attrKey]int)
	var merged []MFTAttributes.Attribute

	for _, attr := range attrs {
		if !attr.Header.IsNoNResident() {
			merged = append(merged, attr)
			continue
		}
		key := attrKey{attr.Header.Type, attr.Header.Name}
		if _, ok := positions[key]; !ok {
			positions[key] = len(merged)
			merged = append(merged, attr)
		}
		extents[key] = append(extents[key], attr)
	}

	for key, pos := range positions {
		joined := join(extents[key])
		nonresident := joined.Header.ATRrecordNoNResident
		runlist := nonresident.RunList
		if nonresident.StartVcn != 0 || !runlist.IsContiguous(0) ||
			(len(runlist) > 0 && !joined.Incomplete && runlist.NextVCN() != nonresident.LastVcn+1) {
			*flaws |= PartiallyRecovered
		}
		merged[pos] = joined
	}
	return merged
}

func join(parts []MFTAttributes.Attribute) MFTAttributes.Attribute {
	if len(parts) == 1 {
		return parts[0]
	}
	sort.SliceStable(parts, func(i, j int) bool { return parts[i].StartVCN() < parts[j].StartVCN() })

	head := parts[0]
	nonresident := *head.Header.ATRrecordNoNResident
	nonresident.RunList = append(MFTAttributes.Runlist(nil), nonresident.RunList...)
	prevVCN := nonresident.StartVcn
	for _, part := range parts[1:] {
		partNonResident := part.Header.ATRrecordNoNResident
		if partNonResident.StartVcn == prevVCN { // listed twice
			continue
		}
		prevVCN = partNonResident.StartVcn
		nonresident.RunList = append(nonresident.RunList, partNonResident.RunList...)
		if partNonResident.LastVcn > nonresident.LastVcn {
			nonresident.LastVcn = partNonResident.LastVcn
		}
		head.Incomplete = head.Incomplete || part.Incomplete
	}
	head.Header.ATRrecordNoNResident = &nonresident
	return head
}
