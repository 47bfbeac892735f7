package attributes

import (
	"github.com/aarsakian/MFTRecover/utils"
	"github.com/pkg/errors"
)

const (
	objectIDLen     = 16
	objectIDFullLen = 64
)

// ObjectID is the $OBJECT_ID value. Only the object GUID is always present;
// the birth volume, object and domain GUIDs follow in a 64 byte value.
type ObjectID struct {
	ObjGUID     [16]byte //object ID
	OrigVolGUID [16]byte //volume ID
	OrigObjGUID [16]byte //original objID
	OrigDomGUID [16]byte // domain ID
}

func (objectId *ObjectID) Parse(data []byte) error {
	if len(data) < objectIDLen {
		return errors.Wrapf(utils.ErrShortBuffer, "object id of %d bytes", len(data))
	}
	*objectId = ObjectID{}
	copy(objectId.ObjGUID[:], data)
	if len(data) >= objectIDFullLen {
		copy(objectId.OrigVolGUID[:], data[16:32])
		copy(objectId.OrigObjGUID[:], data[32:48])
		copy(objectId.OrigDomGUID[:], data[48:64])
	}
	return nil
}

func (objectId ObjectID) String() string {
	return utils.StringifyGUID(objectId.ObjGUID[:])
}
