package attributes

import (
	"fmt"

	"github.com/aarsakian/MFTRecover/utils"
	"github.com/pkg/errors"
)

const VolumeDirty uint16 = 0x0001

// VolumeName is the label stored in record 3.
type VolumeName struct {
	Name string
}

func (volName *VolumeName) Parse(data []byte) error {
	if len(data)%2 != 0 {
		return errors.Errorf("volume name of odd length %d", len(data))
	}
	volName.Name = utils.DecodeUTF16(data)
	return nil
}

type VolumeInfo struct {
	F1     uint64 //unused
	MajVer uint8  // 8-8
	MinVer uint8  // 9-9
	Flags  uint16 //10-12
}

func (volInfo *VolumeInfo) Parse(data []byte) error {
	return utils.Unmarshal(data, volInfo)
}

func (volInfo VolumeInfo) Version() string {
	return fmt.Sprintf("%d.%d", volInfo.MajVer, volInfo.MinVer)
}

func (volInfo VolumeInfo) IsDirty() bool {
	return volInfo.Flags&VolumeDirty != 0
}
