package utils

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
)

var ErrShortBuffer = errors.New("buffer too short for structure")

// 100ns intervals between 1601-01-01 and 1970-01-01
const windowsEpochDelta = 116444736000000000

type WindowsTime struct {
	Stamp uint64
}

func (winTime WindowsTime) ConvertToTime() time.Time {
	if winTime.Stamp == 0 || winTime.Stamp > math.MaxInt64 {
		return time.Time{}
	}
	ticks := int64(winTime.Stamp) - windowsEpochDelta
	secs, nsecs := ticks/10000000, (ticks%10000000)*100
	if nsecs < 0 {
		secs--
		nsecs += int64(time.Second)
	}
	return time.Unix(secs, nsecs).UTC()
}

func (winTime WindowsTime) ConvertToIsoTime() string {
	return winTime.ConvertToTime().Format("2006-01-02T15:04:05")
}

func ReadEndianUInt(barray []byte) uint64 {
	var sum uint64
	for index, val := range barray {
		sum |= uint64(val) << uint(index*8)
	}
	return sum
}

// ReadEndianInt reads a little endian two's complement integer of up to 8 bytes.
func ReadEndianInt(barray []byte) int64 {
	if len(barray) == 0 {
		return 0
	}
	sum := ReadEndianUInt(barray)
	if len(barray) < 8 && barray[len(barray)-1]&0x80 != 0 {
		sum |= ^uint64(0) << uint(len(barray)*8)
	}
	return int64(sum)
}

// Unmarshal fills a fixed size struct from little endian data.
func Unmarshal(data []byte, v interface{}) error {
	size := binary.Size(v)
	if size < 0 {
		return errors.New("must be a fixed size struct")
	}
	if len(data) < size {
		return errors.Wrapf(ErrShortBuffer, "need %d bytes got %d", size, len(data))
	}
	return binary.Read(bytes.NewReader(data[:size]), binary.LittleEndian, v)
}

func DecodeUTF16(b []byte) string {
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	utf8, err := decoder.Bytes(b[:len(b)&^1])
	if err != nil {
		return ""
	}
	return string(utf8)
}

func UTF16Units(b []byte) []uint16 {
	units := make([]uint16, len(b)/2)
	for idx := range units {
		units[idx] = binary.LittleEndian.Uint16(b[2*idx:])
	}
	return units
}

func Hexify(barray []byte) string {
	return hex.EncodeToString(barray)
}

// StringifyGUID formats an on disk GUID, whose first three fields are
// little endian.
func StringifyGUID(raw []byte) string {
	if len(raw) != 16 {
		return Hexify(raw)
	}
	swapped := make([]byte, 16)
	copy(swapped, raw)
	swapped[0], swapped[1], swapped[2], swapped[3] = raw[3], raw[2], raw[1], raw[0]
	swapped[4], swapped[5] = raw[5], raw[4]
	swapped[6], swapped[7] = raw[7], raw[6]
	guid, err := uuid.FromBytes(swapped)
	if err != nil {
		return Hexify(raw)
	}
	return guid.String()
}

func Filter[T any](elements []T, predicate func(T) bool) []T {
	var filtered []T
	for _, element := range elements {
		if predicate(element) {
			filtered = append(filtered, element)
		}
	}
	return filtered
}

func GetEntries(input string) []string {
	var entries []string
	for _, entry := range strings.Split(input, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}

func GetEntriesInt(input string) []int {
	var entries []int
	for _, entry := range GetEntries(input) {
		val, err := strconv.Atoi(entry)
		if err != nil {
			continue
		}
		entries = append(entries, val)
	}
	return entries
}
