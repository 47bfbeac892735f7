package utils

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var ErrUnknownLocale = errors.New("unknown locale")

var codePages = map[string]*charmap.Charmap{
	"cp437":      charmap.CodePage437,
	"cp850":      charmap.CodePage850,
	"cp866":      charmap.CodePage866,
	"cp1250":     charmap.Windows1250,
	"cp1251":     charmap.Windows1251,
	"cp1252":     charmap.Windows1252,
	"cp1253":     charmap.Windows1253,
	"iso-8859-1": charmap.ISO8859_1,
	"iso-8859-7": charmap.ISO8859_7,
	"koi8-r":     charmap.KOI8R,
}

// Locale converts UTF-8 names into the bytes of a target code page.
// The zero value and "utf-8" pass names through unchanged.
type Locale struct {
	Name    string
	charmap *charmap.Charmap
}

func NewLocale(name string) (Locale, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "utf-8" || name == "utf8" {
		return Locale{Name: "utf-8"}, nil
	}
	cmap, ok := codePages[name]
	if !ok {
		return Locale{}, errors.Wrap(ErrUnknownLocale, name)
	}
	return Locale{Name: name, charmap: cmap}, nil
}

// Encode replaces characters the code page cannot represent.
func (locale Locale) Encode(name string) []byte {
	if locale.charmap == nil {
		return []byte(name)
	}
	encoder := encoding.ReplaceUnsupported(locale.charmap.NewEncoder())
	encoded, err := encoder.Bytes([]byte(name))
	if err != nil {
		return []byte(name)
	}
	return encoded
}
