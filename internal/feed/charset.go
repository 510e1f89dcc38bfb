package feed

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

// Supplier feeds in the region are commonly served in one of these.
var knownCharsets = map[string]encoding.Encoding{
	"iso-8859-1":   charmap.ISO8859_1,
	"iso-8859-2":   charmap.ISO8859_2,
	"latin1":       charmap.ISO8859_1,
	"latin2":       charmap.ISO8859_2,
	"windows-1250": charmap.Windows1250,
	"windows-1252": charmap.Windows1252,
	"cp1250":       charmap.Windows1250,
	"cp1252":       charmap.Windows1252,
}

// charsetReader is plugged into xml.Decoder for documents that declare a
// non UTF-8 encoding.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	if enc, ok := knownCharsets[label]; ok {
		return enc.NewDecoder().Reader(input), nil
	}

	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}
