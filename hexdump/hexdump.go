// Package hexdump renders byte slices as fixed-width hex and ASCII listings.
package hexdump

import (
	"errors"
	"fmt"
	"strings"
)

// Column width limits for [Render].
const (
	MinWidth     = 1
	MaxWidth     = 1024
	DefaultWidth = 32
)

// ErrWidthOutOfRange is returned by [ValidateWidth] for widths outside
// [MinWidth, MaxWidth]. The message is shown to users as is.
var ErrWidthOutOfRange = errors.New("Hex display columns out of range. (1-1024). Set to 32 (default).") //nolint:staticcheck // user-facing text

const upperHex = "0123456789ABCDEF"

// ValidateWidth returns width if it lies within [MinWidth, MaxWidth].
// Otherwise it returns DefaultWidth together with ErrWidthOutOfRange so the
// caller can report the substitution and carry on.
func ValidateWidth(width int) (int, error) {
	if width < MinWidth || width > MaxWidth {
		return DefaultWidth, ErrWidthOutOfRange
	}
	return width, nil
}

// Render returns a hex dump of data with width bytes per line.
//
// Each line starts with the chunk offset as seven upper-case hex digits and a
// colon, followed by the hex field (a space before every even column, two
// blanks for columns past the end of data), two spaces, and the printable
// ASCII form of the bytes in the chunk. Empty input renders as "".
//
// The caller is responsible for validating width with [ValidateWidth].
func Render(data []byte, width int) string {
	if len(data) == 0 || width <= 0 {
		return ""
	}

	lines := (len(data) + width - 1) / width
	// label + hex field + separator + ascii + newline
	lineLen := 8 + 2*width + (width+1)/2 + 2 + width + 1

	var sb strings.Builder
	sb.Grow(lines * lineLen)

	for offset := 0; offset < len(data); offset += width {
		fmt.Fprintf(&sb, "%07X:", offset)

		for i := range width {
			if i%2 == 0 {
				sb.WriteByte(' ')
			}
			if offset+i >= len(data) {
				sb.WriteString("  ")
				continue
			}
			b := data[offset+i]
			sb.WriteByte(upperHex[b>>4])
			sb.WriteByte(upperHex[b&0x0f])
		}

		sb.WriteString("  ")

		for i := 0; i < width && offset+i < len(data); i++ {
			sb.WriteByte(printable(data[offset+i]))
		}

		sb.WriteByte('\n')
	}

	return sb.String()
}

func printable(b byte) byte {
	if b >= 32 && b <= 126 {
		return b
	}
	return '.'
}
