package hexdump

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		data  []byte
		width int
		want  string
	}{
		{
			name:  "empty input",
			data:  nil,
			width: 16,
			want:  "",
		},
		{
			name:  "short line is padded in hex field only",
			data:  []byte("ABC"),
			width: 16,
			want:  "0000000: 4142 43  " + strings.Repeat("     ", 6) + "  ABC\n",
		},
		{
			name:  "width one",
			data:  []byte{0x00, 0xff},
			width: 1,
			want:  "0000000: 00  .\n0000001: FF  .\n",
		},
		{
			name:  "odd width groups pairs",
			data:  []byte("hello"),
			width: 3,
			want:  "0000000: 6865 6C  hel\n0000003: 6C6F     lo\n",
		},
		{
			name:  "exact multiple of width",
			data:  []byte{0x41, 0x7e, 0x7f, 0x20},
			width: 2,
			want:  "0000000: 417E  A~\n0000002: 7F20  . \n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Render(tt.data, tt.width))
		})
	}
}

func TestRenderLineCount(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42)) //nolint:gosec // deterministic test data
	for _, width := range []int{1, 2, 7, 16, 32, 33, 1024} {
		for _, n := range []int{0, 1, width - 1, width, width + 1, 3*width + 5} {
			if n < 0 {
				continue
			}
			data := make([]byte, n)
			rng.Read(data)

			out := Render(data, width)
			wantLines := (n + width - 1) / width
			assert.Equal(t, wantLines, strings.Count(out, "\n"), "width=%d n=%d", width, n)
		}
	}
}

func TestRenderOffsetLabels(t *testing.T) {
	t.Parallel()

	data := make([]byte, 100)
	out := Render(data, 7)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 15)

	for i, line := range lines {
		assert.True(t, strings.HasPrefix(line, fmt.Sprintf("%07X:", i*7)), "line %d: %q", i, line)
	}
}

func TestRenderASCIIColumn(t *testing.T) {
	t.Parallel()

	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}
	out := Render(data, 256)
	ascii := strings.TrimSuffix(out[strings.LastIndex(out, "  ")+2:], "\n")
	require.Len(t, ascii, 256)

	for i := range 256 {
		want := byte('.')
		if i >= 32 && i <= 126 {
			want = byte(i)
		}
		assert.Equal(t, want, ascii[i], "byte %d", i)
	}
}

func TestValidateWidth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      int
		want    int
		wantErr bool
	}{
		{in: 1, want: 1},
		{in: 32, want: 32},
		{in: 1024, want: 1024},
		{in: 0, want: DefaultWidth, wantErr: true},
		{in: -5, want: DefaultWidth, wantErr: true},
		{in: 1025, want: DefaultWidth, wantErr: true},
	}

	for _, tt := range tests {
		got, err := ValidateWidth(tt.in)
		assert.Equal(t, tt.want, got, "width %d", tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrWidthOutOfRange)
		} else {
			assert.NoError(t, err)
		}
	}
}
