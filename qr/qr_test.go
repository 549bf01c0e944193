package qr

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatParseRoundTrip(t *testing.T) {
	for _, n := range []int{1, 42, 999} {
		got, code, err := Parse(Format(n))
		require.NoError(t, err)
		assert.Equal(t, n, got)
		assert.Equal(t, Format(n), code)
	}
}

func TestParse(t *testing.T) {
	cases := []struct {
		in      string
		number  int
		code    string
		wantErr error
	}{
		{"TABLE_5", 5, "TABLE_5", nil},
		{" table_17 ", 17, "TABLE_17", nil},
		{"Table_007", 7, "TABLE_7", nil},
		{"TABLE_0", 0, "", ErrOutOfRange},
		{"TABLE_1000", 0, "", ErrOutOfRange},
		{"TABLE_", 0, "", ErrInvalidFormat},
		{"TAVOLO_3", 0, "", ErrInvalidFormat},
		{"TABLE_-3", 0, "", ErrInvalidFormat},
		{"", 0, "", ErrInvalidFormat},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			n, code, err := Parse(tc.in)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.number, n)
			assert.Equal(t, tc.code, code)
		})
	}
}

func TestScanURL(t *testing.T) {
	assert.Equal(t, "https://punti.example.com/?table=TABLE_3", ScanURL("https://punti.example.com/", "TABLE_3"))
}

func TestRenderFile(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(filepath.Join(dir, "qr"), "http://localhost:3000")

	path, err := r.RenderFile(12)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "qr", "table-12.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestWriteSheet(t *testing.T) {
	r := NewRenderer(t.TempDir(), "http://localhost:3000")
	entries := make([]SheetEntry, 0, 10)
	for n := 1; n <= 10; n++ {
		entries = append(entries, SheetEntry{TableNumber: n, Name: Format(n)})
	}

	var buf bytes.Buffer
	require.NoError(t, r.WriteSheet(&buf, entries, SheetOptions{RestaurantName: "Trattoria Test"}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}
