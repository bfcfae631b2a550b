package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileReadsPlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	doc, err := File(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", doc.Text)
	assert.Empty(t, doc.Markers)
}

func TestFileRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.exe")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	_, err := File(path)
	var ufe *UnsupportedFormatError
	require.ErrorAs(t, err, &ufe)
	assert.Equal(t, ".exe", ufe.Ext)
}

func TestFileRejectsBinaryContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte{'a', 0, 'b'}, 0o644))

	_, err := File(path)
	var ufe *UnsupportedFormatError
	require.ErrorAs(t, err, &ufe)
}

func TestStructuralMarkersParagraphs(t *testing.T) {
	text := "para one\n\npara two\n\n\npara three"
	markers := StructuralMarkers(text)
	require.Len(t, markers, 2)
	// Each marker points at the first byte of the next paragraph.
	assert.Equal(t, byte('p'), text[markers[0]])
	assert.Equal(t, byte('p'), text[markers[1]])
}

func TestStructuralMarkersPageBreaks(t *testing.T) {
	text := "page one\fpage two"
	markers := StructuralMarkers(text)
	require.Len(t, markers, 1)
	assert.Equal(t, "page two", text[markers[0]:])
}

func TestStructuralMarkersNoneForPlainLine(t *testing.T) {
	assert.Empty(t, StructuralMarkers("one line\nanother line"))
}
