package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>II. TIẾN TRÌNH DẠY HỌC</w:t></w:r></w:p>
    <w:p><w:r><w:t>Hoạt động 1:</w:t></w:r><w:r><w:tab/><w:t xml:space="preserve">Khởi động</w:t></w:r></w:p>
    <w:p><w:r><w:t>Học sinh sử dụng </w:t></w:r><w:r><w:t>Google Form</w:t></w:r><w:r><w:t xml:space="preserve">   để khảo sát.</w:t></w:r><w:r><w:br/><w:t>Sau đó báo cáo.</w:t></w:r></w:p>
    <w:p></w:p>
  </w:body>
</w:document>`

func buildZip(t *testing.T, files map[string]string, order ...string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()

	files := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		"word/document.xml":   body,
	}
	return buildZip(t, files, "[Content_Types].xml", "word/document.xml")
}

func TestExtractDocx(t *testing.T) {
	res := Extract("plan.docx", buildDocx(t, documentXML))

	require.NoError(t, res.Err)
	require.Equal(t, StatusOK, res.Status)
	assert.True(t, res.OK())
	assert.Equal(t, strings.Join([]string{
		"II. TIẾN TRÌNH DẠY HỌC",
		"Hoạt động 1: Khởi động",
		"Học sinh sử dụng Google Form để khảo sát.",
		"Sau đó báo cáo.",
	}, "\n"), res.Text)
}

func TestExtractDocxWithoutBody(t *testing.T) {
	data := buildZip(t, map[string]string{"word/styles.xml": "<w:styles/>"}, "word/styles.xml")

	res := Extract("plan.docx", data)

	assert.Equal(t, StatusUnreadable, res.Status)
	assert.Error(t, res.Err)
}

func TestExtractPlainText(t *testing.T) {
	text := "Hoạt động 1: Khởi động\r\nHọc sinh xem video   trên YouTube.\n\n"

	res := Extract("plan.txt", []byte(text))

	require.Equal(t, StatusOK, res.Status)
	assert.Equal(t, "Hoạt động 1: Khởi động\nHọc sinh xem video trên YouTube.", res.Text)
	assert.Contains(t, res.MIME, "text/plain")
}

func TestExtractStatuses(t *testing.T) {
	garbage := []byte{0x00, 0x13, 0x37, 0x00, 0x42, 0x99, 0x00, 0x01}

	tests := []struct {
		name   string
		file   string
		data   []byte
		status Status
	}{
		{name: "empty input", file: "plan.docx", data: nil, status: StatusEmpty},
		{name: "whitespace text", file: "plan.txt", data: []byte(" \n\t \n"), status: StatusEmpty},
		{name: "garbage named pdf", file: "plan.pdf", data: garbage, status: StatusUnreadable},
		{name: "broken pdf header", file: "plan.pdf", data: []byte("%PDF-1.4\nnot really a pdf"), status: StatusUnreadable},
		{name: "unknown binary", file: "blob.bin", data: garbage, status: StatusUnsupported},
		{name: "plain zip", file: "bundle.zip", data: buildZip(t, map[string]string{"a.txt": "x"}, "a.txt"), status: StatusUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Extract(tt.file, tt.data)
			assert.Equal(t, tt.status, res.Status)
			assert.Empty(t, res.Text)
			if tt.status == StatusUnreadable || tt.status == StatusUnsupported {
				assert.Error(t, res.Err)
			}
		})
	}
}

func TestExtractTooLarge(t *testing.T) {
	res := Extract("plan.txt", make([]byte, MaxBytes+1))

	assert.Equal(t, StatusUnreadable, res.Status)
	assert.ErrorIs(t, res.Err, ErrTooLarge)
}

func TestExtractFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.docx")
	require.NoError(t, os.WriteFile(path, buildDocx(t, documentXML), 0o600))

	res := ExtractFile(path)
	require.Equal(t, StatusOK, res.Status)
	assert.True(t, strings.HasPrefix(res.Text, "II. TIẾN TRÌNH DẠY HỌC\n"))

	missing := ExtractFile(filepath.Join(dir, "missing.pdf"))
	assert.Equal(t, StatusUnreadable, missing.Status)
	assert.Error(t, missing.Err)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("Giao-an.DOCX"))
	assert.True(t, Supported("plan.pdf"))
	assert.True(t, Supported("notes.md"))
	assert.False(t, Supported("plan.doc"))
	assert.False(t, Supported("plan"))
}
