// Package extract turns uploaded lesson files into sanitized plain text.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"github.com/spigell/nls-advisor/internal/util"
)

// MaxBytes caps the size of a document accepted for extraction.
const MaxBytes = 20 << 20

type Status string

const (
	StatusOK          Status = "ok"
	StatusEmpty       Status = "empty"
	StatusUnreadable  Status = "unreadable"
	StatusUnsupported Status = "unsupported"
)

var (
	ErrTooLarge    = errors.New("document exceeds size limit")
	ErrUnsupported = errors.New("unsupported document type")
)

// Result is the outcome of one extraction. Text is set only for StatusOK.
type Result struct {
	Status Status `json:"status"`
	Text   string `json:"-"`
	MIME   string `json:"mime,omitempty"`
	Err    error  `json:"-"`
}

func (r Result) OK() bool { return r.Status == StatusOK }

type kind int

const (
	kindUnknown kind = iota
	kindDOCX
	kindPDF
	kindText
)

// Extract sniffs data and pulls its text. The file name extension only
// breaks ties when the content itself is not recognised.
func Extract(name string, data []byte) Result {
	if len(data) == 0 {
		return Result{Status: StatusEmpty}
	}
	if len(data) > MaxBytes {
		return Result{Status: StatusUnreadable, Err: fmt.Errorf("%s: %w", name, ErrTooLarge)}
	}

	mtype := mimetype.Detect(data)
	res := Result{MIME: mtype.String()}

	var (
		raw string
		err error
	)
	switch detect(mtype, strings.ToLower(filepath.Ext(name))) {
	case kindDOCX:
		raw, err = docxText(data)
	case kindPDF:
		raw, err = pdfText(data)
	case kindText:
		if !utf8.Valid(data) {
			err = errors.New("text is not valid UTF-8")
			break
		}
		raw = string(data)
	default:
		res.Status = StatusUnsupported
		res.Err = fmt.Errorf("%s (%s): %w", name, res.MIME, ErrUnsupported)
		return res
	}

	if err != nil {
		res.Status = StatusUnreadable
		res.Err = fmt.Errorf("reading %s: %w", name, err)
		return res
	}

	res.Text = util.CollapseSpaces(util.Sanitize(raw))
	if res.Text == "" {
		res.Status = StatusEmpty
		return res
	}

	res.Status = StatusOK
	return res
}

// ExtractFile reads path from disk and extracts it.
func ExtractFile(path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		return Result{Status: StatusUnreadable, Err: fmt.Errorf("stat %s: %w", path, err)}
	}
	if info.Size() > MaxBytes {
		return Result{Status: StatusUnreadable, Err: fmt.Errorf("%s: %w", path, ErrTooLarge)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Status: StatusUnreadable, Err: fmt.Errorf("read %s: %w", path, err)}
	}

	return Extract(filepath.Base(path), data)
}

// Supported reports whether the extension is one Extract knows how to read.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".docx", ".pdf", ".txt", ".md":
		return true
	}
	return false
}

func detect(mtype *mimetype.MIME, ext string) kind {
	switch {
	case is(mtype, "application/pdf"):
		return kindPDF
	case is(mtype, "application/zip"):
		// docx is detected by its parts, other zip flavours fall through.
		if ext == ".docx" || mtype.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document") {
			return kindDOCX
		}
		return kindUnknown
	case is(mtype, "text/plain"):
		return kindText
	}

	switch ext {
	case ".pdf":
		return kindPDF
	case ".docx":
		return kindDOCX
	case ".txt", ".md":
		return kindText
	}
	return kindUnknown
}

// is reports whether mtype or one of its ancestors is expected.
func is(mtype *mimetype.MIME, expected string) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is(expected) {
			return true
		}
	}
	return false
}
