package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"studyai-backend/internal/shared/util"
)

const (
	// MaxTextRunes caps extracted text before the truncation marker is appended.
	MaxTextRunes    = 100000
	TruncatedMarker = "\n[Content truncated...]"

	mimePDF  = "application/pdf"
	mimeDOC  = "application/msword"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

type kind int

const (
	kindUnknown kind = iota
	kindText
	kindPDF
	kindImage
	kindWord
)

// Extractor turns uploaded bytes into a text representation for prompting.
// With DecodeBinary unset, PDFs, images and Word files get a fixed
// placeholder naming the file.
type Extractor struct {
	DecodeBinary bool
}

// Text never fails; unsupported or undecodable inputs produce a placeholder
// or an empty string.
func (e Extractor) Text(data []byte, mimeType, fileName string) string {
	switch classify(mimeType, fileName) {
	case kindText:
		return Truncate(util.StorableText(string(data)), MaxTextRunes)
	case kindPDF:
		if e.DecodeBinary {
			if text, err := decodePDF(data); err == nil {
				if text = util.StorableText(text); strings.TrimSpace(text) != "" {
					return Truncate(text, MaxTextRunes)
				}
			}
		}
		return fmt.Sprintf("[PDF Document: %s] - Content will be analyzed by AI", util.StorableText(fileName))
	case kindImage:
		return fmt.Sprintf("[Image: %s] - Visual content will be analyzed by AI", util.StorableText(fileName))
	case kindWord:
		if e.DecodeBinary {
			if text, err := decodeDOCX(data); err == nil {
				if text = util.StorableText(text); strings.TrimSpace(text) != "" {
					return Truncate(text, MaxTextRunes)
				}
			}
		}
		return fmt.Sprintf("[Word Document: %s] - Content will be analyzed by AI", util.StorableText(fileName))
	default:
		return ""
	}
}

// Truncate keeps the first max runes of s and appends TruncatedMarker when
// anything was cut.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i] + TruncatedMarker
		}
		n++
	}
	return s
}

func classify(mimeType, fileName string) kind {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	switch {
	case clean == "text/plain", clean == "text/markdown":
		return kindText
	case clean == mimePDF:
		return kindPDF
	case strings.HasPrefix(clean, "image/"):
		return kindImage
	case clean == mimeDOC, clean == mimeDOCX:
		return kindWord
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".txt", ".md":
		return kindText
	case ".pdf":
		return kindPDF
	case ".png", ".jpg", ".jpeg", ".webp":
		return kindImage
	case ".doc", ".docx":
		return kindWord
	default:
		return kindUnknown
	}
}

func decodePDF(data []byte) (string, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// decodeDOCX reads word/document.xml; legacy .doc files are not zip
// archives and fail here, falling back to the placeholder.
func decodeDOCX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty docx data")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		return paragraphText(rc)
	}
	return "", errors.New("document.xml not found")
}

func paragraphText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.Write(t)
		case xml.EndElement:
			if (t.Name.Local == "p" || t.Name.Local == "br") && buf.Len() > 0 {
				buf.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(buf.String()), nil
}
