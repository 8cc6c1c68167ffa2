package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const docxBody = "word/document.xml"

// extractDOCX walks word/document.xml. Paragraphs become blocks separated
// by blank lines; table rows become one block with cells joined by " | ".
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: not a DOCX archive: %v", ErrCorruptDocument, err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return "", fmt.Errorf("%w: %s missing", ErrCorruptDocument, docxBody)
	}

	rc, err := body.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	defer rc.Close()

	return walkDocument(xml.NewDecoder(rc))
}

func walkDocument(dec *xml.Decoder) (string, error) {
	var (
		blocks    []string
		para      strings.Builder
		cells     []string
		tableRows int // nesting depth of w:tr
		inText    bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCorruptDocument, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			case "tr":
				tableRows++
				if tableRows == 1 {
					cells = cells[:0]
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				text := strings.TrimSpace(para.String())
				para.Reset()
				if text == "" {
					continue
				}
				if tableRows > 0 {
					cells = append(cells, text)
				} else {
					blocks = append(blocks, text)
				}
			case "tr":
				tableRows--
				if tableRows == 0 && len(cells) > 0 {
					blocks = append(blocks, strings.Join(cells, " | "))
				}
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	return strings.Join(blocks, "\n\n"), nil
}
