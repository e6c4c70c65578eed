package files

import (
	"errors"
	"fmt"
	"strings"

	pdf "rsc.io/pdf"
)

// ErrNoText is returned when a PDF has no extractable text layer.
var ErrNoText = errors.New("pdf has no text layer")

// ExtractPDFPages returns the text of every page of the PDF at filePath,
// one entry per page, skipping pages without content.
func ExtractPDFPages(filePath string) ([]string, error) {
	r, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", filePath, err)
	}

	var pages []string
	total := r.NumPage()
	for pageIndex := 1; pageIndex <= total; pageIndex++ {
		p := r.Page(pageIndex)
		if p.V.IsNull() {
			continue
		}
		text := pageText(p.Content().Text)
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, text)
	}
	if len(pages) == 0 {
		return nil, ErrNoText
	}
	return pages, nil
}

// pageText joins the positioned glyph runs of a page, inserting a newline
// when the baseline moves down and a space on a horizontal gap.
func pageText(runs []pdf.Text) string {
	var sb strings.Builder
	for i, t := range runs {
		if i > 0 {
			prev := runs[i-1]
			switch {
			case prev.Y-t.Y > prev.FontSize*0.5:
				sb.WriteByte('\n')
			case t.X-(prev.X+prev.W) > prev.FontSize*0.15:
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(t.S)
	}
	return sb.String()
}
