package extraction

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Run grouping thresholds, as fractions of the glyph's font size
const (
	sameLineTolerance = 0.5
	wordGap           = 0.2
	runBreakGap       = 1.5
)

// pageText holds the positioned runs and flattened text of one page
type pageText struct {
	runs  []TextRun
	plain string
	err   error
}

// readText opens data with ledongthuc/pdf and returns per-page text. Pages the
// library panics on are reported through pageText.err.
func readText(data []byte) (pages []pageText, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("text layer unreadable: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open text layer: %w", err)
	}

	numPages := reader.NumPage()
	pages = make([]pageText, numPages)
	for i := 1; i <= numPages; i++ {
		pages[i-1] = readPage(reader, i)
	}
	return pages, nil
}

func readPage(reader *pdf.Reader, pageNum int) (pt pageText) {
	defer func() {
		if r := recover(); r != nil {
			pt = pageText{err: fmt.Errorf("page %d: %v", pageNum, r)}
		}
	}()

	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return pageText{}
	}

	pt.runs = groupRuns(page.Content().Text)

	plain, err := page.GetPlainText(nil)
	if err != nil {
		pt.err = fmt.Errorf("page %d: %w", pageNum, err)
		return pt
	}
	pt.plain = plain
	return pt
}

// groupRuns merges consecutive glyphs sharing a baseline into runs. A run's
// position is the origin of its first glyph. Empty runs are dropped.
func groupRuns(glyphs []pdf.Text) []TextRun {
	var runs []TextRun
	var sb strings.Builder
	var cur TextRun
	var prev pdf.Text
	open := false

	flush := func() {
		if !open {
			return
		}
		if content := strings.TrimSpace(sb.String()); content != "" {
			cur.Content = content
			runs = append(runs, cur)
		}
		sb.Reset()
		open = false
	}

	for _, g := range glyphs {
		if g.S == "" || g.S == "\n" {
			continue
		}

		if open {
			size := prev.FontSize
			if size <= 0 {
				size = 1
			}
			gap := g.X - (prev.X + prev.W)
			sameLine := math.Abs(g.Y-prev.Y) <= size*sameLineTolerance
			if !sameLine || gap > size*runBreakGap || gap < -size*runBreakGap {
				flush()
			} else if gap > size*wordGap {
				sb.WriteByte(' ')
			}
		}

		if !open {
			cur = TextRun{X: g.X, Y: g.Y}
			open = true
		}
		sb.WriteString(g.S)
		prev = g
	}
	flush()

	return runs
}
