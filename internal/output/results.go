package output

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/semsearch/internal/index"
)

const scoreBarWidth = 20

// Results prints ranked query results. Without styling the text is the
// canonical result block, so piped output matches what the service returns.
func (w *Writer) Results(results []index.Result, empty string) {
	if len(results) == 0 {
		w.Line(empty)
		return
	}
	if !w.color {
		w.Line(index.FormatResults(&index.QueryResponse{Results: results}))
		return
	}

	for i, r := range results {
		if i > 0 {
			w.Newline()
		}
		_, _ = fmt.Fprintf(w.out, "%s %s %s\n",
			w.styles.Header.Render(fmt.Sprintf("#%d/%d", r.Rank, r.Total)),
			w.styles.Score.Render(renderScoreBar(r.Score, scoreBarWidth)),
			w.styles.Score.Render(fmt.Sprintf("%.2f", r.Score)))
		_, _ = fmt.Fprintf(w.out, "%s\n", w.styles.Source.Render(r.Source))
		for _, line := range strings.Split(r.Content, "\n") {
			_, _ = fmt.Fprintf(w.out, "  %s\n", line)
		}
	}
}

// renderScoreBar draws a similarity in [-1, 1] as a bar; negative scores
// render empty.
func renderScoreBar(score float64, width int) string {
	filled := int(score * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
