package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/semsearch/internal/index"
)

func TestWriter_Status_PrintsIconAndMessage(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a status message
	w.Status("*", "Loading corpus...")

	// Then: output contains icon and message
	assert.Equal(t, "* Loading corpus...\n", buf.String())
}

func TestWriter_Status_NoIconIndents(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Status("", "detail")

	assert.Equal(t, "   detail\n", buf.String())
}

func TestWriter_Messages_PlainWhenNotATerminal(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  string
	}{
		{"success", func(w *Writer) { w.Successf("created %q", "docs") }, "✓ created \"docs\"\n"},
		{"warning", func(w *Writer) { w.Warning("watcher disabled") }, "! watcher disabled\n"},
		{"error", func(w *Writer) { w.Errorf("code %d", 7) }, "✗ code 7\n"},
		{"header", func(w *Writer) { w.Header("Status") }, "Status\n"},
		{"field", func(w *Writer) { w.Field("Model", "static-256") }, "  Model:         static-256\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a writer on a buffer, which is never a terminal
			buf := &bytes.Buffer{}
			w := New(buf)

			// When: writing
			tt.write(w)

			// Then: no escape sequences are emitted
			assert.Equal(t, tt.want, buf.String())
			assert.NotContains(t, buf.String(), "\x1b[")
		})
	}
}

func TestWriter_List(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.List([]string{"a", "b"}, "none")
	w.List(nil, "none")

	assert.Equal(t, "a\nb\nnone\n", buf.String())
}

func TestWriter_Encode(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf, WithJSON(true))
	require.True(t, w.JSON())

	require.NoError(t, w.Encode(map[string]any{"indexes": []string{"a"}}))

	var got map[string][]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, []string{"a"}, got["indexes"])
}

func TestWriter_Code_PrintsIndentedBlock(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Code("line1\nline2")

	assert.Equal(t, "\n  line1\n  line2\n\n", buf.String())
}

func TestWriter_Newline_PrintsEmptyLine(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Newline()

	assert.Equal(t, "\n", buf.String())
}

func TestWriter_Results(t *testing.T) {
	results := []index.Result{
		{Rank: 1, Total: 2, Score: 0.91, Source: "/corpus/a", Content: "alpha"},
		{Rank: 2, Total: 2, Score: 0.25, Source: "/corpus/b", Content: "beta"},
	}

	t.Run("plain output is the canonical block", func(t *testing.T) {
		buf := &bytes.Buffer{}
		New(buf).Results(results, index.NoResultsMessage)

		assert.Equal(t,
			"--- Result 1/2 (Score: 0.91) ---\nSource: /corpus/a\nContent: alpha\n\n"+
				"--- Result 2/2 (Score: 0.25) ---\nSource: /corpus/b\nContent: beta\n",
			buf.String())
	})

	t.Run("empty prints the sentinel", func(t *testing.T) {
		buf := &bytes.Buffer{}
		New(buf).Results(nil, index.NoResultsMessage)

		assert.Equal(t, index.NoResultsMessage+"\n", buf.String())
	})

	t.Run("styled output shows rank, source and content", func(t *testing.T) {
		buf := &bytes.Buffer{}
		New(buf, WithColor(true)).Results(results, index.NoResultsMessage)

		out := buf.String()
		assert.Contains(t, out, "#1/2")
		assert.Contains(t, out, "/corpus/b")
		assert.Contains(t, out, "  alpha\n")
		assert.Contains(t, out, "0.91")
	})
}

func TestRenderScoreBar(t *testing.T) {
	tests := []struct {
		name     string
		score    float64
		width    int
		wantFull int
	}{
		{"zero", 0, 10, 0},
		{"half", 0.5, 10, 5},
		{"full", 1, 10, 10},
		{"negative", -0.4, 10, 0},
		{"over one", 1.2, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := renderScoreBar(tt.score, tt.width)

			assert.Equal(t, tt.wantFull, strings.Count(bar, "█"))
			assert.Equal(t, tt.width, len([]rune(bar)))
		})
	}
}

func TestGetStyles(t *testing.T) {
	assert.True(t, GetStyles(false).Header.GetBold())
	assert.False(t, GetStyles(true).Header.GetBold())
}
