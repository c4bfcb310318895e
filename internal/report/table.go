package report

import (
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// table aligns columns by display width so names with wide runes still line up.
type table struct {
	headers []string
	right   map[int]bool
	rows    [][]string
	styles  []func(string) string
}

func newTable(headers ...string) *table {
	return &table{headers: headers, right: make(map[int]bool)}
}

// alignRight right-aligns the given columns.
func (t *table) alignRight(cols ...int) *table {
	for _, c := range cols {
		t.right[c] = true
	}
	return t
}

func (t *table) add(cells ...string) {
	t.addStyled(nil, cells...)
}

// addStyled adds a row whose rendered line is passed through style, after
// padding, so escape sequences never affect alignment.
func (t *table) addStyled(style func(string) string, cells ...string) {
	t.rows = append(t.rows, cells)
	t.styles = append(t.styles, style)
}

func (t *table) widths() []int {
	w := make([]int, len(t.headers))
	for i, h := range t.headers {
		w[i] = runewidth.StringWidth(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(w) {
				if cw := runewidth.StringWidth(cell); cw > w[i] {
					w[i] = cw
				}
			}
		}
	}
	return w
}

func (t *table) line(cells []string, widths []int) string {
	parts := make([]string, len(widths))
	for i, width := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		if t.right[i] {
			parts[i] = runewidth.FillLeft(cell, width)
		} else {
			parts[i] = runewidth.FillRight(cell, width)
		}
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}

func (t *table) render(w io.Writer) error {
	widths := t.widths()
	total := 0
	for _, width := range widths {
		total += width + 2
	}

	var b strings.Builder
	b.WriteString(t.line(t.headers, widths))
	b.WriteByte('\n')
	b.WriteString(strings.Repeat("-", total-2))
	b.WriteByte('\n')
	for i, row := range t.rows {
		l := t.line(row, widths)
		if t.styles[i] != nil {
			l = t.styles[i](l)
		}
		b.WriteString(l)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}
