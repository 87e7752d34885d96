package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/jcfangc/yahoo-crawler/internal/analyzer"
	"github.com/jcfangc/yahoo-crawler/internal/discovery"
	"github.com/jcfangc/yahoo-crawler/internal/domain"
)

var statusOrder = []domain.JournalStatus{
	domain.StatusPending,
	domain.StatusInProgress,
	domain.StatusDone,
	domain.StatusFailed,
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	return t
}

func renderSummary(w io.Writer, s domain.Summary) {
	t := newTable(w)
	t.SetTitle("Crawl summary")
	t.AppendHeader(table.Row{"Outcome", "Links"})
	t.AppendRows([]table.Row{
		{"done", s.Done},
		{"empty", s.Empty},
		{"failed", s.Failed},
		{"interrupted", s.Interrupted},
		{"skipped", s.Skipped},
		{"exhausted", s.Exhausted},
	})
	t.Render()

	if len(s.Reasons) == 0 {
		return
	}
	hashes := make([]string, 0, len(s.Reasons))
	for h := range s.Reasons {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	r := newTable(w)
	r.SetTitle("Failures")
	r.AppendHeader(table.Row{"Hash", "Reason"})
	for _, h := range hashes {
		r.AppendRow(table.Row{h, s.Reasons[h]})
	}
	r.Render()
}

func renderDiscovery(w io.Writer, res discovery.Result) {
	t := newTable(w)
	t.SetTitle("Discovery")
	t.AppendHeader(table.Row{"Seen", "Added", "Invalid"})
	t.AppendRow(table.Row{res.Seen, res.Added, res.Invalid})
	t.Render()
}

func renderCounts(w io.Writer, counts map[domain.JournalStatus]int, exhausted []domain.JournalEntry) {
	t := newTable(w)
	t.SetTitle("Journal")
	t.AppendHeader(table.Row{"Status", "Links"})
	total := 0
	for _, status := range statusOrder {
		t.AppendRow(table.Row{string(status), counts[status]})
		total += counts[status]
	}
	t.AppendFooter(table.Row{"total", total})
	t.Render()

	if len(exhausted) == 0 {
		return
	}
	e := newTable(w)
	e.SetTitle("Retry budget exhausted")
	e.AppendHeader(table.Row{"Hash", "URL", "Attempts", "Reason"})
	for _, entry := range exhausted {
		e.AppendRow(table.Row{entry.Hash, entry.URL, entry.Attempts, entry.Reason})
	}
	e.Render()
}

func renderWords(w io.Writer, counts []analyzer.WordCount, top int) {
	if top > 0 && len(counts) > top {
		counts = counts[:top]
	}
	t := newTable(w)
	t.SetTitle(fmt.Sprintf("Top %d words", len(counts)))
	t.AppendHeader(table.Row{"#", "Word", "Count"})
	for i, c := range counts {
		t.AppendRow(table.Row{i + 1, c.Word, c.Count})
	}
	t.Render()
}
