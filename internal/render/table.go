package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/pterm/pterm"

	"github.com/HexSleeves/ponder/internal/store"
)

// PreviewWidth bounds the first-message column of ConversationTable.
const PreviewWidth = 60

// ModelList writes one model id per line. Scripts rely on this shape, so it
// is used whenever output is not a terminal.
func ModelList(w io.Writer, models []string) {
	for _, m := range models {
		fmt.Fprintln(w, m)
	}
}

// ModelTable writes models as a numbered pterm table.
func ModelTable(w io.Writer, models []string) error {
	data := pterm.TableData{{"#", "Model"}}
	for i, m := range models {
		data = append(data, []string{strconv.Itoa(i + 1), m})
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render model table: %w", err)
	}
	fmt.Fprintln(w, out)
	return nil
}

// ConversationList writes one id per line.
func ConversationList(w io.Writer, sums []store.Summary) {
	for _, s := range sums {
		fmt.Fprintln(w, s.ID)
	}
}

// ConversationTable writes saved conversations with their size and a
// one-line preview of the opening user message.
func ConversationTable(w io.Writer, sums []store.Summary) error {
	data := pterm.TableData{{"ID", "Messages", "First message"}}
	for _, s := range sums {
		count := strconv.Itoa(s.Messages)
		if s.Messages < 0 {
			count = "unreadable"
		}
		data = append(data, []string{s.ID, count, Preview(s.FirstUser, PreviewWidth)})
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render conversation table: %w", err)
	}
	fmt.Fprintln(w, out)
	return nil
}

// Preview collapses whitespace and truncates s to width display cells.
func Preview(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	return runewidth.Truncate(s, width, "…")
}
