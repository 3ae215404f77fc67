package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/rcliao/voice-notes/internal/model"
	"github.com/rcliao/voice-notes/internal/store"
)

func printJSON(w io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(b))
}

// newestFirst sorts notes by date descending, keeping id order for ties.
func newestFirst(notes []model.Note) []model.Note {
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].Date.After(notes[j].Date)
	})
	return notes
}

func writeNotes(w io.Writer, notes []model.Note, now time.Time) {
	if !textOutput() {
		printJSON(w, notes)
		return
	}
	if len(notes) == 0 {
		fmt.Fprintln(w, "no notes")
		return
	}
	for _, n := range notes {
		fmt.Fprintf(w, "#%d  %s  [%s]  %s\n", n.ID, n.Title, n.Category, humanize.RelTime(n.Date, now, "ago", "from now"))
	}
}

func writeNote(w io.Writer, n *model.Note, now time.Time) {
	if !textOutput() {
		printJSON(w, n)
		return
	}

	fmt.Fprintf(w, "#%d %s\n", n.ID, n.Title)
	fmt.Fprintf(w, "category: %s\n", n.Category)
	fmt.Fprintf(w, "date:     %s (%s)\n", n.Date.Local().Format(time.RFC1123), humanize.RelTime(n.Date, now, "ago", "from now"))
	if n.TelegramHandle != "" {
		fmt.Fprintf(w, "telegram: %s\n", n.TelegramHandle)
	}
	fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(n.Summary))

	if n.Metadata.Len() > 0 {
		fmt.Fprintln(w, "\nmetadata:")
		b, err := yaml.Marshal(n.Metadata)
		if err == nil {
			for _, line := range strings.Split(strings.TrimRight(string(b), "\n"), "\n") {
				fmt.Fprintf(w, "  %s\n", line)
			}
		}
	}

	fmt.Fprintf(w, "\ntranscription:\n%s\n", strings.TrimSpace(n.Transcription))
}

func writeStats(w io.Writer, st *store.Stats, now time.Time) {
	if !textOutput() {
		printJSON(w, st)
		return
	}

	fmt.Fprintf(w, "database: %s (%s)\n", st.DBPath, humanize.Bytes(uint64(st.DBSizeBytes)))
	fmt.Fprintf(w, "notes:    %s (%s with a telegram handle)\n", humanize.Comma(int64(st.TotalNotes)), humanize.Comma(int64(st.WithHandle)))
	if st.Oldest != nil && st.Newest != nil {
		fmt.Fprintf(w, "range:    %s to %s\n",
			humanize.RelTime(*st.Oldest, now, "ago", "from now"),
			humanize.RelTime(*st.Newest, now, "ago", "from now"))
	}
	for _, c := range st.Categories {
		fmt.Fprintf(w, "  %-24s %d\n", c.Category, c.Count)
	}
}
