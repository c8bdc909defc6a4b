package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/toricodesthings/text-metrics-service/internal/service"
)

func render(c *cli.Context, r service.Report) error {
	w := c.App.Writer
	if w == nil {
		w = os.Stdout
	}
	if c.Bool("json") {
		if !c.Bool("show-text") {
			r.Text = ""
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	printReport(w, r, c.Bool("show-text"))
	return nil
}

func printReport(w io.Writer, r service.Report, showText bool) {
	heading := color.New(color.FgCyan, color.Bold).FprintfFunc()
	label := color.New(color.FgHiBlack).SprintFunc()

	switch r.Source {
	case service.SourceFile:
		heading(w, "Source\n")
		fmt.Fprintf(w, "  %s %s (%s)\n", label("type:"), r.FileType, r.Method)
		if r.Pages > 0 {
			fmt.Fprintf(w, "  %s %d\n", label("pages:"), r.Pages)
		}
		if r.Language != "" {
			fmt.Fprintf(w, "  %s %s\n", label("language:"), r.Language)
		}
		keys := make([]string, 0, len(r.Metadata))
		for k := range r.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s %s\n", label(k+":"), r.Metadata[k])
		}
		fmt.Fprintln(w)
	case service.SourceURL:
		heading(w, "Source\n")
		if r.Title != "" {
			fmt.Fprintf(w, "  %s %s\n", label("title:"), r.Title)
		}
		fmt.Fprintf(w, "  %s %s\n", label("url:"), r.URL)
		fmt.Fprintf(w, "  %s %s\n\n", label("via:"), r.Transport)
	}

	if showText && r.Text != "" {
		heading(w, "Text\n")
		fmt.Fprintln(w, r.Text)
		fmt.Fprintln(w)
	}

	m := r.Metrics
	if m == nil {
		color.New(color.FgYellow).Fprintln(w, "Nothing to count.")
		return
	}

	heading(w, "Counts\n")
	fmt.Fprintf(w, "  %s %d\n", label("words:"), m.WordCount)
	fmt.Fprintf(w, "  %s %d\n", label("characters:"), m.CharCountIncludingSpaces)
	fmt.Fprintf(w, "  %s %d\n", label("characters (no spaces):"), m.CharCountExcludingSpaces)

	fa := m.RepeatedWordsAnalysis
	if fa == nil {
		return
	}
	fmt.Fprintln(w)
	title := "Most repeated words"
	if fa.StopWordsFiltered {
		title += " (stop words filtered)"
	}
	heading(w, "%s\n", title)
	fmt.Fprintf(w, "  %s %d\n", label("unique words:"), fa.TotalUniqueWords)
	if len(fa.TopWords) == 0 {
		fmt.Fprintln(w, "  no words left to rank")
		return
	}
	count := color.New(color.FgGreen).SprintFunc()
	for i, e := range fa.TopWords {
		fmt.Fprintf(w, "  %2d. %-20s %s %5.1f%%\n", i+1, e.Word, count(fmt.Sprintf("%4d", e.Count)), e.Percentage)
	}
}
