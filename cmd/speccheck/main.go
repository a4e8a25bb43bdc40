// Package main loads a header specification document and prints a summary.
// It is a developer tool for checking custom documents before pointing
// hdrscan at them.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"hdrscan/pkg/checks"
	"hdrscan/pkg/refspec"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: speccheck <path-or-url> [converted-output-path]")
		os.Exit(1)
	}

	source := os.Args[1]
	fmt.Printf("Loading document: %s\n\n", source)

	loader, err := refspec.NewLoader(refspec.LoaderOptions{})
	if err != nil {
		color.Red("Error creating loader: %v\n", err)
		os.Exit(1)
	}

	doc, err := loader.Load(context.Background(), source)
	if err != nil {
		color.Red("Error loading document: %v\n", err)
		os.Exit(1)
	}

	color.Green("✅ Successfully parsed document!\n")
	if doc.LastUpdate != "" {
		color.Cyan("Last update: %s\n", doc.LastUpdate)
	}
	color.Cyan("Headers: %d\n", len(doc.Headers))

	fmt.Println("\n📋 Entries:")
	valued := 0
	for i, h := range doc.Headers {
		if h.Value == "" {
			fmt.Printf("  [%d] %s\n", i+1, h.Name)
			continue
		}
		valued++
		fmt.Printf("  [%d] %s: %s\n", i+1, h.Name, truncateString(h.Value, 60))
	}

	if dups := doc.Duplicates(); len(dups) > 0 {
		color.Yellow("\n⚠ %d entries repeat an earlier header and are ignored: %s\n",
			len(dups), strings.Join(dups, ", "))
	}

	fmt.Println("\n🔍 Usable as:")
	if valued > 0 {
		fmt.Printf("  - %s reference (%d entries with an expected value)\n", checks.KindValued, valued)
	}
	fmt.Printf("  - %s reference (%d names)\n", checks.KindPresence, doc.Presence().Len())

	if len(os.Args) > 2 {
		outputPath := os.Args[2]
		if err := refspec.SaveFile(doc, outputPath); err != nil {
			color.Red("Error saving document: %v\n", err)
			os.Exit(1)
		}
		color.Green("\n✅ Saved converted document to: %s\n", outputPath)
	}
}

// truncateString shortens a string to maxLen runes
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
