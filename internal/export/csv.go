// Package export flattens the tool catalog into a CSV dataset.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"toolshed/pkg/models"
)

const sep = " | "

var Header = []string{
	"name",
	"description",
	"when_why",
	"notes",
	"how",
	"flags",
	"examples",
	"tips",
	"advanced_tips",
	"advanced_extra",
}

// Row flattens one tool into the column order of Header.
func Row(t models.Tool) []string {
	return []string{
		t.Name,
		t.Description,
		t.WhenWhy,
		t.Notes,
		t.How,
		FlattenFlags(t.Flags),
		FlattenExamples(t.Examples),
		FlattenTips(t.Tips),
		strings.Join(t.Advanced.AdvancedTips, sep),
		strings.Join(t.Advanced.Tips, sep),
	}
}

func FlattenFlags(flags []models.Flag) string {
	parts := make([]string, 0, len(flags))
	for _, f := range flags {
		parts = append(parts, f.Flag+" => "+f.Explanation)
	}
	return strings.Join(parts, sep)
}

func FlattenExamples(examples []models.Example) string {
	parts := make([]string, 0, len(examples))
	for _, e := range examples {
		parts = append(parts, e.Command+" => "+e.Explanation)
	}
	return strings.Join(parts, sep)
}

// FlattenTips keeps the order the tips had in the catalog document.
func FlattenTips(tips models.Tips) string {
	parts := make([]string, 0, len(tips))
	for _, tip := range tips {
		parts = append(parts, tip.Name+": "+tip.Text)
	}
	return strings.Join(parts, sep)
}

// Write emits the header and one row per tool. Lines end in CRLF.
func Write(w io.Writer, tools []models.Tool) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range tools {
		if err := cw.Write(Row(t)); err != nil {
			return fmt.Errorf("write row %q: %w", t.Name, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFile creates outPath (and its directory) and writes the dataset.
func WriteFile(outPath string, tools []models.Tool) error {
	if dir := filepath.Dir(outPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}

	if err := Write(f, tools); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
