// Package report renders dead code blocks for the analyze command.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/l3aro/go-undead/pkg/model"
)

// Format names an output format.
type Format string

const (
	Text  Format = "text"
	CSV   Format = "csv"
	JSON  Format = "json"
	Table Format = "table"
)

// Formats lists the supported formats.
var Formats = []Format{Text, CSV, JSON, Table}

// ParseFormat validates a format name, case-insensitively.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q (want text, csv, json or table)", name)
}

// jsonBlock is the JSON shape of one dead block.
type jsonBlock struct {
	SourceFile        string `json:"source_file"`
	FilePC            string `json:"file_pc,omitempty"`
	StartLine         int    `json:"start_line"`
	EndLine           int    `json:"end_line,omitempty"`
	PresenceCondition string `json:"presence_condition,omitempty"`
}

// Write renders blocks to w in format, keeping their order.
func Write(w io.Writer, format Format, blocks []model.DeadCodeBlock) error {
	switch format {
	case Text, "":
		return writeText(w, blocks)
	case CSV:
		return writeCSV(w, blocks)
	case JSON:
		return writeJSON(w, blocks)
	case Table:
		return writeTable(w, blocks)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeText(w io.Writer, blocks []model.DeadCodeBlock) error {
	for _, b := range blocks {
		if _, err := fmt.Fprintln(w, b.String()); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(w io.Writer, blocks []model.DeadCodeBlock) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(model.DeadCodeHeader); err != nil {
		return err
	}
	for _, b := range blocks {
		if err := cw.Write(b.Row()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, blocks []model.DeadCodeBlock) error {
	out := make([]jsonBlock, 0, len(blocks))
	for _, b := range blocks {
		jb := jsonBlock{
			SourceFile: b.SourceFile(),
			StartLine:  b.StartLine(),
			EndLine:    b.EndLine(),
		}
		if pc := b.FilePresenceCondition(); pc != nil {
			jb.FilePC = pc.String()
		}
		if pc := b.PresenceCondition(); pc != nil {
			jb.PresenceCondition = pc.String()
		}
		out = append(out, jb)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeTable(w io.Writer, blocks []model.DeadCodeBlock) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader(model.DeadCodeHeader)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_LEFT,
	})

	files := make(map[string]struct{})
	for _, b := range blocks {
		files[b.SourceFile()] = struct{}{}
		table.Append(b.Row())
	}
	table.SetFooter([]string{
		fmt.Sprintf("Files %d", len(files)),
		"", "", "",
		fmt.Sprintf("Dead blocks %d", len(blocks)),
	})
	table.Render()
	return nil
}
