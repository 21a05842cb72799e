// Package export writes filtered series and their drafts to an Excel workbook.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/DoyleJ11/scrim-review/internal/engine"
	"github.com/DoyleJ11/scrim-review/internal/store"
)

const (
	SeriesSheet = "Series"
	DraftsSheet = "Drafts"
)

// Row is one exported series. Draft is the zero record when no event log was
// stored.
type Row struct {
	Series     store.Series
	Draft      engine.DraftRecord
	Resolution engine.Resolution
}

var seriesHeaders = []string{"Series ID", "Start", "Team 1", "Team 2", "Score 1", "Score 2", "Patch"}

func Workbook(rows []Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SeriesSheet); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	if _, err := f.NewSheet(DraftsSheet); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	if err := writeRow(f, SeriesSheet, 1, toCells(seriesHeaders)); err != nil {
		return nil, err
	}
	draftHeaders := append([]string{"Series ID", "Blue", "Red"}, engine.SlotNames()...)
	if err := writeRow(f, DraftsSheet, 1, toCells(draftHeaders)); err != nil {
		return nil, err
	}

	for i, r := range rows {
		s := r.Series
		start := ""
		if s.StartTime != nil {
			start = s.StartTime.UTC().Format(time.RFC3339)
		}
		cells := []any{s.ID, start, s.Team1.Name, s.Team2.Name, score(s.Team1.Score), score(s.Team2.Score), s.Patch}
		if err := writeRow(f, SeriesSheet, i+2, cells); err != nil {
			return nil, err
		}

		draft := []any{s.ID, r.Resolution.BlueLabel, r.Resolution.RedLabel}
		for _, slot := range r.Draft.Named() {
			draft = append(draft, strings.Join(slot.Champions, ", "))
		}
		if err := writeRow(f, DraftsSheet, i+2, draft); err != nil {
			return nil, err
		}
	}

	_ = f.SetColWidth(SeriesSheet, "A", "A", 14)
	_ = f.SetColWidth(SeriesSheet, "B", "D", 22)
	_ = f.SetColWidth(DraftsSheet, "A", "O", 18)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("export: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("export: %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toCells(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func score(p *int) any {
	if p == nil {
		return ""
	}
	return *p
}
