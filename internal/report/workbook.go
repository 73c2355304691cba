package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/oaps-analytics/zendesk-reporting/internal/domain"
)

// Workbook presentation constants, matching the meeting deck the report
// feeds into.
const (
	colorOver30  = "FF3300"
	colorOver20  = "FF9933"
	colorOver10  = "FFFF99"
	colorUnder10 = "C1F0C8"
	colorHeader  = "E8E8E8"

	ageColumnName     = "Ticket Age Status"
	ageDaysColumnName = "Ticket Age (Days)"
)

var categorySheets = []string{"AIMS", "R&A", "Policy", "Cross-Functional"}

var tabColors = map[string]string{
	"Ticket Breakdown": "FFFF99",
	"AIMS":             "D86DCD",
	"R&A":              "83CCEB",
	"Policy":           "47D359",
	"Cross-Functional": "FFFF00",
}

var workbookHeaders = []string{
	"Ticket ID", "Ticket Subject", "Ticket group", "Ticket Status",
	"Ticket created", "Ticket updated", "Ticket Assignee",
	ageColumnName,
	ageDaysColumnName,
	"Closed by Meeting?",
}

func bucketColor(bucket string) string {
	switch bucket {
	case domain.BucketOver30:
		return colorOver30
	case domain.BucketOver20:
		return colorOver20
	case domain.BucketOver10:
		return colorOver10
	case domain.BucketUnder10:
		return colorUnder10
	}
	return ""
}

// displayDate renders M.D.YYYY without zero padding.
func displayDate(clock *Clock) string {
	now := clock.Now()
	return fmt.Sprintf("%d.%d.%d", int(now.Month()), now.Day(), now.Year())
}

// Workbook renders the rows into the multi-sheet ticket breakdown document
// and returns the file bytes plus the dated filename. The same rows on the
// same day always produce the same filename.
func Workbook(rows []domain.TicketRow, clock *Clock) ([]byte, string, error) {
	today := displayDate(clock)
	filename := fmt.Sprintf("Ticket Breakdown %s.xlsx", today)

	f := excelize.NewFile()
	primary := fmt.Sprintf("Ticket Breakdown %s", today)
	if err := f.SetSheetName("Sheet1", primary); err != nil {
		return nil, "", err
	}

	sheets := []string{primary}
	for _, name := range categorySheets {
		if _, err := f.NewSheet(name); err != nil {
			return nil, "", err
		}
		sheets = append(sheets, name)
	}

	styles, err := newSheetStyles(f)
	if err != nil {
		return nil, "", err
	}

	for i, sheet := range sheets {
		tabKey := sheet
		if i == 0 {
			tabKey = "Ticket Breakdown"
		}
		if color, ok := tabColors[tabKey]; ok {
			c := color
			if err := f.SetSheetProps(sheet, &excelize.SheetPropsOptions{TabColorRGB: &c}); err != nil {
				return nil, "", err
			}
		}
		if err := writeSheet(f, sheet, rows, styles); err != nil {
			return nil, "", err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}
	return buf.Bytes(), filename, nil
}

type sheetStyles struct {
	header  int
	plain   int
	buckets map[string]int
}

func newSheetStyles(f *excelize.File) (*sheetStyles, error) {
	borders := []excelize.Border{
		{Type: "left", Style: 1, Color: "000000"},
		{Type: "right", Style: 1, Color: "000000"},
		{Type: "top", Style: 1, Color: "000000"},
		{Type: "bottom", Style: 1, Color: "000000"},
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{colorHeader}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border:    borders,
	})
	if err != nil {
		return nil, err
	}

	plain, err := f.NewStyle(&excelize.Style{Border: borders})
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]int, 4)
	for _, bucket := range []string{domain.BucketOver30, domain.BucketOver20, domain.BucketOver10, domain.BucketUnder10} {
		style, err := f.NewStyle(&excelize.Style{
			Fill:   excelize.Fill{Type: "pattern", Color: []string{bucketColor(bucket)}, Pattern: 1},
			Border: borders,
		})
		if err != nil {
			return nil, err
		}
		buckets[bucket] = style
	}
	return &sheetStyles{header: header, plain: plain, buckets: buckets}, nil
}

func writeSheet(f *excelize.File, sheet string, rows []domain.TicketRow, styles *sheetStyles) error {
	widths := make([]int, len(workbookHeaders))

	header := make([]any, len(workbookHeaders))
	for i, h := range workbookHeaders {
		header[i] = h
		widths[i] = len(h)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for idx, row := range rows {
		assignee := any(nil)
		if row.AssigneeName != nil {
			assignee = *row.AssigneeName
		} else if row.AssigneeID != nil {
			assignee = *row.AssigneeID
		}
		closed := "No"
		if row.ClosedByMeeting {
			closed = "Yes"
		}
		bucket := ""
		if row.AgeBucket != nil {
			bucket = *row.AgeBucket
		}

		values := []any{
			string(row.ID), row.Subject, derefInt(row.Group), row.Status,
			"", "", assignee,
			bucket,
			row.AgeDays,
			closed,
		}
		cell, err := excelize.CoordinatesToCellName(1, idx+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
		for i, v := range values {
			if l := len(fmt.Sprint(v)); l > widths[i] {
				widths[i] = l
			}
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(workbookHeaders))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", styles.header); err != nil {
		return err
	}

	// Per-row coloring keyed by age bucket.
	for idx, row := range rows {
		style := styles.plain
		if row.AgeBucket != nil {
			if s, ok := styles.buckets[*row.AgeBucket]; ok {
				style = s
			}
		}
		rowNum := idx + 2
		first, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		last, err := excelize.CoordinatesToCellName(len(workbookHeaders), rowNum)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, first, last, style); err != nil {
			return err
		}
	}

	// The raw numeric age stays in the file for export and debugging but is
	// hidden from casual viewing.
	ageDaysCol, err := excelize.ColumnNumberToName(indexOf(workbookHeaders, ageDaysColumnName) + 1)
	if err != nil {
		return err
	}
	if err := f.SetColVisible(sheet, ageDaysCol, false); err != nil {
		return err
	}

	for i := range workbookHeaders {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, float64(widths[i]+1)); err != nil {
			return err
		}
	}
	return nil
}

func derefInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func indexOf(values []string, target string) int {
	for i, v := range values {
		if v == target {
			return i
		}
	}
	return -1
}
