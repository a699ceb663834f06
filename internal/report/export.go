// Package report writes the processed-calls journal out as an xlsx
// workbook for ops review.
package report

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/udipth01/acefone/internal/dedup"
)

var header = []interface{}{
	"Call ID", "Phone", "Status", "Entity ID", "Entity Kind",
	"Error", "Started At", "Finished At",
}

// WriteWorkbook renders one row per journal entry and saves the workbook
// at path, overwriting any existing file.
func WriteWorkbook(path string, entries []dedup.Entry) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, e := range entries {
		entityID := ""
		if e.EntityID != 0 {
			entityID = strconv.FormatInt(e.EntityID, 10)
		}
		row := []interface{}{
			e.CallID, e.Phone, e.Status, entityID, e.EntityKind,
			e.Error, e.StartedAt, e.FinishedAt,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
