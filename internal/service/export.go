package service

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"payment-records/internal/model"
)

const exportSheet = "Payments"

var exportHeader = []interface{}{
	"ID", "User", "Method", "Amount", "Payment Date", "Next Renew Date", "Created At",
}

const (
	exportDateLayout     = "Jan 2, 2006"
	exportDateTimeLayout = "Jan 2, 2006 15:04"
)

func writePaymentsWorkbook(w io.Writer, rows []model.PaymentRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return err
	}
	if err := f.SetRowStyle(exportSheet, 1, 1, bold); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{
			row.ID,
			row.UserName,
			row.PaymentType.Label(),
			model.FormatNPR(row.Amount),
			row.PaymentDate.Format(exportDateLayout),
			row.NextRenewDate.Format(exportDateLayout),
			row.CreatedAt.Format(exportDateTimeLayout),
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return fmt.Errorf("write export row %d: %w", row.ID, err)
		}
	}

	if err := f.SetColWidth(exportSheet, "A", "G", 18); err != nil {
		return err
	}

	return f.Write(w)
}
