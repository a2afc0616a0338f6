package service

import (
	"school-admin/internal/browser"
	"school-admin/internal/domain"
)

// LeadSheet renders the visible rows of a lead view in column order.
func LeadSheet(v browser.LeadView) Sheet {
	sheet := Sheet{Name: v.Selected.TabLabel()}
	for _, c := range v.Columns {
		sheet.Headers = append(sheet.Headers, c.Header)
	}
	for _, lead := range v.Rows {
		row := make([]string, 0, len(v.Columns))
		for _, c := range v.Columns {
			val, _ := lead.Field(c.Field)
			row = append(row, val)
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet
}

var ledgerHeaders = []string{
	"Custom ID", "Applicant ID", "Name", "Class", "Email", "Mobile Number", "Total Yearly Payment",
	"First Installment", "First Installment Status",
	"Second Installment", "Second Installment Status",
	"Third Installment", "Third Installment Status",
}

// LedgerSheet renders the visible ledger rows with their derived statuses.
func LedgerSheet(v browser.LedgerView) Sheet {
	name := v.Class
	if name == "" {
		name = "All Classes"
	}
	sheet := Sheet{Name: name, Headers: ledgerHeaders}
	for _, r := range v.Rows {
		row := []string{r.CustomID, r.ApplicantID, r.Name, r.Class, r.Email, r.MobileNumber, r.TotalYearlyPayment}
		for i := range domain.Slots {
			row = append(row, r.Amounts[i], r.Statuses[i])
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet
}
