package browser

import (
	"fmt"
	"time"

	"school-admin/internal/domain"
)

// ReceiptIndex maps a custom id to its receipt. It is rebuilt after every
// receipt fetch; when the source repeats a custom id the later receipt wins.
type ReceiptIndex struct {
	byCustomID map[string]domain.Receipt
	duplicates []string
}

func NewReceiptIndex(receipts []domain.Receipt) ReceiptIndex {
	idx := ReceiptIndex{byCustomID: make(map[string]domain.Receipt, len(receipts))}
	for _, r := range receipts {
		if _, seen := idx.byCustomID[r.CustomID]; seen {
			idx.duplicates = append(idx.duplicates, r.CustomID)
		}
		idx.byCustomID[r.CustomID] = r
	}
	return idx
}

func (i ReceiptIndex) Lookup(customID string) (domain.Receipt, bool) {
	r, ok := i.byCustomID[customID]
	return r, ok
}

// Duplicates lists the custom ids seen more than once, in fetch order.
func (i ReceiptIndex) Duplicates() []string { return i.duplicates }

func (i ReceiptIndex) Len() int { return len(i.byCustomID) }

type InstallmentState string

const (
	NotApplicable InstallmentState = "not_applicable"
	Pending       InstallmentState = "pending"
	Paid          InstallmentState = "paid"
)

// InstallmentStatus is the derived payment status of one installment slot.
type InstallmentStatus struct {
	Slot   domain.Slot      `json:"slot"`
	State  InstallmentState `json:"state"`
	PaidOn string           `json:"paidOn,omitempty"`
}

// Display renders the status the way the ledger table shows it.
func (s InstallmentStatus) Display() string {
	switch s.State {
	case NotApplicable:
		return "Not Applicable"
	case Paid:
		return "Paid on " + formatPaidOn(s.PaidOn)
	default:
		return "Pending"
	}
}

// DeriveInstallment decides the status of slot for rec.
func DeriveInstallment(rec domain.FeeRecord, slot domain.Slot, receipts ReceiptIndex) InstallmentStatus {
	st := InstallmentStatus{Slot: slot}
	if !rec.Applicable(slot) {
		st.State = NotApplicable
		return st
	}
	r, ok := receipts.Lookup(rec.CustomID)
	if !ok {
		st.State = Pending
		return st
	}
	date := r.Date(slot)
	if date == nil || *date == "" {
		st.State = Pending
		return st
	}
	st.State = Paid
	st.PaidOn = *date
	return st
}

var paidOnLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

// formatPaidOn renders an ISO date as a short US date (1/15/2024). Values that
// do not parse are shown as received.
func formatPaidOn(v string) string {
	for _, layout := range paidOnLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return fmt.Sprintf("%d/%d/%d", int(t.Month()), t.Day(), t.Year())
		}
	}
	return v
}

// LedgerRow is a fee record joined with its installment statuses.
type LedgerRow struct {
	domain.FeeRecord
	Name         string              `json:"name"`
	Amounts      [3]string           `json:"amounts"`
	Installments [3]InstallmentStatus `json:"installments"`
	Statuses     [3]string           `json:"statuses"`
}

func newLedgerRow(rec domain.FeeRecord, receipts ReceiptIndex) LedgerRow {
	row := LedgerRow{FeeRecord: rec, Name: rec.Name()}
	for i, slot := range domain.Slots {
		st := DeriveInstallment(rec, slot, receipts)
		row.Installments[i] = st
		row.Statuses[i] = st.Display()
		if st.State == NotApplicable {
			row.Amounts[i] = "Not Applicable"
		} else {
			row.Amounts[i] = rec.Amount(slot)
		}
	}
	return row
}
