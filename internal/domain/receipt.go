package domain

import "errors"

type Receipt struct {
	CustomID              string  `json:"customId"`
	FirstInstallment      string  `json:"firstInstallment"`
	FirstInstallmentDate  *string `json:"firstInstallmentDate"`
	SecondInstallment     string  `json:"secondInstallment"`
	SecondInstallmentDate *string `json:"secondInstallmentDate"`
	ThirdInstallment      string  `json:"thirdInstallment"`
	ThirdInstallmentDate  *string `json:"thirdInstallmentDate"`
}

// Date returns the paid-on date of a slot, or nil when unpaid.
func (r Receipt) Date(s Slot) *string {
	switch s {
	case FirstSlot:
		return r.FirstInstallmentDate
	case SecondSlot:
		return r.SecondInstallmentDate
	case ThirdSlot:
		return r.ThirdInstallmentDate
	}
	return nil
}

// ErrReceiptNotFound reports that no receipt exists yet for a custom id.
var ErrReceiptNotFound = errors.New("receipt not found")
