package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// leadingNumber matches the numeric prefix of an amount such as "1200.50 INR".
var leadingNumber = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)

type FeeRecord struct {
	UUID               string `json:"uuid"`
	CustomID           string `json:"customId"`
	ApplicantID        string `json:"applicantId"`
	FirstName          string `json:"firstName"`
	LastName           string `json:"lastName"`
	Email              string `json:"email"`
	Class              string `json:"class"`
	MobileNumber       string `json:"mobileNumber"`
	TotalYearlyPayment string `json:"totalYearlyPayment"`
	FirstInstallment   string `json:"firstInstallment"`
	SecondInstallment  string `json:"secondInstallment"`
	ThirdInstallment   string `json:"thirdInstallment"`
}

func (f FeeRecord) Key() string { return f.UUID }

func (f FeeRecord) Name() string {
	return strings.TrimSpace(f.FirstName + " " + f.LastName)
}

func (f FeeRecord) Field(name string) (string, bool) {
	switch name {
	case "uuid":
		return f.UUID, true
	case "customId":
		return f.CustomID, true
	case "applicantId":
		return f.ApplicantID, true
	case "name":
		return f.Name(), true
	case "firstName":
		return f.FirstName, true
	case "lastName":
		return f.LastName, true
	case "email":
		return f.Email, true
	case "class":
		return f.Class, true
	case "mobileNumber":
		return f.MobileNumber, true
	case "firstInstallment":
		return f.FirstInstallment, true
	case "secondInstallment":
		return f.SecondInstallment, true
	case "thirdInstallment":
		return f.ThirdInstallment, true
	}
	return "", false
}

// Slot identifies one of the three installment tranches, numbered from 1.
type Slot int

const (
	FirstSlot  Slot = 1
	SecondSlot Slot = 2
	ThirdSlot  Slot = 3
)

var Slots = []Slot{FirstSlot, SecondSlot, ThirdSlot}

func (s Slot) Valid() bool { return s >= FirstSlot && s <= ThirdSlot }

// Amount returns the raw amount string of the slot.
func (f FeeRecord) Amount(s Slot) string {
	switch s {
	case FirstSlot:
		return f.FirstInstallment
	case SecondSlot:
		return f.SecondInstallment
	case ThirdSlot:
		return f.ThirdInstallment
	}
	return ""
}

// Applicable reports whether the slot carries a positive amount. Only the
// leading number counts, so "12abc" is 12 and "n/a" is not applicable.
func (f FeeRecord) Applicable(s Slot) bool {
	return ParseAmount(f.Amount(s)) > 0
}

// ParseAmount reads the leading number of v, ignoring surrounding space and
// any trailing text. It returns 0 when v does not start with a number.
func ParseAmount(v string) float64 {
	m := leadingNumber.FindString(strings.TrimSpace(v))
	if m == "" {
		return 0
	}
	// out of range parses to ±Inf
	n, _ := strconv.ParseFloat(m, 64)
	return n
}
