package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownStatus = errors.New("unknown lead status")

type LeadStatus string

const (
	StatusRaw            LeadStatus = "raw"
	StatusInterested     LeadStatus = "interested"
	StatusFollowUp       LeadStatus = "followUp"
	StatusVisitScheduled LeadStatus = "visitScheduled"
	StatusConverted      LeadStatus = "converted"
	StatusNotInterested  LeadStatus = "notInterested"
)

// LeadStatuses lists the statuses in tab order.
var LeadStatuses = []LeadStatus{
	StatusRaw,
	StatusInterested,
	StatusFollowUp,
	StatusVisitScheduled,
	StatusConverted,
	StatusNotInterested,
}

var tabLabels = map[LeadStatus]string{
	StatusRaw:            "Raw",
	StatusInterested:     "Interested",
	StatusFollowUp:       "FollowUp",
	StatusVisitScheduled: "Visit Scheduled",
	StatusConverted:      "Converted",
	StatusNotInterested:  "Not Interested",
}

// TabLabel returns the label shown on the status tab.
func (s LeadStatus) TabLabel() string {
	if l, ok := tabLabels[s]; ok {
		return l
	}
	return string(s)
}

func (s LeadStatus) Valid() bool {
	_, ok := tabLabels[s]
	return ok
}

// ParseLeadStatus accepts a wire value ("visitScheduled") or a tab label
// ("Visit Scheduled"). An empty value selects the raw tab.
func ParseLeadStatus(v string) (LeadStatus, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return StatusRaw, nil
	}
	if s := LeadStatus(v); s.Valid() {
		return s, nil
	}
	for s, label := range tabLabels {
		if strings.EqualFold(label, v) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, v)
}

// TabCounts holds the number of leads per status tab.
type TabCounts map[LeadStatus]int

// Page selects the slice of the status list requested from the school API.
type Page struct {
	Offset   int
	PageSize int
}

type Lead struct {
	UUID     string     `json:"uuid"`
	FullName string     `json:"fullName"`
	Email    string     `json:"email"`
	Phone    string     `json:"phone"`
	CustomID string     `json:"customId"`
	Category string     `json:"category"`
	Status   LeadStatus `json:"status"`
}

func (l Lead) Key() string { return l.UUID }

func (l Lead) Field(name string) (string, bool) {
	switch name {
	case "uuid":
		return l.UUID, true
	case "fullName":
		return l.FullName, true
	case "email":
		return l.Email, true
	case "phone":
		return l.Phone, true
	case "customId":
		return l.CustomID, true
	case "category":
		return l.Category, true
	case "status":
		return string(l.Status), true
	}
	return "", false
}
