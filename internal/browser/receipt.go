package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"school-admin/internal/domain"

	"golang.org/x/sync/errgroup"
)

type ReceiptMode string

const (
	ReceiptCreate ReceiptMode = "create"
	ReceiptUpdate ReceiptMode = "update"
)

const receiptDateLayout = "2006-01-02"

// ReceiptForm is a snapshot of the receipt modal.
type ReceiptForm struct {
	Open         bool          `json:"open"`
	Loading      bool          `json:"loading"`
	Submitting   bool          `json:"submitting"`
	Mode         ReceiptMode   `json:"mode,omitempty"`
	CustomID     string        `json:"customId"`
	Name         string        `json:"name"`
	ApplicantID  string        `json:"applicantId"`
	Installments []domain.Slot `json:"installments"`
	Date         string        `json:"date"`
	CarriedDates [3]*string    `json:"carriedDates"`
	Error        string        `json:"error,omitempty"`
}

// ReceiptEdit changes several form fields at once. Nil fields are left as they are.
type ReceiptEdit struct {
	CustomID     *string
	Installments []domain.Slot
	Date         *string
}

// SubmittedReceipt is what a successful submit sent to the school API.
type SubmittedReceipt struct {
	Mode    ReceiptMode    `json:"mode"`
	Receipt domain.Receipt `json:"receipt"`
}

// receiptModal is guarded by FeeBrowser.mu. gen grows on every open and
// close so a lookup or submit started under an older gen never writes back.
type receiptModal struct {
	gen        uint64
	open       bool
	loading    bool
	submitting bool
	mode       ReceiptMode

	customID    string
	name        string
	applicantID string
	selected    [3]bool
	date        string
	carried     [3]*string
	err         string
}

func (m *receiptModal) reset() {
	*m = receiptModal{gen: m.gen + 1}
}

func (m *receiptModal) form() ReceiptForm {
	f := ReceiptForm{
		Open:         m.open,
		Loading:      m.loading,
		Submitting:   m.submitting,
		Mode:         m.mode,
		CustomID:     m.customID,
		Name:         m.name,
		ApplicantID:  m.applicantID,
		Installments: []domain.Slot{},
		Date:         m.date,
		CarriedDates: m.carried,
		Error:        m.err,
	}
	for i, slot := range domain.Slots {
		if m.selected[i] {
			f.Installments = append(f.Installments, slot)
		}
	}
	return f
}

func (m *receiptModal) anySelected() bool {
	for _, s := range m.selected {
		if s {
			return true
		}
	}
	return false
}

func (m *receiptModal) validate() error {
	if m.customID == "" || !m.anySelected() || m.date == "" {
		return &ValidationError{Field: "receipt", Message: "Please fill in all required fields"}
	}
	if _, err := time.Parse(receiptDateLayout, m.date); err != nil {
		return &ValidationError{Field: "date", Message: fmt.Sprintf("date %q must be YYYY-MM-DD", m.date)}
	}
	return nil
}

var (
	errReceiptClosed     = &ValidationError{Field: "receipt", Message: "receipt form is not open"}
	errReceiptLoading    = &ValidationError{Field: "receipt", Message: "receipt data is still loading"}
	errReceiptSubmitting = &ValidationError{Field: "receipt", Message: "receipt is already being submitted"}
)

// editable reports why the form cannot take input. The form is interactive
// only once the lookup has settled the mode and while no submit is in flight.
func (m *receiptModal) editable() error {
	switch {
	case !m.open:
		return errReceiptClosed
	case m.loading:
		return errReceiptLoading
	case m.submitting:
		return errReceiptSubmitting
	}
	return nil
}

// OpenReceipt opens the modal for a student and looks up an existing receipt.
// A found receipt opens update mode with its dates carried over; otherwise the
// modal opens in create mode. A lookup overtaken by another open or a close
// returns ErrSuperseded.
func (b *FeeBrowser) OpenReceipt(ctx context.Context, customID, name, applicantID string) (ReceiptForm, error) {
	b.mu.Lock()
	b.modal.reset()
	b.modal.open = true
	b.modal.mode = ReceiptCreate
	b.modal.customID = customID
	b.modal.name = name
	b.modal.applicantID = applicantID
	gen := b.modal.gen
	if customID == "" {
		defer b.mu.Unlock()
		return b.modal.form(), nil
	}
	b.modal.loading = true
	b.mu.Unlock()

	lctx := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	rec, err := b.src.FindReceipt(lctx, customID)

	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.modal.gen {
		return ReceiptForm{}, ErrSuperseded
	}
	b.modal.loading = false

	switch {
	case err == nil && rec != nil:
		b.modal.mode = ReceiptUpdate
		for i, slot := range domain.Slots {
			b.modal.carried[i] = rec.Date(slot)
		}
	case err == nil || errors.Is(err, domain.ErrReceiptNotFound):
	default:
		log.Printf("[FEES] receipt lookup customId=%s: %v", customID, err)
		b.notify.Notify(ctx, LevelError, "Failed to fetch receipt data")
	}
	return b.modal.form(), nil
}

func (b *FeeBrowser) SetInstallment(slot domain.Slot, checked bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.modal.editable(); err != nil {
		return err
	}
	if !slot.Valid() {
		return &ValidationError{Field: "installments", Message: fmt.Sprintf("unknown installment %d", slot)}
	}
	b.modal.selected[slot-1] = checked
	return nil
}

func (b *FeeBrowser) SetDate(date string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.modal.editable(); err != nil {
		return err
	}
	b.modal.date = date
	return nil
}

func (b *FeeBrowser) SetCustomID(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.modal.editable(); err != nil {
		return err
	}
	b.modal.customID = id
	return nil
}

// EditReceipt applies an edit atomically. Installments, when given, replaces
// the whole selection.
func (b *FeeBrowser) EditReceipt(edit ReceiptEdit) (ReceiptForm, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.modal.editable(); err != nil {
		return ReceiptForm{}, err
	}

	var selected [3]bool
	for _, slot := range edit.Installments {
		if !slot.Valid() {
			return ReceiptForm{}, &ValidationError{Field: "installments", Message: fmt.Sprintf("unknown installment %d", slot)}
		}
		selected[slot-1] = true
	}
	if edit.Installments != nil {
		b.modal.selected = selected
	}
	if edit.CustomID != nil {
		b.modal.customID = *edit.CustomID
	}
	if edit.Date != nil {
		b.modal.date = *edit.Date
	}
	return b.modal.form(), nil
}

func (b *FeeBrowser) Receipt() ReceiptForm {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.modal.form()
}

func (b *FeeBrowser) CloseReceipt() {
	b.mu.Lock()
	b.modal.reset()
	b.mu.Unlock()
}

// SubmitReceipt validates the form and creates or updates the receipt. On
// success the modal closes and the current class and the receipts are fetched
// again; on failure the modal stays open with the error.
func (b *FeeBrowser) SubmitReceipt(ctx context.Context) (SubmittedReceipt, error) {
	b.mu.Lock()
	m := b.modal
	b.mu.Unlock()

	if err := m.editable(); err != nil {
		return SubmittedReceipt{}, err
	}
	if err := m.validate(); err != nil {
		b.notify.Notify(ctx, LevelError, "Please fill in all required fields")
		return SubmittedReceipt{}, err
	}
	rec, ok := b.table.Find(func(r domain.FeeRecord) bool { return r.CustomID == m.customID })
	if !ok {
		b.notify.Notify(ctx, LevelError, "Student data not found")
		return SubmittedReceipt{}, &ValidationError{Field: "customId", Message: "Student data not found"}
	}

	b.mu.Lock()
	if b.modal.gen != m.gen {
		b.mu.Unlock()
		return SubmittedReceipt{}, ErrSuperseded
	}
	// another submit may have started since the snapshot
	if err := b.modal.editable(); err != nil {
		b.mu.Unlock()
		return SubmittedReceipt{}, err
	}
	b.modal.submitting = true
	b.modal.err = ""
	b.mu.Unlock()

	out := SubmittedReceipt{Mode: m.mode, Receipt: buildReceipt(rec, m)}

	wctx := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	var err error
	if m.mode == ReceiptUpdate {
		err = b.src.UpdateReceipt(wctx, out.Receipt)
	} else {
		err = b.src.CreateReceipt(wctx, out.Receipt)
	}

	if err != nil {
		b.mu.Lock()
		if b.modal.gen == m.gen {
			b.modal.submitting = false
			b.modal.err = "Failed to generate receipt"
		}
		b.mu.Unlock()
		log.Printf("[FEES] %s receipt customId=%s: %v", m.mode, m.customID, err)
		b.notify.Notify(ctx, LevelError, "Failed to generate receipt")
		return SubmittedReceipt{}, fmt.Errorf("submit receipt: %w", err)
	}

	b.notify.Notify(ctx, LevelSuccess, "Receipt generated successfully!")

	b.mu.Lock()
	if b.modal.gen == m.gen {
		b.modal.reset()
	}
	class := b.class
	b.mu.Unlock()

	// Reload failures are reported through the view and a notification.
	var g errgroup.Group
	g.Go(func() error { return b.Load(ctx, class) })
	g.Go(func() error { return b.ReloadReceipts(ctx) })
	_ = g.Wait()

	return out, nil
}

// buildReceipt carries every amount of rec and sets the chosen date on the
// selected slots. Unselected slots keep the date loaded with the receipt.
func buildReceipt(rec domain.FeeRecord, m receiptModal) domain.Receipt {
	var dates [3]*string
	for i := range dates {
		if m.selected[i] {
			d := m.date
			dates[i] = &d
		} else {
			dates[i] = m.carried[i]
		}
	}
	return domain.Receipt{
		CustomID:              m.customID,
		FirstInstallment:      amountOrZero(rec.FirstInstallment),
		FirstInstallmentDate:  dates[0],
		SecondInstallment:     amountOrZero(rec.SecondInstallment),
		SecondInstallmentDate: dates[1],
		ThirdInstallment:      amountOrZero(rec.ThirdInstallment),
		ThirdInstallmentDate:  dates[2],
	}
}

func amountOrZero(v string) string {
	if v == "" {
		return "0"
	}
	return v
}
