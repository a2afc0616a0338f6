package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"school-admin/internal/domain"

	"golang.org/x/sync/errgroup"
)

// FeeSource is the part of the school API the fee ledger reads and writes.
type FeeSource interface {
	ListFeeRecords(ctx context.Context) ([]domain.FeeRecord, error)
	ListFeeRecordsByClass(ctx context.Context, class string) ([]domain.FeeRecord, error)
	ListReceipts(ctx context.Context) ([]domain.Receipt, error)
	FindReceipt(ctx context.Context, customID string) (*domain.Receipt, error)
	CreateReceipt(ctx context.Context, r domain.Receipt) error
	UpdateReceipt(ctx context.Context, r domain.Receipt) error
	DownloadFeeCSV(ctx context.Context) ([]byte, error)
}

var FeeColumns = []Column{
	{Field: "customId", Header: "Custom ID"},
	{Field: "name", Header: "Name"},
	{Field: "class", Header: "Class"},
	{Field: "email", Header: "Email"},
	{Field: "mobileNumber", Header: "Mobile Number"},
	{Field: "firstInstallment", Header: "First Installment"},
	{Field: "secondInstallment", Header: "Second Installment"},
	{Field: "thirdInstallment", Header: "Third Installment"},
}

type LedgerView struct {
	Columns  []Column    `json:"columns"`
	Rows     []LedgerRow `json:"rows"`
	Total    int         `json:"total"`
	Filters  FilterState `json:"filters"`
	Sort     SortState   `json:"sort"`
	Loading  bool        `json:"loading"`
	Error    string      `json:"error,omitempty"`
	Class    string      `json:"class"`
	Classes  []string    `json:"classes"`
	Receipts int         `json:"receipts"`
	Receipt  ReceiptForm `json:"receipt"`
}

// FeeBrowser lists the fee records of one class together with their
// installment statuses, and owns the receipt modal.
type FeeBrowser struct {
	src     FeeSource
	notify  Notifier
	timeout time.Duration
	table   *Table[domain.FeeRecord]

	mu         sync.Mutex
	class      string
	receipts   ReceiptIndex
	receiptSeq uint64
	modal      receiptModal
}

func NewFeeBrowser(src FeeSource, notify Notifier, timeout time.Duration) *FeeBrowser {
	if notify == nil {
		notify = LogNotifier{Prefix: "[FEES] "}
	}
	return &FeeBrowser{
		src:      src,
		notify:   notify,
		timeout:  timeout,
		table:    NewTable[domain.FeeRecord](FeeColumns, timeout),
		receipts: NewReceiptIndex(nil),
	}
}

// Mount performs the initial fetch of every fee record and every receipt.
func (b *FeeBrowser) Mount(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return b.Load(ctx, "") })
	g.Go(func() error { return b.ReloadReceipts(ctx) })
	return g.Wait()
}

// Load replaces the held records with those of class; "" loads every class.
func (b *FeeBrowser) Load(ctx context.Context, class string) error {
	if err := domain.ValidateClass(class); err != nil {
		return err
	}

	b.mu.Lock()
	b.class = class
	b.mu.Unlock()

	failure := "Failed to fetch fee details"
	if class != "" {
		failure = "Failed to fetch details for class " + class
	}
	err := b.table.Load(ctx, func(ctx context.Context) ([]domain.FeeRecord, error) {
		if class == "" {
			return b.src.ListFeeRecords(ctx)
		}
		return b.src.ListFeeRecordsByClass(ctx, class)
	}, failure)
	if err != nil && !errors.Is(err, ErrSuperseded) {
		log.Printf("[FEES] load class=%q: %v", class, err)
		b.notify.Notify(ctx, LevelError, failure)
	}
	return err
}

// ReloadReceipts rebuilds the receipt index. On failure the previous index is kept.
func (b *FeeBrowser) ReloadReceipts(ctx context.Context) error {
	b.mu.Lock()
	b.receiptSeq++
	seq := b.receiptSeq
	b.mu.Unlock()

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	receipts, err := b.src.ListReceipts(ctx)
	if err != nil {
		log.Printf("[FEES] load receipts: %v", err)
		b.notify.Notify(ctx, LevelError, "Failed to fetch receipt information")
		return fmt.Errorf("load receipts: %w", err)
	}

	idx := NewReceiptIndex(receipts)
	if dups := idx.Duplicates(); len(dups) > 0 {
		log.Printf("[FEES] duplicate receipts for custom ids %v, keeping the last of each", dups)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if seq != b.receiptSeq {
		return ErrSuperseded
	}
	b.receipts = idx
	return nil
}

// DownloadCSV relays the fee CSV produced by the school API.
func (b *FeeBrowser) DownloadCSV(ctx context.Context) ([]byte, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	data, err := b.src.DownloadFeeCSV(ctx)
	if err != nil {
		log.Printf("[FEES] download csv: %v", err)
		b.notify.Notify(ctx, LevelError, "Failed to download CSV file")
		return nil, fmt.Errorf("download fee csv: %w", err)
	}
	return data, nil
}

func (b *FeeBrowser) SetFilter(field, pattern string) error { return b.table.SetFilter(field, pattern) }

func (b *FeeBrowser) SetSort(field string) error { return b.table.SetSort(field) }

func (b *FeeBrowser) View() LedgerView {
	tv := b.table.View()

	b.mu.Lock()
	class := b.class
	receipts := b.receipts
	form := b.modal.form()
	b.mu.Unlock()

	rows := make([]LedgerRow, 0, len(tv.Rows))
	for _, rec := range tv.Rows {
		rows = append(rows, newLedgerRow(rec, receipts))
	}
	return LedgerView{
		Columns:  tv.Columns,
		Rows:     rows,
		Total:    tv.Total,
		Filters:  tv.Filters,
		Sort:     tv.Sort,
		Loading:  tv.Loading,
		Error:    tv.Error,
		Class:    class,
		Classes:  domain.Classes,
		Receipts: receipts.Len(),
		Receipt:  form,
	}
}

// Close cancels in-flight loads and discards a pending receipt lookup.
func (b *FeeBrowser) Close() {
	b.table.Close()
	b.mu.Lock()
	b.modal.reset()
	b.mu.Unlock()
}
