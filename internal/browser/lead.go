package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"maps"
	"sync"
	"time"

	"school-admin/internal/domain"

	"golang.org/x/sync/errgroup"
)

// LeadSource is the part of the school API the lead browser reads and writes.
type LeadSource interface {
	ListLeadsByStatus(ctx context.Context, status domain.LeadStatus, page domain.Page) ([]domain.Lead, error)
	CountLeads(ctx context.Context, status domain.LeadStatus) (int, error)
	UpdateLeadStatus(ctx context.Context, uuid string, status domain.LeadStatus) error
}

var LeadColumns = []Column{
	{Field: "customId", Header: "Custom ID"},
	{Field: "fullName", Header: "Full Name"},
	{Field: "email", Header: "Email"},
	{Field: "phone", Header: "Phone"},
	{Field: "category", Header: "Category"},
	{Field: "status", Header: "Status"},
}

type Tab struct {
	Status domain.LeadStatus `json:"status"`
	Label  string            `json:"label"`
	Count  int               `json:"count"`
}

type LeadView struct {
	View[domain.Lead]
	Selected domain.LeadStatus   `json:"selected"`
	Tabs     []Tab               `json:"tabs"`
	Options  []domain.LeadStatus `json:"statusOptions"`
}

// LeadBrowser lists leads of one status tab and moves leads between statuses.
type LeadBrowser struct {
	src     LeadSource
	notify  Notifier
	page    domain.Page
	timeout time.Duration
	table   *Table[domain.Lead]

	mu       sync.Mutex
	selected domain.LeadStatus
	counts   domain.TabCounts
	countSeq uint64
}

func NewLeadBrowser(src LeadSource, notify Notifier, page domain.Page, timeout time.Duration) *LeadBrowser {
	if notify == nil {
		notify = LogNotifier{Prefix: "[LEADS] "}
	}
	return &LeadBrowser{
		src:      src,
		notify:   notify,
		page:     page,
		timeout:  timeout,
		table:    NewTable[domain.Lead](LeadColumns, timeout),
		selected: domain.StatusRaw,
		counts:   domain.TabCounts{},
	}
}

// SelectTab loads the page of the given status and refreshes every tab count.
// The two requests run concurrently; only the page load can fail.
func (b *LeadBrowser) SelectTab(ctx context.Context, status domain.LeadStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownStatus, status)
	}

	b.mu.Lock()
	b.selected = status
	b.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error { return b.Load(ctx, status) })
	g.Go(func() error {
		b.RefreshCounts(ctx)
		return nil
	})
	return g.Wait()
}

// Load replaces the held leads with the page of status.
func (b *LeadBrowser) Load(ctx context.Context, status domain.LeadStatus) error {
	err := b.table.Load(ctx, func(ctx context.Context) ([]domain.Lead, error) {
		return b.src.ListLeadsByStatus(ctx, status, b.page)
	}, "Failed to fetch leads")
	if err != nil && !errors.Is(err, ErrSuperseded) {
		log.Printf("[LEADS] load status=%s: %v", status, err)
		b.notify.Notify(ctx, LevelError, "Failed to fetch leads")
	}
	return err
}

// RefreshCounts fetches the count of every status. A status whose count
// cannot be fetched shows 0. A refresh overtaken by a newer one is dropped.
func (b *LeadBrowser) RefreshCounts(ctx context.Context) domain.TabCounts {
	b.mu.Lock()
	b.countSeq++
	seq := b.countSeq
	b.mu.Unlock()

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	counts := make(domain.TabCounts, len(domain.LeadStatuses))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, status := range domain.LeadStatuses {
		status := status
		g.Go(func() error {
			n, err := b.src.CountLeads(gctx, status)
			if err != nil {
				log.Printf("[LEADS] count status=%s: %v", status, err)
				n = 0
			}
			mu.Lock()
			counts[status] = n
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	if seq == b.countSeq {
		b.counts = counts
	}
	return maps.Clone(b.counts)
}

// ChangeStatus asks the school API to move a lead to status. The browser keeps
// no local copy of the new status: on success the current tab and the counts
// are fetched again, on failure the view is left as it was.
func (b *LeadBrowser) ChangeStatus(ctx context.Context, uuid string, status domain.LeadStatus) error {
	if !status.Valid() {
		return &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}
	if uuid == "" {
		return &ValidationError{Field: "uuid", Message: "uuid is required"}
	}
	if _, ok := b.table.Find(func(l domain.Lead) bool { return l.UUID == uuid }); !ok {
		return &ValidationError{Field: "uuid", Message: fmt.Sprintf("lead %s is not in the current view", uuid)}
	}

	wctx := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	if err := b.src.UpdateLeadStatus(wctx, uuid, status); err != nil {
		log.Printf("[LEADS] update status uuid=%s status=%s: %v", uuid, status, err)
		b.notify.Notify(ctx, LevelError, "Failed to update status")
		return fmt.Errorf("update lead status: %w", err)
	}

	b.mu.Lock()
	selected := b.selected
	b.mu.Unlock()

	// A failed reload is already reported through the view and a notification.
	_ = b.SelectTab(ctx, selected)
	return nil
}

func (b *LeadBrowser) SetFilter(field, pattern string) error { return b.table.SetFilter(field, pattern) }

func (b *LeadBrowser) SetSort(field string) error { return b.table.SetSort(field) }

func (b *LeadBrowser) View() LeadView {
	b.mu.Lock()
	selected := b.selected
	tabs := make([]Tab, 0, len(domain.LeadStatuses))
	for _, s := range domain.LeadStatuses {
		tabs = append(tabs, Tab{Status: s, Label: s.TabLabel(), Count: b.counts[s]})
	}
	b.mu.Unlock()

	return LeadView{
		View:     b.table.View(),
		Selected: selected,
		Tabs:     tabs,
		Options:  domain.LeadStatuses,
	}
}

func (b *LeadBrowser) Close() { b.table.Close() }
