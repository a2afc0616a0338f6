package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"school-admin/internal/browser"
	"school-admin/internal/domain"

	"golang.org/x/sync/errgroup"
)

// SchoolSource is the school API as seen by both browsers.
type SchoolSource interface {
	browser.LeadSource
	browser.FeeSource
}

type AuditRecorder interface {
	Record(ctx context.Context, e domain.AuditEntry) error
}

type Exporter interface {
	StartExport(ctx context.Context, userID int64, kind string, filters any, sheet Sheet) (string, error)
}

// NotifierFactory builds the notifier one browser of one admin reports to.
type NotifierFactory func(userID int64, prefix string) browser.Notifier

type WorkspaceConfig struct {
	Page    domain.Page
	Timeout time.Duration
}

// Workspace is the pair of browsers one admin works with.
type Workspace struct {
	UserID int64
	Leads  *browser.LeadBrowser
	Fees   *browser.FeeBrowser

	mount sync.Once
}

// Workspaces keeps one workspace per admin. Nothing is shared between admins.
type Workspaces struct {
	src      SchoolSource
	notifier NotifierFactory
	audit    AuditRecorder
	exports  Exporter
	cfg      WorkspaceConfig
	now      func() time.Time

	mu     sync.Mutex
	byUser map[int64]*Workspace
}

func NewWorkspaces(src SchoolSource, notifier NotifierFactory, audit AuditRecorder, exports Exporter, cfg WorkspaceConfig) *Workspaces {
	if notifier == nil {
		notifier = func(_ int64, prefix string) browser.Notifier { return browser.LogNotifier{Prefix: prefix} }
	}
	return &Workspaces{
		src:      src,
		notifier: notifier,
		audit:    audit,
		exports:  exports,
		cfg:      cfg,
		now:      time.Now,
		byUser:   make(map[int64]*Workspace),
	}
}

// Get returns the admin's workspace. The first call performs the initial
// loads: the raw tab with all counts, every fee record and every receipt.
// Load failures are reported through the views and notifications.
func (w *Workspaces) Get(ctx context.Context, userID int64) *Workspace {
	w.mu.Lock()
	ws, ok := w.byUser[userID]
	if !ok {
		ws = &Workspace{
			UserID: userID,
			Leads:  browser.NewLeadBrowser(w.src, w.notifier(userID, "[LEADS] "), w.cfg.Page, w.cfg.Timeout),
			Fees:   browser.NewFeeBrowser(w.src, w.notifier(userID, "[FEES] "), w.cfg.Timeout),
		}
		w.byUser[userID] = ws
	}
	w.mu.Unlock()

	ws.mount.Do(func() {
		var g errgroup.Group
		g.Go(func() error { return ws.Leads.SelectTab(ctx, domain.StatusRaw) })
		g.Go(func() error { return ws.Fees.Mount(ctx) })
		if err := g.Wait(); err != nil {
			log.Printf("[LEADS] user %d initial load: %v", userID, err)
		}
	})
	return ws
}

// ChangeLeadStatus moves a lead and journals the transition.
func (w *Workspaces) ChangeLeadStatus(ctx context.Context, userID int64, uuid string, status domain.LeadStatus) error {
	ws := w.Get(ctx, userID)
	if err := ws.Leads.ChangeStatus(ctx, uuid, status); err != nil {
		return err
	}
	w.record(ctx, userID, domain.AuditLeadStatus, uuid, map[string]any{"status": status})
	return nil
}

// SubmitReceipt submits the admin's receipt form and journals the write.
func (w *Workspaces) SubmitReceipt(ctx context.Context, userID int64) (browser.SubmittedReceipt, error) {
	ws := w.Get(ctx, userID)
	sub, err := ws.Fees.SubmitReceipt(ctx)
	if err != nil {
		return sub, err
	}
	kind := domain.AuditReceiptCreate
	if sub.Mode == browser.ReceiptUpdate {
		kind = domain.AuditReceiptUpdate
	}
	w.record(ctx, userID, kind, sub.Receipt.CustomID, sub.Receipt)
	return sub, nil
}

func (w *Workspaces) record(ctx context.Context, userID int64, kind, subject string, payload any) {
	if w.audit == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[AUDIT] marshal %s %s: %v", kind, subject, err)
		return
	}
	entry := domain.AuditEntry{
		UserID:    userID,
		Kind:      kind,
		Subject:   subject,
		Payload:   data,
		CreatedAt: w.now(),
	}
	if err := w.audit.Record(context.WithoutCancel(ctx), entry); err != nil {
		log.Printf("[AUDIT] record %s %s: %v", kind, subject, err)
	}
}

// ExportLeads writes the currently visible lead rows to a workbook.
func (w *Workspaces) ExportLeads(ctx context.Context, userID int64) (string, error) {
	if w.exports == nil {
		return "", errors.New("exports not configured")
	}
	v := w.Get(ctx, userID).Leads.View()
	filters := map[string]any{"status": v.Selected, "filters": v.Filters, "sort": v.Sort}
	id, err := w.exports.StartExport(ctx, userID, "leads", filters, LeadSheet(v))
	if err != nil {
		return "", fmt.Errorf("start leads export: %w", err)
	}
	return id, nil
}

// ExportLedger writes the currently visible ledger rows to a workbook.
func (w *Workspaces) ExportLedger(ctx context.Context, userID int64) (string, error) {
	if w.exports == nil {
		return "", errors.New("exports not configured")
	}
	v := w.Get(ctx, userID).Fees.View()
	filters := map[string]any{"class": v.Class, "filters": v.Filters, "sort": v.Sort}
	id, err := w.exports.StartExport(ctx, userID, "fees", filters, LedgerSheet(v))
	if err != nil {
		return "", fmt.Errorf("start fees export: %w", err)
	}
	return id, nil
}

// Close cancels in-flight loads of every workspace.
func (w *Workspaces) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, ws := range w.byUser {
		ws.Leads.Close()
		ws.Fees.Close()
		delete(w.byUser, id)
	}
}
