package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"school-admin/internal/clients"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

var ErrExportNotFound = errors.New("export not found")

const (
	exportSetKey   = "export_ids"
	exportTTL      = 20 * time.Minute
	progressChunk  = 500
	uploadProgress = 95
)

// ExportStatus is the job record kept in redis while an export is alive.
type ExportStatus struct {
	Key      string    `json:"key"`
	Type     string    `json:"type"`
	UserID   int64     `json:"user_id"`
	Filters  any       `json:"filters"`
	Progress float64   `json:"progress"`
	FileURL  *string   `json:"file_url"`
	Error    string    `json:"error,omitempty"`
	Created  time.Time `json:"created_at"`
}

type ExportView struct {
	Key        string  `json:"key"`
	Type       string  `json:"type"`
	UserID     int64   `json:"user_id"`
	Progress   float64 `json:"progress"`
	FileURL    *string `json:"file_url"`
	Filters    any     `json:"filters"`
	Error      string  `json:"error,omitempty"`
	CreatedAt  string  `json:"created_at"`
	CreatedAgo string  `json:"created_ago"`
}

type ExportStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	SAdd(ctx context.Context, key string, members ...any) error
	SRem(ctx context.Context, key string, members ...any) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

// FileStore is where finished export files go. Both the local storage and
// the S3 client satisfy it.
type FileStore interface {
	Save(ctx context.Context, fileName string, data []byte) (string, error)
	URL(ctx context.Context, stored string) (string, error)
}

type ExportNotifier interface {
	NotifyExportProgress(ctx context.Context, userID int64, exportID string, progress float64, stage string) error
	NotifyExportComplete(ctx context.Context, userID int64, exportID, url, filename string) error
	NotifyExportFailed(ctx context.Context, userID int64, exportID, errMsg string) error
}

// Sheet is a rendered view ready to be written as a workbook.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]string
}

type ExportService struct {
	store ExportStore
	files FileStore
	ws    ExportNotifier
	now   func() time.Time
}

func NewExportService(store ExportStore, files FileStore, ws ExportNotifier) *ExportService {
	return &ExportService{store: store, files: files, ws: ws, now: time.Now}
}

// StartExport records a pending job and writes the workbook in the background.
func (s *ExportService) StartExport(ctx context.Context, userID int64, kind string, filters any, sheet Sheet) (string, error) {
	if s.files == nil {
		return "", errors.New("export storage not configured")
	}

	status := &ExportStatus{
		Key:     "exports:" + uuid.NewString(),
		Type:    kind,
		UserID:  userID,
		Filters: filters,
		Created: s.now(),
	}
	if err := s.saveStatus(ctx, status); err != nil {
		return "", fmt.Errorf("save export status: %w", err)
	}

	go s.run(context.WithoutCancel(ctx), status, sheet)
	return status.Key, nil
}

func (s *ExportService) run(ctx context.Context, status *ExportStatus, sheet Sheet) {
	fail := func(stage string, err error) {
		log.Printf("[EXPORT] %s %s: %v", status.Key, stage, err)
		status.Error = "export failed while " + stage
		_ = s.saveStatus(ctx, status)
		s.notifyFailed(ctx, status)
	}

	data, err := s.render(ctx, status, sheet)
	if err != nil {
		fail("generating", err)
		return
	}

	s.progress(ctx, status, uploadProgress, "uploading")

	fileName := fmt.Sprintf("%s_%s.xlsx", status.Type, status.Created.Format("20060102_150405"))
	stored, err := s.files.Save(ctx, fileName, data)
	if err != nil {
		fail("uploading", err)
		return
	}
	url, err := s.files.URL(ctx, stored)
	if err != nil {
		fail("uploading", err)
		return
	}

	status.FileURL = &url
	s.progress(ctx, status, 100, "ready")
	if s.ws != nil {
		_ = s.ws.NotifyExportComplete(ctx, status.UserID, status.Key, url, fileName)
	}
	log.Printf("[EXPORT] %s ready: %d rows", status.Key, len(sheet.Rows))
}

// render writes the sheet to xlsx, reporting progress per chunk of rows.
// Progress stays below uploadProgress until the file is stored.
func (s *ExportService) render(ctx context.Context, status *ExportStatus, sheet Sheet) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	name := sheet.Name
	if name == "" {
		name = "Sheet1"
	}
	if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
		return nil, err
	}
	_ = f.SetDocProps(&excelize.DocProperties{Creator: fmt.Sprintf("user_%d", status.UserID)})

	header := make([]any, len(sheet.Headers))
	for i, h := range sheet.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return nil, err
	}
	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(name, 1, 1, bold)
	}
	_ = f.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	total := len(sheet.Rows)
	for i, row := range sheet.Rows {
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(name, cell, &values); err != nil {
			return nil, err
		}

		if (i+1)%progressChunk == 0 || i == total-1 {
			p := math.Round(float64(i+1) / float64(total) * 100)
			s.progress(ctx, status, min(p, uploadProgress-1), "generating")
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *ExportService) progress(ctx context.Context, status *ExportStatus, p float64, stage string) {
	status.Progress = p
	if err := s.saveStatus(ctx, status); err != nil {
		log.Printf("[EXPORT] %s save status: %v", status.Key, err)
	}
	if s.ws != nil {
		_ = s.ws.NotifyExportProgress(ctx, status.UserID, status.Key, p, stage)
	}
}

func (s *ExportService) notifyFailed(ctx context.Context, status *ExportStatus) {
	if s.ws != nil {
		_ = s.ws.NotifyExportFailed(ctx, status.UserID, status.Key, status.Error)
	}
}

func (s *ExportService) saveStatus(ctx context.Context, st *ExportStatus) error {
	if s.store == nil {
		return nil
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, st.Key, string(data), exportTTL); err != nil {
		return err
	}
	return s.store.SAdd(ctx, exportSetKey, st.Key)
}

func (s *ExportService) loadStatus(ctx context.Context, key string) (*ExportStatus, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var st ExportStatus
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("failed to parse export status: %w", err)
	}
	return &st, nil
}

// GetExports lists the user's live exports, newest first. Ids whose status
// has expired are pruned from the index.
func (s *ExportService) GetExports(ctx context.Context, userID int64) ([]ExportView, error) {
	if s.store == nil {
		return nil, errors.New("redis client not configured")
	}

	keys, err := s.store.SMembers(ctx, exportSetKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get export keys: %w", err)
	}

	var statuses []*ExportStatus
	for _, key := range keys {
		st, err := s.loadStatus(ctx, key)
		if errors.Is(err, clients.ErrCacheMiss) {
			_ = s.store.SRem(ctx, exportSetKey, key)
			continue
		}
		if err != nil {
			log.Printf("[EXPORT] load %s: %v", key, err)
			continue
		}
		if st.UserID == userID {
			statuses = append(statuses, st)
		}
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Created.After(statuses[j].Created)
	})

	out := make([]ExportView, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, s.view(st))
	}
	return out, nil
}

func (s *ExportService) GetExport(ctx context.Context, exportID string, userID int64) (ExportView, error) {
	if s.store == nil {
		return ExportView{}, errors.New("redis client not configured")
	}

	st, err := s.loadStatus(ctx, exportID)
	if errors.Is(err, clients.ErrCacheMiss) {
		return ExportView{}, ErrExportNotFound
	}
	if err != nil {
		return ExportView{}, err
	}
	if st.UserID != userID {
		return ExportView{}, ErrExportNotFound
	}
	return s.view(st), nil
}

func (s *ExportService) view(st *ExportStatus) ExportView {
	return ExportView{
		Key:        st.Key,
		Type:       st.Type,
		UserID:     st.UserID,
		Progress:   st.Progress,
		FileURL:    st.FileURL,
		Filters:    st.Filters,
		Error:      st.Error,
		CreatedAt:  st.Created.Format(time.RFC3339),
		CreatedAgo: humanizeAgo(s.now(), st.Created),
	}
}

func humanizeAgo(now, t time.Time) string {
	if !t.Before(now) {
		return "just now"
	}
	minutes := int(now.Sub(t).Minutes())
	switch {
	case minutes < 1:
		return "just now"
	case minutes < 60:
		return plural(minutes, "minute") + " ago"
	case minutes < 24*60:
		return plural(minutes/60, "hour") + " ago"
	case minutes < 30*24*60:
		return plural(minutes/(24*60), "day") + " ago"
	}
	return t.Format("2006-01-02 15:04")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
