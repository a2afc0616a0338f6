package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"school-admin/internal/clients"
	"school-admin/internal/domain"
	"school-admin/internal/repository"
	"school-admin/internal/service"
	"school-admin/internal/transport/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSchool is an in-memory school API.
type fakeSchool struct {
	mu        sync.Mutex
	leads     []domain.Lead
	fees      []domain.FeeRecord
	receipts  map[string]domain.Receipt
	failClass string
	csv       []byte
	created   []domain.Receipt
	updated   []domain.Receipt
}

func newFakeSchool() *fakeSchool {
	return &fakeSchool{
		leads: []domain.Lead{
			{UUID: "u1", FullName: "Asha Rao", Email: "asha@example.com", Status: domain.StatusRaw},
			{UUID: "u2", FullName: "Ben Cole", Email: "ben@example.com", Status: domain.StatusRaw},
			{UUID: "u3", FullName: "Chen Li", Email: "chen@example.com", Status: domain.StatusVisitScheduled},
		},
		fees: []domain.FeeRecord{
			{UUID: "f1", CustomID: "S-001", FirstName: "Asha", LastName: "Rao", Class: "LKG", FirstInstallment: "1000", SecondInstallment: "1000", ThirdInstallment: "0"},
			{UUID: "f2", CustomID: "S-002", FirstName: "Ben", LastName: "Cole", Class: "UKG", FirstInstallment: "1200", SecondInstallment: "0", ThirdInstallment: "0"},
		},
		receipts: map[string]domain.Receipt{},
		csv:      []byte("customId,name\nS-001,Asha Rao\n"),
	}
}

func (f *fakeSchool) ListLeadsByStatus(_ context.Context, status domain.LeadStatus, _ domain.Page) ([]domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Lead
	for _, l := range f.leads {
		if l.Status == status {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeSchool) CountLeads(ctx context.Context, status domain.LeadStatus) (int, error) {
	leads, _ := f.ListLeadsByStatus(ctx, status, domain.Page{})
	return len(leads), nil
}

func (f *fakeSchool) UpdateLeadStatus(_ context.Context, uuid string, status domain.LeadStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.leads {
		if f.leads[i].UUID == uuid {
			f.leads[i].Status = status
			return nil
		}
	}
	return &clients.APIError{Method: http.MethodPatch, Path: "/form/updateStatus", StatusCode: http.StatusNotFound}
}

func (f *fakeSchool) ListFeeRecords(context.Context) ([]domain.FeeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.FeeRecord(nil), f.fees...), nil
}

func (f *fakeSchool) ListFeeRecordsByClass(_ context.Context, class string) ([]domain.FeeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if class == f.failClass {
		return nil, &clients.APIError{Method: http.MethodGet, Path: "/form/getClassName", StatusCode: http.StatusInternalServerError}
	}
	var out []domain.FeeRecord
	for _, r := range f.fees {
		if r.Class == class {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSchool) ListReceipts(context.Context) ([]domain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Receipt, 0, len(f.receipts))
	for _, r := range f.receipts {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeSchool) FindReceipt(_ context.Context, customID string) (*domain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.receipts[customID]
	if !ok {
		return nil, domain.ErrReceiptNotFound
	}
	return &r, nil
}

func (f *fakeSchool) CreateReceipt(_ context.Context, r domain.Receipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, r)
	f.receipts[r.CustomID] = r
	return nil
}

func (f *fakeSchool) UpdateReceipt(_ context.Context, r domain.Receipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, r)
	f.receipts[r.CustomID] = r
	return nil
}

func (f *fakeSchool) DownloadFeeCSV(context.Context) ([]byte, error) {
	return f.csv, nil
}

type fakeExports struct {
	views map[string]service.ExportView
}

func (f *fakeExports) GetExports(_ context.Context, userID int64) ([]service.ExportView, error) {
	var out []service.ExportView
	for _, v := range f.views {
		if v.UserID == userID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeExports) GetExport(_ context.Context, exportID string, userID int64) (service.ExportView, error) {
	v, ok := f.views[exportID]
	if !ok || v.UserID != userID {
		return service.ExportView{}, service.ErrExportNotFound
	}
	return v, nil
}

func (f *fakeExports) StartExport(_ context.Context, userID int64, kind string, _ any, _ service.Sheet) (string, error) {
	key := "exports:" + kind
	f.views[key] = service.ExportView{Key: key, Type: kind, UserID: userID}
	return key, nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	filters []repository.AuditFilter
}

func (a *fakeAudit) Record(_ context.Context, e domain.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *fakeAudit) List(_ context.Context, f repository.AuditFilter) ([]domain.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.filters = append(a.filters, f)
	return append([]domain.AuditEntry(nil), a.entries...), nil
}

func (a *fakeAudit) kinds() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, e := range a.entries {
		out = append(out, e.Kind)
	}
	return out
}

type testServer struct {
	router  http.Handler
	school  *fakeSchool
	exports *fakeExports
	audit   *fakeAudit
	dir     string
}

const testUser int64 = 7

func asUser(id int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), id)))
		})
	}
}

func newTestServer(t *testing.T, authMiddleware func(http.Handler) http.Handler) *testServer {
	t.Helper()
	dir := t.TempDir()
	files, err := clients.NewLocalStorage(dir, "/files", "")
	require.NoError(t, err)

	ts := &testServer{
		school:  newFakeSchool(),
		exports: &fakeExports{views: map[string]service.ExportView{}},
		audit:   &fakeAudit{},
		dir:     dir,
	}
	workspaces := service.NewWorkspaces(ts.school, nil, ts.audit, ts.exports, service.WorkspaceConfig{
		Page:    domain.Page{Offset: 1, PageSize: 10},
		Timeout: time.Second,
	})
	t.Cleanup(workspaces.Close)

	h := NewHandler(Deps{
		Workspaces: workspaces,
		Exports:    ts.exports,
		Audit:      ts.audit,
		Files:      files,
	})
	ts.router = h.InitRouterWithAuth(authMiddleware)
	return ts
}

type envelope struct {
	ErrorCode int             `json:"error_code"`
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)

	var env envelope
	if rr.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	}
	return rr, env
}

type leadViewBody struct {
	Rows     []domain.Lead `json:"rows"`
	Selected string        `json:"selected"`
	Tabs     []struct {
		Status string `json:"status"`
		Count  int    `json:"count"`
	} `json:"tabs"`
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestHealthIsPublic(t *testing.T) {
	ts := newTestServer(t, func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			ErrorUnauthorized(w, "Unauthorized")
		})
	})

	rr, env := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "success", env.Status)

	rr, _ = ts.do(t, http.MethodGet, "/leads", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMissingUserIsUnauthorized(t *testing.T) {
	ts := newTestServer(t, nil)
	rr, env := ts.do(t, http.MethodGet, "/fees", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, 401, env.ErrorCode)
}

func TestLeadRoutes(t *testing.T) {
	t.Run("should mount on the raw tab with counts", func(t *testing.T) {
		ts := newTestServer(t, asUser(testUser))
		rr, env := ts.do(t, http.MethodGet, "/leads", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		v := decodeData[leadViewBody](t, env)
		assert.Equal(t, "raw", v.Selected)
		assert.Len(t, v.Rows, 2)
		counts := map[string]int{}
		for _, tab := range v.Tabs {
			counts[tab.Status] = tab.Count
		}
		assert.Equal(t, 2, counts["raw"])
		assert.Equal(t, 1, counts["visitScheduled"])
	})

	t.Run("should select a tab by label", func(t *testing.T) {
		ts := newTestServer(t, asUser(testUser))
		rr, env := ts.do(t, http.MethodPost, "/leads/tab", map[string]string{"status": "Visit Scheduled"})
		require.Equal(t, http.StatusOK, rr.Code)

		v := decodeData[leadViewBody](t, env)
		assert.Equal(t, "visitScheduled", v.Selected)
		require.Len(t, v.Rows, 1)
		assert.Equal(t, "u3", v.Rows[0].UUID)
	})

	t.Run("should reject an unknown tab", func(t *testing.T) {
		ts := newTestServer(t, asUser(testUser))
		rr, env := ts.do(t, http.MethodPost, "/leads/tab", map[string]string{"status": "archived"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, env.Message, "archived")
	})

	t.Run("should filter and sort the held rows", func(t *testing.T) {
		ts := newTestServer(t, asUser(testUser))
		rr, env := ts.do(t, http.MethodPut, "/leads/filters", map[string]string{"field": "fullName", "pattern": "ben"})
		require.Equal(t, http.StatusOK, rr.Code)
		v := decodeData[leadViewBody](t, env)
		require.Len(t, v.Rows, 1)
		assert.Equal(t, "u2", v.Rows[0].UUID)

		rr, _ = ts.do(t, http.MethodPut, "/leads/filters", map[string]string{"field": "fullName", "pattern": ""})
		require.Equal(t, http.StatusOK, rr.Code)

		_, _ = ts.do(t, http.MethodPost, "/leads/sort", map[string]string{"field": "fullName"})
		rr, env = ts.do(t, http.MethodPost, "/leads/sort", map[string]string{"field": "fullName"})
		require.Equal(t, http.StatusOK, rr.Code)
		v = decodeData[leadViewBody](t, env)
		require.Len(t, v.Rows, 2)
		assert.Equal(t, []string{"u2", "u1"}, []string{v.Rows[0].UUID, v.Rows[1].UUID})
	})

	t.Run("should reject an unknown column", func(t *testing.T) {
		ts := newTestServer(t, asUser(testUser))
		rr, _ := ts.do(t, http.MethodPost, "/leads/sort", map[string]string{"field": "shoeSize"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("should move a lead and journal it", func(t *testing.T) {
		ts := newTestServer(t, asUser(testUser))
		rr, env := ts.do(t, http.MethodPatch, "/leads/u1/status", map[string]string{"status": "converted"})
		require.Equal(t, http.StatusOK, rr.Code)

		v := decodeData[leadViewBody](t, env)
		require.Len(t, v.Rows, 1)
		assert.Equal(t, "u2", v.Rows[0].UUID)
		assert.Equal(t, []string{domain.AuditLeadStatus}, ts.audit.kinds())
	})

	t.Run("should refuse a lead outside the current view", func(t *testing.T) {
		ts := newTestServer(t, asUser(testUser))
		rr, _ := ts.do(t, http.MethodPatch, "/leads/u3/status", map[string]string{"status": "converted"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Empty(t, ts.audit.kinds())
	})

	t.Run("should queue an export of the view", func(t *testing.T) {
		ts := newTestServer(t, asUser(testUser))
		rr, env := ts.do(t, http.MethodPost, "/leads/export", nil)
		require.Equal(t, http.StatusAccepted, rr.Code)
		assert.Equal(t, map[string]string{"export_id": "exports:leads"}, decodeData[map[string]string](t, env))
	})
}

type ledgerViewBody struct {
	Total int    `json:"total"`
	Class string `json:"class"`
	Error string `json:"error"`
}

func TestFeeRoutes(t *testing.T) {
	t.Run("should load a class", func(t *testing.T) {
		ts := newTestServer(t, asUser(testUser))
		rr, env := ts.do(t, http.MethodPost, "/fees/class", map[string]string{"class": "UKG"})
		require.Equal(t, http.StatusOK, rr.Code)

		v := decodeData[ledgerViewBody](t, env)
		assert.Equal(t, "UKG", v.Class)
		assert.Equal(t, 1, v.Total)
	})

	t.Run("should reject an unknown class", func(t *testing.T) {
		ts := newTestServer(t, asUser(testUser))
		rr, _ := ts.do(t, http.MethodPost, "/fees/class", map[string]string{"class": "Class 99"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("should report a failed class load as a bad gateway", func(t *testing.T) {
		ts := newTestServer(t, asUser(testUser))
		ts.school.failClass = "Class 3"
		rr, env := ts.do(t, http.MethodPost, "/fees/class", map[string]string{"class": "Class 3"})
		assert.Equal(t, http.StatusBadGateway, rr.Code)
		assert.Equal(t, "Failed to fetch details for class Class 3", env.Message)

		v := decodeData[ledgerViewBody](t, env)
		assert.Equal(t, 0, v.Total)
	})

	t.Run("should relay the fee csv as a download", func(t *testing.T) {
		ts := newTestServer(t, asUser(testUser))
		rr, _ := ts.do(t, http.MethodGet, "/fees/csv", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="fee-details.csv"`, rr.Header().Get("Content-Disposition"))
		assert.Equal(t, string(ts.school.csv), rr.Body.String())
	})
}

type formBody struct {
	Open         bool          `json:"open"`
	Mode         string        `json:"mode"`
	CustomID     string        `json:"customId"`
	Installments []domain.Slot `json:"installments"`
	Date         string        `json:"date"`
}

func TestReceiptRoutes(t *testing.T) {
	t.Run("should create a receipt for a student without one", func(t *testing.T) {
		ts := newTestServer(t, asUser(testUser))
		rr, env := ts.do(t, http.MethodPost, "/fees/receipt/open", map[string]string{"customId": "S-001", "name": "Asha Rao", "applicantId": "A-1"})
		require.Equal(t, http.StatusOK, rr.Code)
		form := decodeData[formBody](t, env)
		assert.True(t, form.Open)
		assert.Equal(t, "create", form.Mode)

		rr, env = ts.do(t, http.MethodPut, "/fees/receipt", map[string]any{"installments": []int{1}, "date": "2024-06-01"})
		require.Equal(t, http.StatusOK, rr.Code)
		form = decodeData[formBody](t, env)
		assert.Equal(t, []domain.Slot{domain.FirstSlot}, form.Installments)
		assert.Equal(t, "2024-06-01", form.Date)

		rr, env = ts.do(t, http.MethodPost, "/fees/receipt/submit", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "Receipt generated successfully!", env.Message)

		require.Len(t, ts.school.created, 1)
		got := ts.school.created[0]
		assert.Equal(t, "S-001", got.CustomID)
		require.NotNil(t, got.FirstInstallmentDate)
		assert.Equal(t, "2024-06-01", *got.FirstInstallmentDate)
		assert.Nil(t, got.SecondInstallmentDate)
		assert.Equal(t, []string{domain.AuditReceiptCreate}, ts.audit.kinds())

		rr, env = ts.do(t, http.MethodGet, "/fees/receipt", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.False(t, decodeData[formBody](t, env).Open)
	})

	t.Run("should open an existing receipt in update mode", func(t *testing.T) {
		ts := newTestServer(t, asUser(testUser))
		paid := "2024-04-01"
		ts.school.receipts["S-002"] = domain.Receipt{CustomID: "S-002", FirstInstallment: "1200", FirstInstallmentDate: &paid}

		rr, env := ts.do(t, http.MethodPost, "/fees/receipt/open", map[string]string{"customId": "S-002"})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "update", decodeData[formBody](t, env).Mode)
	})

	t.Run("should refuse an incomplete form", func(t *testing.T) {
		ts := newTestServer(t, asUser(testUser))
		_, _ = ts.do(t, http.MethodPost, "/fees/receipt/open", map[string]string{"customId": "S-001"})

		rr, env := ts.do(t, http.MethodPost, "/fees/receipt/submit", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Please fill in all required fields", env.Message)
		assert.Empty(t, ts.school.created)
	})

	t.Run("should validate the edit body", func(t *testing.T) {
		ts := newTestServer(t, asUser(testUser))
		_, _ = ts.do(t, http.MethodPost, "/fees/receipt/open", map[string]string{"customId": "S-001"})

		rr, _ := ts.do(t, http.MethodPut, "/fees/receipt", map[string]any{"installments": []int{4}})
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		rr, _ = ts.do(t, http.MethodPut, "/fees/receipt", map[string]any{"date": "01/06/2024"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("should close the modal", func(t *testing.T) {
		ts := newTestServer(t, asUser(testUser))
		_, _ = ts.do(t, http.MethodPost, "/fees/receipt/open", map[string]string{"customId": "S-001"})

		rr, env := ts.do(t, http.MethodDelete, "/fees/receipt", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.False(t, decodeData[formBody](t, env).Open)
	})
}

func TestExportRoutes(t *testing.T) {
	ts := newTestServer(t, asUser(testUser))
	ts.exports.views["exports:abc"] = service.ExportView{Key: "exports:abc", Type: "fees", UserID: testUser}
	ts.exports.views["exports:other"] = service.ExportView{Key: "exports:other", Type: "fees", UserID: 99}

	rr, env := ts.do(t, http.MethodGet, "/export", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeData[[]service.ExportView](t, env), 1)

	rr, _ = ts.do(t, http.MethodGet, "/export/abc", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, _ = ts.do(t, http.MethodGet, "/export/exports:abc", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, _ = ts.do(t, http.MethodGet, "/export/other", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAuditRoute(t *testing.T) {
	ts := newTestServer(t, asUser(testUser))

	rr, _ := ts.do(t, http.MethodGet, "/audit?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = ts.do(t, http.MethodGet, "/audit?kind=delete", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = ts.do(t, http.MethodGet, "/audit?kind=lead_status&limit=5", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, ts.audit.filters, 1)
	f := ts.audit.filters[0]
	require.NotNil(t, f.UserID)
	assert.Equal(t, testUser, *f.UserID)
	assert.Equal(t, domain.AuditLeadStatus, f.Kind)
	assert.Equal(t, 5, f.Limit)
}

func TestServeFile(t *testing.T) {
	ts := newTestServer(t, asUser(testUser))
	require.NoError(t, os.WriteFile(filepath.Join(ts.dir, "0f1e_fees.xlsx"), []byte("xlsx"), 0o644))

	rr, _ := ts.do(t, http.MethodGet, "/files/0f1e_fees.xlsx", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="fees.xlsx"`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "xlsx", rr.Body.String())

	rr, _ = ts.do(t, http.MethodGet, "/files/missing.xlsx", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestFail(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"validation", &ValidationError{Field: "f", Message: "bad"}, http.StatusBadRequest},
		{"unknown status", domain.ErrUnknownStatus, http.StatusBadRequest},
		{"school api", errors.New("connection refused"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			Fail(rr, tc.err, "Failed", nil)
			assert.Equal(t, tc.code, rr.Code)
		})
	}
}
