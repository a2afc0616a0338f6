package browser

import (
	"context"
	"sync"

	"school-admin/internal/domain"

	"github.com/stretchr/testify/mock"
)

type MockLeadSource struct {
	mock.Mock
}

func (m *MockLeadSource) ListLeadsByStatus(ctx context.Context, status domain.LeadStatus, page domain.Page) ([]domain.Lead, error) {
	args := m.Called(ctx, status, page)
	leads, _ := args.Get(0).([]domain.Lead)
	return leads, args.Error(1)
}

func (m *MockLeadSource) CountLeads(ctx context.Context, status domain.LeadStatus) (int, error) {
	args := m.Called(ctx, status)
	return args.Int(0), args.Error(1)
}

func (m *MockLeadSource) UpdateLeadStatus(ctx context.Context, uuid string, status domain.LeadStatus) error {
	args := m.Called(ctx, uuid, status)
	return args.Error(0)
}

type MockFeeSource struct {
	mock.Mock
}

func (m *MockFeeSource) ListFeeRecords(ctx context.Context) ([]domain.FeeRecord, error) {
	args := m.Called(ctx)
	recs, _ := args.Get(0).([]domain.FeeRecord)
	return recs, args.Error(1)
}

func (m *MockFeeSource) ListFeeRecordsByClass(ctx context.Context, class string) ([]domain.FeeRecord, error) {
	args := m.Called(ctx, class)
	recs, _ := args.Get(0).([]domain.FeeRecord)
	return recs, args.Error(1)
}

func (m *MockFeeSource) ListReceipts(ctx context.Context) ([]domain.Receipt, error) {
	args := m.Called(ctx)
	recs, _ := args.Get(0).([]domain.Receipt)
	return recs, args.Error(1)
}

func (m *MockFeeSource) FindReceipt(ctx context.Context, customID string) (*domain.Receipt, error) {
	args := m.Called(ctx, customID)
	rec, _ := args.Get(0).(*domain.Receipt)
	return rec, args.Error(1)
}

func (m *MockFeeSource) CreateReceipt(ctx context.Context, r domain.Receipt) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockFeeSource) UpdateReceipt(ctx context.Context, r domain.Receipt) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockFeeSource) DownloadFeeCSV(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

type note struct {
	Level   Level
	Message string
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []note
}

func (n *recordingNotifier) Notify(_ context.Context, level Level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note{Level: level, Message: message})
}

func (n *recordingNotifier) all() []note {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]note(nil), n.notes...)
}

func strPtr(s string) *string { return &s }
