package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"school-admin/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testPage = domain.Page{Offset: 1, PageSize: 10}

func newTestLeadBrowser(src LeadSource) (*LeadBrowser, *recordingNotifier) {
	n := &recordingNotifier{}
	return NewLeadBrowser(src, n, testPage, time.Second), n
}

func TestLeadBrowser_SelectTab(t *testing.T) {
	t.Run("should load the page and every tab count", func(t *testing.T) {
		src := new(MockLeadSource)
		src.On("ListLeadsByStatus", mock.Anything, domain.StatusInterested, testPage).Return(sampleLeads()[:2], nil).Once()
		src.On("CountLeads", mock.Anything, domain.StatusConverted).Return(0, errors.New("timeout")).Once()
		src.On("CountLeads", mock.Anything, mock.Anything).Return(7, nil)

		b, notes := newTestLeadBrowser(src)
		require.NoError(t, b.SelectTab(context.Background(), domain.StatusInterested))

		v := b.View()
		assert.Equal(t, domain.StatusInterested, v.Selected)
		assert.Equal(t, []string{"1", "2"}, keys(v.Rows))
		require.Len(t, v.Tabs, len(domain.LeadStatuses))
		for _, tab := range v.Tabs {
			if tab.Status == domain.StatusConverted {
				assert.Equal(t, 0, tab.Count, "a failed count shows 0")
			} else {
				assert.Equal(t, 7, tab.Count)
			}
		}
		assert.Equal(t, "Visit Scheduled", v.Tabs[3].Label)
		assert.Empty(t, notes.all())
		src.AssertExpectations(t)
	})

	t.Run("should reject an unknown status", func(t *testing.T) {
		src := new(MockLeadSource)
		b, _ := newTestLeadBrowser(src)

		err := b.SelectTab(context.Background(), "archived")
		assert.ErrorIs(t, err, domain.ErrUnknownStatus)
		src.AssertNotCalled(t, "ListLeadsByStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("should clear rows and notify when the page fails", func(t *testing.T) {
		src := new(MockLeadSource)
		src.On("ListLeadsByStatus", mock.Anything, domain.StatusRaw, testPage).Return(nil, errors.New("502")).Once()
		src.On("CountLeads", mock.Anything, mock.Anything).Return(1, nil)

		b, notes := newTestLeadBrowser(src)
		err := b.SelectTab(context.Background(), domain.StatusRaw)
		require.Error(t, err)

		v := b.View()
		assert.Empty(t, v.Rows)
		assert.False(t, v.Loading)
		assert.Equal(t, "Failed to fetch leads", v.Error)
		assert.Equal(t, []note{{Level: LevelError, Message: "Failed to fetch leads"}}, notes.all())
	})
}

func TestLeadBrowser_RefreshCounts(t *testing.T) {
	src := new(MockLeadSource)
	src.On("CountLeads", mock.Anything, mock.Anything).Return(4, nil)

	b, _ := newTestLeadBrowser(src)
	counts := b.RefreshCounts(context.Background())

	assert.Len(t, counts, len(domain.LeadStatuses))
	counts[domain.StatusRaw] = 99
	assert.Equal(t, 4, b.View().Tabs[0].Count, "returned counts are a copy")
}

func TestLeadBrowser_ChangeStatus(t *testing.T) {
	loaded := func(src *MockLeadSource) *LeadBrowser {
		src.On("ListLeadsByStatus", mock.Anything, domain.StatusRaw, testPage).Return(sampleLeads(), nil).Once()
		src.On("CountLeads", mock.Anything, mock.Anything).Return(4, nil)
		b, _ := newTestLeadBrowser(src)
		require.NoError(t, b.SelectTab(context.Background(), domain.StatusRaw))
		return b
	}

	t.Run("should send the intent and reload the tab", func(t *testing.T) {
		src := new(MockLeadSource)
		b := loaded(src)

		src.On("UpdateLeadStatus", mock.Anything, "2", domain.StatusConverted).Return(nil).Once()
		src.On("ListLeadsByStatus", mock.Anything, domain.StatusRaw, testPage).Return(sampleLeads()[2:], nil).Once()

		require.NoError(t, b.ChangeStatus(context.Background(), "2", domain.StatusConverted))

		assert.Equal(t, []string{"3", "4"}, keys(b.View().Rows))
		src.AssertNumberOfCalls(t, "ListLeadsByStatus", 2)
		src.AssertExpectations(t)
	})

	t.Run("should leave the view unchanged on failure", func(t *testing.T) {
		src := new(MockLeadSource)
		b := loaded(src)
		n := b.notify.(*recordingNotifier)

		src.On("UpdateLeadStatus", mock.Anything, "1", domain.StatusInterested).Return(errors.New("500")).Once()

		err := b.ChangeStatus(context.Background(), "1", domain.StatusInterested)
		require.Error(t, err)

		v := b.View()
		assert.Equal(t, []string{"1", "2", "3", "4"}, keys(v.Rows))
		assert.Equal(t, domain.StatusRaw, v.Rows[0].Status, "status is never mirrored locally")
		assert.Equal(t, []note{{Level: LevelError, Message: "Failed to update status"}}, n.all())
		src.AssertNumberOfCalls(t, "ListLeadsByStatus", 1)
	})

	t.Run("should refuse a lead outside the held rows", func(t *testing.T) {
		src := new(MockLeadSource)
		b := loaded(src)

		err := b.ChangeStatus(context.Background(), "missing", domain.StatusInterested)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "uuid", verr.Field)
		src.AssertNotCalled(t, "UpdateLeadStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("should refuse an unknown status", func(t *testing.T) {
		src := new(MockLeadSource)
		b := loaded(src)

		err := b.ChangeStatus(context.Background(), "1", "deleted")
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "status", verr.Field)
	})
}
