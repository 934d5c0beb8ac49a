package services

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/jakechorley/nurse-duty/pkg/clients/sheetsclient"
	"github.com/jakechorley/nurse-duty/pkg/db"
)

type period struct{ year, month int }

// mockStore implements DutyStore and db.RequestStore in memory
type mockStore struct {
	mu        sync.Mutex
	members   []db.Member
	cells     map[period][]db.Cell
	histories []db.History
	requests  []db.Request
	nextIdx   int

	getMembersErr error
	saveErr       error
}

func newMockStore(members ...db.Member) *mockStore {
	return &mockStore{members: members, cells: make(map[period][]db.Cell)}
}

func (m *mockStore) GetMembers(ctx context.Context) ([]db.Member, error) {
	if m.getMembersErr != nil {
		return nil, m.getMembersErr
	}
	return slices.Clone(m.members), nil
}

func (m *mockStore) InsertMember(ctx context.Context, member *db.Member) error {
	member.ID = len(m.members) + 100
	m.members = append(m.members, *member)
	return nil
}

func (m *mockStore) GetCells(ctx context.Context, year, month int) ([]db.Cell, error) {
	return slices.Clone(m.cells[period{year, month}]), nil
}

func (m *mockStore) EditMonth(ctx context.Context, year, month int, edit db.MonthEdit) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	cells, history, err := edit(slices.Clone(m.cells[period{year, month}]))
	if err != nil {
		return 0, err
	}
	m.cells[period{year, month}] = slices.Clone(cells)
	if history == nil {
		return 0, nil
	}
	// idx is monotonic but not contiguous
	m.nextIdx += 3
	history.Idx = m.nextIdx
	history.ID = fmt.Sprintf("h-%d", m.nextIdx)
	history.Year = year
	history.Month = month
	m.histories = append(m.histories, *history)
	return history.Idx, nil
}

func (m *mockStore) GetHistories(ctx context.Context, year, month int) ([]db.History, error) {
	var out []db.History
	for _, h := range m.histories {
		if h.Year == year && h.Month == month {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *mockStore) GetHistory(ctx context.Context, idx int) (*db.History, error) {
	for _, h := range m.histories {
		if h.Idx == idx {
			return &h, nil
		}
	}
	return nil, fmt.Errorf("history %d: %w", idx, db.ErrNotFound)
}

func (m *mockStore) GetRequests(ctx context.Context, year, month int) ([]db.Request, error) {
	var out []db.Request
	for _, r := range m.requests {
		if r.Year == year && r.Month == month {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockStore) InsertRequest(ctx context.Context, request *db.Request) error {
	m.requests = append(m.requests, *request)
	return nil
}

// mockPublisher records published duties
type mockPublisher struct {
	spreadsheetID string
	published     *sheetsclient.PublishedDuty
	err           error
}

func (m *mockPublisher) PublishDuty(spreadsheetID string, duty *sheetsclient.PublishedDuty) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.spreadsheetID = spreadsheetID
	m.published = duty
	return sheetsclient.TabTitle(duty.Year, duty.Month), nil
}

// mockStaffLister returns a fixed staff list
type mockStaffLister struct {
	staff []sheetsclient.StaffRow
	err   error
}

func (m *mockStaffLister) ListStaff(spreadsheetID, tab string) ([]sheetsclient.StaffRow, error) {
	return m.staff, m.err
}
