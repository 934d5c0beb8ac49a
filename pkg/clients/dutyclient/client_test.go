package dutyclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/nurse-duty/pkg/core/model"
	"github.com/jakechorley/nurse-duty/pkg/core/rosterstore"
)

var _ rosterstore.DutyAPI = (*Client)(nil)

func TestGetDuty_EncodesQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/duty", r.URL.Path)
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(model.Duty{
			RosterGrid: model.RosterGrid{Year: 2025, Month: 5, Rows: []model.NurseRow{
				{MemberID: 1, Name: "Kim", Shifts: []model.ShiftCode{model.ShiftDay}},
			}},
			Histories: []model.HistoryEntry{{Idx: 4, Name: "Kim"}},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", 0, zap.NewNop())
	idx := 4
	duty, err := client.GetDuty(context.Background(), model.DutyQuery{Year: 2025, Month: 5, History: &idx})
	require.NoError(t, err)

	assert.Equal(t, "history=4&month=5&year=2025", gotQuery)
	assert.Equal(t, "Kim", duty.Rows[0].Name)
	assert.Equal(t, 4, duty.Histories[0].Idx)
}

func TestGetDuty_OmitsUnsetPeriod(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"year":2025,"month":5,"rows":[],"issues":[],"histories":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 0, zap.NewNop()).GetDuty(context.Background(), model.DutyQuery{})
	require.NoError(t, err)
	assert.Empty(t, gotQuery)
}

func TestUpdateDuty_SendsBody(t *testing.T) {
	var got model.DutyUpdate
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"idx":7}`))
	}))
	defer srv.Close()

	update := model.DutyUpdate{Year: 2025, Month: 5, History: model.HistoryWrite{
		MemberID: 1, Name: "Kim", ModifiedDay: 3, Before: model.ShiftOff, After: model.ShiftDay,
	}}
	require.NoError(t, NewClient(srv.URL, 0, zap.NewNop()).UpdateDuty(context.Background(), update))
	assert.Equal(t, update, got)
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"history entry belongs to another month"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 0, zap.NewNop()).GetDuty(context.Background(), model.DutyQuery{Year: 2025, Month: 6})

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusConflict, statusErr.StatusCode)
	assert.Contains(t, err.Error(), "another month")
}

func TestGenerateAndListRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/duty/generate", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]int
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]int{"year": 2025, "month": 5}, body)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"idx":12,"name":"auto","isAutoCreated":true}`))
	})
	mux.HandleFunc("GET /api/requests", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2025", r.URL.Query().Get("year"))
		w.Write([]byte(`[{"memberId":1,"date":4,"status":"ACCEPTED","message":"church"}]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, 0, zap.NewNop())

	entry, err := client.GenerateDuty(context.Background(), 2025, 5)
	require.NoError(t, err)
	assert.Equal(t, 12, entry.Idx)
	assert.True(t, entry.IsAutoCreated)

	requests, err := client.ListRequests(context.Background(), 2025, 5)
	require.NoError(t, err)
	assert.Equal(t, []model.RequestStatus{{MemberID: 1, Date: 4, Status: model.RequestAccepted, Message: "church"}}, requests)
}
