package board

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"container-request-board/internal/model"
	"container-request-board/internal/store"
)

func TestFetchHistoryPassesFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/history", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "25", q.Get("limit"))
		assert.Equal(t, "P-100", q.Get("part_no"))
		assert.Equal(t, "PICK_UP", q.Get("request_type"))
		assert.Empty(t, q.Get("serial_no"))

		json.NewEncoder(w).Encode(HistoryPage{
			Records:    []model.RequestHistory{{SerialNo: "S1", FulfilledTime: time.Now().UTC()}},
			Pagination: store.Pagination{CurrentPage: 2, TotalPages: 3, TotalRecords: 60, Limit: 25, HasNext: true, HasPrev: true},
		})
	}))
	defer srv.Close()

	b := newTestBoard(srv.URL)
	page, err := b.FetchHistory(context.Background(), 2, 25, HistoryFilters{
		PartNo:      "P-100",
		RequestType: "PICK_UP",
	})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "S1", page.Records[0].SerialNo)
	assert.True(t, page.Pagination.HasNext)
}

func TestFetchHistoryServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := newTestBoard(srv.URL)
	_, err := b.FetchHistory(context.Background(), 1, 50, HistoryFilters{})
	assert.Error(t, err)
}

func TestFetchStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/history/stats", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("days"))
		json.NewEncoder(w).Encode(store.Stats{PeriodDays: 7})
	}))
	defer srv.Close()

	b := newTestBoard(srv.URL)
	stats, err := b.FetchStats(context.Background(), 7, "")
	require.NoError(t, err)
	assert.Equal(t, 7, stats.PeriodDays)
}
