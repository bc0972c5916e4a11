package board

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"container-request-board/internal/model"
	"container-request-board/internal/store"
)

// HistoryFilters narrows a history page. Zero values mean no filter.
type HistoryFilters struct {
	SerialNo        string
	PartNo          string
	RequestType     string
	FulfillmentType string
	StartDate       string
	EndDate         string
}

func (f HistoryFilters) values() url.Values {
	v := url.Values{}
	set := func(key, val string) {
		if val != "" {
			v.Set(key, val)
		}
	}
	set("serial_no", f.SerialNo)
	set("part_no", f.PartNo)
	set("request_type", f.RequestType)
	set("fulfillment_type", f.FulfillmentType)
	set("start_date", f.StartDate)
	set("end_date", f.EndDate)
	return v
}

// HistoryPage is one rendered page of fulfilled requests.
type HistoryPage struct {
	Records    []model.RequestHistory `json:"data"`
	Pagination store.Pagination       `json:"pagination"`
}

// FetchHistory retrieves one page of the fulfillment history. The
// server owns filtering and pagination; this is a plain parameterized
// read.
func (b *Board) FetchHistory(ctx context.Context, page, limit int, filters HistoryFilters) (*HistoryPage, error) {
	v := filters.values()
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}

	u := b.cfg.BaseURL + "/api/history"
	if encoded := v.Encode(); encoded != "" {
		u += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching history: unexpected status %d", resp.StatusCode)
	}

	var pageResp HistoryPage
	if err := json.NewDecoder(resp.Body).Decode(&pageResp); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}
	return &pageResp, nil
}

// FetchStats retrieves the analytics payload for the given period.
func (b *Board) FetchStats(ctx context.Context, days int, partNo string) (*store.Stats, error) {
	v := url.Values{}
	if days > 0 {
		v.Set("days", strconv.Itoa(days))
	}
	if partNo != "" {
		v.Set("part_no", partNo)
	}

	u := b.cfg.BaseURL + "/api/history/stats"
	if encoded := v.Encode(); encoded != "" {
		u += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching stats: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching stats: unexpected status %d", resp.StatusCode)
	}

	var stats store.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decoding stats: %w", err)
	}
	return &stats, nil
}
