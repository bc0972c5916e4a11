package store

import "time"

// HistoryQuery holds the pagination and filter parameters for a
// history listing.
type HistoryQuery struct {
	Page            int
	Limit           int
	SerialNo        string
	PartNo          string
	RequestType     string
	FulfillmentType string
	StartDate       *time.Time
	EndDate         *time.Time
}

// Pagination describes the page metadata returned with a history listing.
type Pagination struct {
	CurrentPage  int   `json:"current_page"`
	TotalPages   int   `json:"total_pages"`
	TotalRecords int64 `json:"total_records"`
	Limit        int   `json:"limit"`
	HasNext      bool  `json:"has_next"`
	HasPrev      bool  `json:"has_prev"`
}

// OverallStats aggregates fulfillment figures for a period. Rows
// removed by a plain operator delete are counted but excluded from the
// duration figures.
type OverallStats struct {
	TotalFulfilled        int64   `json:"total_fulfilled"`
	AvgFulfillmentMinutes float64 `json:"avg_fulfillment_minutes"`
	AvgFulfillmentHours   float64 `json:"avg_fulfillment_hours"`
	MinFulfillmentMinutes int     `json:"min_fulfillment_minutes"`
	MaxFulfillmentMinutes int     `json:"max_fulfillment_minutes"`
	AutoFulfilled         int64   `json:"auto_fulfilled"`
	ManualCleanup         int64   `json:"manual_cleanup"`
	ManualDelete          int64   `json:"manual_delete"`
}

// PartStats aggregates fulfillment figures for one part number.
type PartStats struct {
	PartNo                string  `json:"part_no"`
	FulfilledCount        int64   `json:"fulfilled_count"`
	AvgFulfillmentMinutes float64 `json:"avg_fulfillment_minutes"`
	AvgFulfillmentHours   float64 `json:"avg_fulfillment_hours"`
	MinFulfillmentMinutes int     `json:"min_fulfillment_minutes"`
	MaxFulfillmentMinutes int     `json:"max_fulfillment_minutes"`
}

// ShiftStats aggregates fulfillment figures for one plant shift.
type ShiftStats struct {
	Shift                 string  `json:"shift"`
	TimeRange             string  `json:"time_range"`
	FulfilledCount        int64   `json:"fulfilled_count"`
	AvgFulfillmentMinutes float64 `json:"avg_fulfillment_minutes"`
	AvgFulfillmentHours   float64 `json:"avg_fulfillment_hours"`
	MinFulfillmentMinutes int     `json:"min_fulfillment_minutes"`
	MaxFulfillmentMinutes int     `json:"max_fulfillment_minutes"`
	AutoFulfilled         int64   `json:"auto_fulfilled"`
	ManualCleanup         int64   `json:"manual_cleanup"`
}

// DailyTrend is the per-day fulfillment count and average duration.
type DailyTrend struct {
	Date               string  `json:"date"`
	FulfilledCount     int64   `json:"fulfilled_count"`
	AvgDurationMinutes float64 `json:"avg_duration_minutes"`
	AvgDurationHours   float64 `json:"avg_duration_hours"`
}

// PerformanceBucket groups fulfillments by how long they took.
type PerformanceBucket struct {
	Category   string  `json:"category"`
	Count      int64   `json:"count"`
	AvgMinutes float64 `json:"avg_minutes"`
	Percentage float64 `json:"percentage"`
}

// Stats is the full analytics payload for a period.
type Stats struct {
	PeriodDays           int                 `json:"period_days"`
	PartNoFilter         string              `json:"part_no_filter,omitempty"`
	Overall              OverallStats        `json:"overall"`
	ByPartNumber         []PartStats         `json:"by_part_number"`
	ByShift              []ShiftStats        `json:"by_shift"`
	DailyTrends          []DailyTrend        `json:"daily_trends"`
	PerformanceBreakdown []PerformanceBucket `json:"performance_breakdown"`
	GeneratedAt          time.Time           `json:"generated_at"`
}
