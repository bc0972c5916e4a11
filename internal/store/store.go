package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"

	"container-request-board/internal/model"
	"container-request-board/internal/shift"
)

// ErrDuplicateSerial is returned when a request is created for a serial
// number that already has an active request.
var ErrDuplicateSerial = errors.New("active request already exists for serial")

// ErrNotFound is returned when no active request matches a serial number.
var ErrNotFound = errors.New("request not found")

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB
	ListActive(ctx context.Context) ([]model.Request, error)
	ActiveSerials(ctx context.Context) (map[string]struct{}, error)
	CreateRequest(ctx context.Context, req *model.Request) error
	GetBySerial(ctx context.Context, serialNo string) (*model.Request, error)
	FulfillRequest(ctx context.Context, serialNo, currentLocation, fulfillmentType string, now time.Time) (*model.RequestHistory, error)
	ListHistory(ctx context.Context, q HistoryQuery) ([]model.RequestHistory, Pagination, error)
	HistoryStats(ctx context.Context, days int, partNo string, loc *time.Location) (*Stats, error)
	ClearHistory(ctx context.Context) (int64, error)
	PruneHistory(ctx context.Context, olderThan time.Time) (int64, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db            *gorm.DB
	retentionDays int
}

// NewGormStore creates a new GORM-backed store. History listings and
// stats are scoped to the given retention window in days.
func NewGormStore(db *gorm.DB, retentionDays int) Store {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &gormStore{db: db, retentionDays: retentionDays}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// ListActive returns all pending requests ordered by request time.
func (s *gormStore) ListActive(ctx context.Context) ([]model.Request, error) {
	var requests []model.Request
	if err := s.db.WithContext(ctx).Order("req_time ASC").Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("failed to list active requests: %w", err)
	}
	return requests, nil
}

// ActiveSerials returns the set of serial numbers with a pending request.
func (s *gormStore) ActiveSerials(ctx context.Context) (map[string]struct{}, error) {
	var serials []string
	if err := s.db.WithContext(ctx).Model(&model.Request{}).Pluck("serial_no", &serials).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch active serials: %w", err)
	}
	set := make(map[string]struct{}, len(serials))
	for _, sn := range serials {
		set[sn] = struct{}{}
	}
	return set, nil
}

// CreateRequest inserts a new pending request. Serial numbers are
// unique across the active table.
func (s *gormStore) CreateRequest(ctx context.Context, req *model.Request) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Request{}).Where("serial_no = ?", req.SerialNo).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check serial %s: %w", req.SerialNo, err)
		}
		if count > 0 {
			return ErrDuplicateSerial
		}
		if req.ReqTime.IsZero() {
			req.ReqTime = time.Now().UTC()
		}
		if req.RequestType == "" {
			req.RequestType = model.RequestTypePickUp
		}
		if err := tx.Create(req).Error; err != nil {
			return fmt.Errorf("failed to create request for serial %s: %w", req.SerialNo, err)
		}
		return nil
	})
}

func (s *gormStore) GetBySerial(ctx context.Context, serialNo string) (*model.Request, error) {
	var req model.Request
	err := s.db.WithContext(ctx).Where("serial_no = ?", serialNo).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch request %s: %w", serialNo, err)
	}
	return &req, nil
}

// FulfillRequest archives the active request for serialNo into the
// history table and removes it, in a single transaction. The request
// is only deleted if the history row was written.
func (s *gormStore) FulfillRequest(ctx context.Context, serialNo, currentLocation, fulfillmentType string, now time.Time) (*model.RequestHistory, error) {
	var hist model.RequestHistory

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req model.Request
		if err := tx.Where("serial_no = ?", serialNo).First(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to fetch request %s: %w", serialNo, err)
		}

		duration := int(now.Sub(req.ReqTime).Minutes())
		if duration < 0 {
			duration = 0
		}

		hist = model.RequestHistory{
			RequestID:                  req.ID,
			SerialNo:                   req.SerialNo,
			PartNo:                     req.PartNo,
			Revision:                   req.Revision,
			Quantity:                   req.Quantity,
			Location:                   req.Location,
			DeliverTo:                  req.DeliverTo,
			ReqTime:                    req.ReqTime,
			FulfilledTime:              now,
			FulfillmentDurationMinutes: duration,
			FulfillmentType:            fulfillmentType,
			CurrentLocation:            currentLocation,
			RequestType:                req.RequestType,
			MasterUnitNo:               req.MasterUnitNo,
		}
		if err := tx.Create(&hist).Error; err != nil {
			return fmt.Errorf("failed to archive request %s: %w", serialNo, err)
		}
		if err := tx.Delete(&model.Request{}, req.ID).Error; err != nil {
			return fmt.Errorf("failed to delete request %s: %w", serialNo, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &hist, nil
}

// historyScope applies the retention window, the TEST exclusion and the
// optional filters of a history query.
func (s *gormStore) historyScope(ctx context.Context, q HistoryQuery) *gorm.DB {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)
	tx := s.db.WithContext(ctx).Model(&model.RequestHistory{}).
		Where("fulfilled_time >= ?", cutoff).
		Where("deliver_to <> ?", "TEST")

	if q.SerialNo != "" {
		tx = tx.Where("serial_no LIKE ?", "%"+q.SerialNo+"%")
	}
	if q.PartNo != "" {
		tx = tx.Where("part_no LIKE ?", "%"+q.PartNo+"%")
	}
	if q.RequestType != "" {
		tx = tx.Where("request_type = ?", q.RequestType)
	}
	if q.FulfillmentType != "" {
		tx = tx.Where("fulfillment_type = ?", q.FulfillmentType)
	}
	if q.StartDate != nil {
		tx = tx.Where("fulfilled_time >= ?", *q.StartDate)
	}
	if q.EndDate != nil {
		tx = tx.Where("fulfilled_time <= ?", *q.EndDate)
	}
	return tx
}

// ListHistory returns one page of fulfilled requests, newest first.
func (s *gormStore) ListHistory(ctx context.Context, q HistoryQuery) ([]model.RequestHistory, Pagination, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 500 {
		q.Limit = 50
	}

	var total int64
	if err := s.historyScope(ctx, q).Count(&total).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to count history: %w", err)
	}

	var records []model.RequestHistory
	offset := (q.Page - 1) * q.Limit
	if err := s.historyScope(ctx, q).
		Order("fulfilled_time DESC").
		Offset(offset).
		Limit(q.Limit).
		Find(&records).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to list history: %w", err)
	}

	totalPages := int(math.Ceil(float64(total) / float64(q.Limit)))
	page := Pagination{
		CurrentPage:  q.Page,
		TotalPages:   totalPages,
		TotalRecords: total,
		Limit:        q.Limit,
		HasNext:      q.Page < totalPages,
		HasPrev:      q.Page > 1,
	}
	return records, page, nil
}

// statRow is the projection used for analytics aggregation.
type statRow struct {
	PartNo                     string
	FulfilledTime              time.Time
	FulfillmentDurationMinutes int
	FulfillmentType            string
}

// HistoryStats computes the fulfillment analytics for the last N days.
// Aggregation happens in Go over a single filtered projection so the
// same code path serves sqlite and postgres.
func (s *gormStore) HistoryStats(ctx context.Context, days int, partNo string, loc *time.Location) (*Stats, error) {
	if days < 1 || days > 365 {
		days = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	tx := s.db.WithContext(ctx).Model(&model.RequestHistory{}).
		Select("part_no", "fulfilled_time", "fulfillment_duration_minutes", "fulfillment_type").
		Where("fulfilled_time >= ?", cutoff).
		Where("deliver_to <> ?", "TEST")
	if partNo != "" {
		tx = tx.Where("part_no = ?", partNo)
	}

	var rows []statRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch stats projection: %w", err)
	}

	stats := &Stats{
		PeriodDays:   days,
		PartNoFilter: partNo,
		GeneratedAt:  time.Now().UTC(),
	}
	stats.Overall = aggregateOverall(rows)
	stats.ByPartNumber = aggregateByPart(rows)
	stats.ByShift = aggregateByShift(rows, loc)
	stats.DailyTrends = aggregateDailyTrends(rows, days, loc)
	stats.PerformanceBreakdown = aggregatePerformance(rows, stats.Overall.TotalFulfilled)
	return stats, nil
}

// ClearHistory deletes every history record and reports how many went.
func (s *gormStore) ClearHistory(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("1 = 1").Delete(&model.RequestHistory{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to clear history: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// PruneHistory removes records fulfilled before the given time.
func (s *gormStore) PruneHistory(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("fulfilled_time < ?", olderThan).Delete(&model.RequestHistory{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune history: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// measured reports whether a row counts toward duration figures.
// Operator deletes record no meaningful fulfillment duration.
func measured(r statRow) bool {
	return r.FulfillmentType != model.FulfillmentManualDelete
}

func aggregateOverall(rows []statRow) OverallStats {
	var o OverallStats
	var sum, n int64
	minMin, maxMin := math.MaxInt, 0
	for _, r := range rows {
		switch r.FulfillmentType {
		case model.FulfillmentAutoCleanup:
			o.AutoFulfilled++
		case model.FulfillmentManualCleanup:
			o.ManualCleanup++
		case model.FulfillmentManualDelete:
			o.ManualDelete++
		}
		if !measured(r) {
			continue
		}
		o.TotalFulfilled++
		sum += int64(r.FulfillmentDurationMinutes)
		n++
		if r.FulfillmentDurationMinutes < minMin {
			minMin = r.FulfillmentDurationMinutes
		}
		if r.FulfillmentDurationMinutes > maxMin {
			maxMin = r.FulfillmentDurationMinutes
		}
	}
	if n > 0 {
		o.AvgFulfillmentMinutes = round2(float64(sum) / float64(n))
		o.AvgFulfillmentHours = round2(float64(sum) / float64(n) / 60)
		o.MinFulfillmentMinutes = minMin
		o.MaxFulfillmentMinutes = maxMin
	}
	return o
}

func aggregateByPart(rows []statRow) []PartStats {
	type acc struct {
		count    int64
		sum      int64
		min, max int
	}
	parts := make(map[string]*acc)
	for _, r := range rows {
		if !measured(r) {
			continue
		}
		a, ok := parts[r.PartNo]
		if !ok {
			a = &acc{min: math.MaxInt}
			parts[r.PartNo] = a
		}
		a.count++
		a.sum += int64(r.FulfillmentDurationMinutes)
		if r.FulfillmentDurationMinutes < a.min {
			a.min = r.FulfillmentDurationMinutes
		}
		if r.FulfillmentDurationMinutes > a.max {
			a.max = r.FulfillmentDurationMinutes
		}
	}

	out := make([]PartStats, 0, len(parts))
	for part, a := range parts {
		avg := float64(a.sum) / float64(a.count)
		out = append(out, PartStats{
			PartNo:                part,
			FulfilledCount:        a.count,
			AvgFulfillmentMinutes: round2(avg),
			AvgFulfillmentHours:   round2(avg / 60),
			MinFulfillmentMinutes: a.min,
			MaxFulfillmentMinutes: a.max,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FulfilledCount != out[j].FulfilledCount {
			return out[i].FulfilledCount > out[j].FulfilledCount
		}
		return out[i].AvgFulfillmentMinutes < out[j].AvgFulfillmentMinutes
	})
	return out
}

func aggregateByShift(rows []statRow, loc *time.Location) []ShiftStats {
	type acc struct {
		count, auto, manual int64
		sum                 int64
		min, max            int
	}
	buckets := map[string]*acc{
		shift.Morning: {min: math.MaxInt},
		shift.Evening: {min: math.MaxInt},
		shift.Night:   {min: math.MaxInt},
	}
	for _, r := range rows {
		if !measured(r) {
			continue
		}
		a := buckets[shift.FromTime(r.FulfilledTime, loc)]
		a.count++
		a.sum += int64(r.FulfillmentDurationMinutes)
		if r.FulfillmentType == model.FulfillmentAutoCleanup {
			a.auto++
		} else {
			a.manual++
		}
		if r.FulfillmentDurationMinutes < a.min {
			a.min = r.FulfillmentDurationMinutes
		}
		if r.FulfillmentDurationMinutes > a.max {
			a.max = r.FulfillmentDurationMinutes
		}
	}

	out := make([]ShiftStats, 0, len(buckets))
	for _, name := range shift.Order() {
		a := buckets[name]
		st := ShiftStats{Shift: name, TimeRange: shift.TimeRange(name)}
		if a.count > 0 {
			avg := float64(a.sum) / float64(a.count)
			st.FulfilledCount = a.count
			st.AvgFulfillmentMinutes = round2(avg)
			st.AvgFulfillmentHours = round2(avg / 60)
			st.MinFulfillmentMinutes = a.min
			st.MaxFulfillmentMinutes = a.max
			st.AutoFulfilled = a.auto
			st.ManualCleanup = a.manual
		}
		out = append(out, st)
	}
	return out
}

func aggregateDailyTrends(rows []statRow, days int, loc *time.Location) []DailyTrend {
	trendDays := days
	if trendDays > 7 {
		trendDays = 7
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -trendDays)

	type acc struct {
		count int64
		sum   int64
	}
	byDay := make(map[string]*acc)
	for _, r := range rows {
		if !measured(r) || r.FulfilledTime.Before(cutoff) {
			continue
		}
		t := r.FulfilledTime
		if loc != nil {
			t = t.In(loc)
		}
		day := t.Format("2006-01-02")
		a, ok := byDay[day]
		if !ok {
			a = &acc{}
			byDay[day] = a
		}
		a.count++
		a.sum += int64(r.FulfillmentDurationMinutes)
	}

	out := make([]DailyTrend, 0, len(byDay))
	for day, a := range byDay {
		avg := float64(a.sum) / float64(a.count)
		out = append(out, DailyTrend{
			Date:               day,
			FulfilledCount:     a.count,
			AvgDurationMinutes: round2(avg),
			AvgDurationHours:   round2(avg / 60),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

// Performance thresholds in minutes.
const (
	fastThreshold   = 60
	mediumThreshold = 480
	slowThreshold   = 1440
)

func performanceCategory(minutes int) string {
	switch {
	case minutes <= fastThreshold:
		return "Fast (<=1 hour)"
	case minutes <= mediumThreshold:
		return "Medium (1-8 hours)"
	case minutes <= slowThreshold:
		return "Slow (8-24 hours)"
	default:
		return "Very Slow (>24 hours)"
	}
}

func aggregatePerformance(rows []statRow, total int64) []PerformanceBucket {
	type acc struct {
		count int64
		sum   int64
	}
	buckets := make(map[string]*acc)
	for _, r := range rows {
		if !measured(r) {
			continue
		}
		cat := performanceCategory(r.FulfillmentDurationMinutes)
		a, ok := buckets[cat]
		if !ok {
			a = &acc{}
			buckets[cat] = a
		}
		a.count++
		a.sum += int64(r.FulfillmentDurationMinutes)
	}

	out := make([]PerformanceBucket, 0, len(buckets))
	for cat, a := range buckets {
		b := PerformanceBucket{
			Category:   cat,
			Count:      a.count,
			AvgMinutes: round2(float64(a.sum) / float64(a.count)),
		}
		if total > 0 {
			b.Percentage = math.Round(float64(a.count)/float64(total)*1000) / 10
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AvgMinutes < out[j].AvgMinutes })
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
