package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/repairshop-service/internal/domain"
	"github.com/spec-kit/repairshop-service/internal/repository"
	"github.com/spec-kit/repairshop-service/pkg/util/errorutil"
)

// Report granularities.
const (
	GranularityWeekly  = "weekly"
	GranularityMonthly = "monthly"
)

// ReportService derives analytics from the task event log. Turnaround is
// computed purely from logged activities, so historical numbers stay stable
// even when task rows are edited later.
type ReportService struct {
	store  repository.Store
	cache  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// ReportDependencies bundles collaborators for the report service. Cache is
// optional; without it every request recomputes.
type ReportDependencies struct {
	Store    repository.Store
	Cache    *redis.Client
	CacheTTL time.Duration
	Logger   *zap.Logger
	Now      func() time.Time
}

// NewReportService wires the report service.
func NewReportService(deps ReportDependencies) *ReportService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		store:  deps.Store,
		cache:  deps.Cache,
		ttl:    deps.CacheTTL,
		logger: logger,
		now:    now,
	}
}

// TurnaroundQuery selects the window and bucketing for the turnaround
// report. Preset, when set, overrides From/To.
type TurnaroundQuery struct {
	Preset      string
	From        *time.Time
	To          *time.Time
	Granularity string
}

// PeriodStats is one bucket of the turnaround report.
type PeriodStats struct {
	Period            string  `json:"period"`
	AverageTurnaround float64 `json:"average_turnaround"`
	TasksCompleted    int     `json:"tasks_completed"`
}

// TaskTurnaround is the per-task detail row.
type TaskTurnaround struct {
	TaskID         string    `json:"task_id"`
	TicketNumber   string    `json:"ticket_number"`
	TurnaroundDays int       `json:"turnaround_days"`
	PickedUpAt     time.Time `json:"picked_up_at"`
}

// TurnaroundSummary tops off the report.
type TurnaroundSummary struct {
	OverallAverage float64 `json:"overall_average"`
	BestPeriod     string  `json:"best_period"`
	// Improvement is the percent drop in average turnaround between the
	// two most recent periods; negative means it got slower.
	Improvement float64 `json:"improvement"`
}

// TurnaroundReport is the full analyzer output.
type TurnaroundReport struct {
	From        time.Time         `json:"from"`
	To          time.Time         `json:"to"`
	Granularity string            `json:"granularity"`
	Periods     []PeriodStats     `json:"periods"`
	Tasks       []TaskTurnaround  `json:"tasks"`
	Summary     TurnaroundSummary `json:"summary"`
}

// TechnicianWorkload counts a technician's open tasks by status.
type TechnicianWorkload struct {
	TechnicianID string                    `json:"technician_id"`
	Name         string                    `json:"name"`
	ByStatus     map[domain.TaskStatus]int `json:"by_status"`
	Total        int                       `json:"total"`
}

// TechnicianPerformance aggregates completed work per technician.
type TechnicianPerformance struct {
	TechnicianID   string          `json:"technician_id"`
	Name           string          `json:"name"`
	TasksCompleted int             `json:"tasks_completed"`
	AverageDays    float64         `json:"average_days"`
	Revenue        decimal.Decimal `json:"revenue"`
}

// ResolveRange turns a named preset or explicit bounds into a window.
func (s *ReportService) ResolveRange(query TurnaroundQuery) (time.Time, time.Time, error) {
	now := s.now()
	switch query.Preset {
	case "":
	case "last_7_days":
		return now.AddDate(0, 0, -7), now, nil
	case "last_30_days":
		return now.AddDate(0, 0, -30), now, nil
	case "last_90_days":
		return now.AddDate(0, 0, -90), now, nil
	case "last_6_months":
		return now.AddDate(0, -6, 0), now, nil
	case "last_year":
		return now.AddDate(-1, 0, 0), now, nil
	default:
		return time.Time{}, time.Time{}, errorutil.NewValidationError(
			fmt.Sprintf("unknown date preset %q", query.Preset), nil)
	}
	if query.From == nil || query.To == nil {
		return time.Time{}, time.Time{}, errorutil.NewValidationError("from and to are required without a preset", nil)
	}
	if query.To.Before(*query.From) {
		return time.Time{}, time.Time{}, errorutil.NewValidationError("to must not precede from", nil)
	}
	return *query.From, *query.To, nil
}

// Turnaround builds the turnaround report for tasks picked up inside the
// window. Tasks whose event log cannot be interpreted are skipped, not
// fatal.
func (s *ReportService) Turnaround(ctx context.Context, query TurnaroundQuery) (*TurnaroundReport, error) {
	granularity := query.Granularity
	if granularity == "" {
		granularity = GranularityMonthly
	}
	if granularity != GranularityWeekly && granularity != GranularityMonthly {
		return nil, errorutil.NewValidationError(
			fmt.Sprintf("granularity must be %q or %q", GranularityWeekly, GranularityMonthly), nil)
	}
	from, to, err := s.ResolveRange(query)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("report:turnaround:%d:%d:%s", from.Unix(), to.Unix(), granularity)
	if cached := s.fromCache(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	taskIDs, err := s.store.Activities().TaskIDsWithActivity(ctx, domain.ActivityPickedUp, from, to)
	if err != nil {
		return nil, errorutil.MapError(err)
	}

	report := &TurnaroundReport{From: from, To: to, Granularity: granularity}
	periodDays := map[string][]int{}

	for _, taskID := range taskIDs {
		row, err := s.taskTurnaround(ctx, taskID, from, to)
		if err != nil {
			s.logger.Warn("skipping task in turnaround report",
				zap.String("task_id", taskID), zap.Error(err))
			continue
		}
		if row == nil {
			continue
		}
		report.Tasks = append(report.Tasks, *row)
		key := periodKey(row.PickedUpAt, granularity)
		periodDays[key] = append(periodDays[key], row.TurnaroundDays)
	}

	sort.Slice(report.Tasks, func(i, j int) bool {
		return report.Tasks[i].PickedUpAt.Before(report.Tasks[j].PickedUpAt)
	})

	keys := make([]string, 0, len(periodDays))
	for key := range periodDays {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	totalDays := 0
	for _, key := range keys {
		days := periodDays[key]
		sum := 0
		for _, d := range days {
			sum += d
			totalDays += d
		}
		report.Periods = append(report.Periods, PeriodStats{
			Period:            key,
			AverageTurnaround: round1(float64(sum) / float64(len(days))),
			TasksCompleted:    len(days),
		})
	}

	if len(report.Tasks) > 0 {
		report.Summary.OverallAverage = round1(float64(totalDays) / float64(len(report.Tasks)))
	}
	if len(report.Periods) > 0 {
		best := report.Periods[0]
		for _, period := range report.Periods[1:] {
			if period.AverageTurnaround < best.AverageTurnaround {
				best = period
			}
		}
		report.Summary.BestPeriod = best.Period
	}
	if n := len(report.Periods); n >= 2 {
		previous := report.Periods[n-2].AverageTurnaround
		latest := report.Periods[n-1].AverageTurnaround
		if previous > 0 {
			report.Summary.Improvement = round1((previous - latest) / previous * 100)
		}
	}

	s.toCache(ctx, cacheKey, report)
	return report, nil
}

// taskTurnaround derives one detail row from a task's event log: time from
// first intake to the most recent pickup in the window, minus the spans the
// device was away with the customer.
func (s *ReportService) taskTurnaround(ctx context.Context, taskID string, from, to time.Time) (*TaskTurnaround, error) {
	activities, err := s.store.Activities().ListByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	var intakeAt *time.Time
	var pickupAt *time.Time
	for i := range activities {
		activity := activities[i]
		switch activity.Type {
		case domain.ActivityIntake:
			if intakeAt == nil {
				intakeAt = &activity.Timestamp
			}
		case domain.ActivityPickedUp:
			if !activity.Timestamp.Before(from) && !activity.Timestamp.After(to) {
				ts := activity.Timestamp
				pickupAt = &ts
			}
		}
	}
	if intakeAt == nil {
		return nil, fmt.Errorf("no intake entry")
	}
	if pickupAt == nil {
		return nil, nil
	}

	// Time the device spent back with the customer between pickups does not
	// count against the shop.
	var away time.Duration
	var pendingPickup *time.Time
	for i := range activities {
		activity := activities[i]
		switch activity.Type {
		case domain.ActivityPickedUp:
			ts := activity.Timestamp
			pendingPickup = &ts
		case domain.ActivityReturned:
			if pendingPickup != nil {
				away += activity.Timestamp.Sub(*pendingPickup)
				pendingPickup = nil
			}
		}
	}

	net := pickupAt.Sub(*intakeAt) - away
	if net < 0 {
		net = 0
	}
	days := int(math.Round(net.Hours() / 24))

	ticketNumber := ""
	if task, err := s.store.Tasks().GetByID(ctx, taskID); err == nil {
		ticketNumber = task.TicketNumber
	}
	return &TaskTurnaround{
		TaskID:         taskID,
		TicketNumber:   ticketNumber,
		TurnaroundDays: days,
		PickedUpAt:     *pickupAt,
	}, nil
}

// Workload counts each active technician's open tasks by status.
func (s *ReportService) Workload(ctx context.Context) ([]TechnicianWorkload, error) {
	technicians, err := s.store.Users().ListActiveByRole(ctx, domain.RoleTechnician)
	if err != nil {
		return nil, errorutil.MapError(err)
	}
	hasTechnician := true
	tasks, err := s.store.Tasks().List(ctx, repository.TaskFilter{
		ExcludeStatuses: []domain.TaskStatus{domain.TaskStatusPickedUp, domain.TaskStatusTerminated},
		HasTechnician:   &hasTechnician,
	})
	if err != nil {
		return nil, errorutil.MapError(err)
	}

	byTechnician := map[string]*TechnicianWorkload{}
	result := make([]TechnicianWorkload, 0, len(technicians))
	for i := range technicians {
		technician := technicians[i]
		result = append(result, TechnicianWorkload{
			TechnicianID: technician.ID,
			Name:         technician.FullName(),
			ByStatus:     map[domain.TaskStatus]int{},
		})
		byTechnician[technician.ID] = &result[len(result)-1]
	}
	for _, task := range tasks {
		if task.AssignedTo == nil {
			continue
		}
		workload, ok := byTechnician[*task.AssignedTo]
		if !ok {
			continue
		}
		workload.ByStatus[task.Status]++
		workload.Total++
	}
	return result, nil
}

// Performance aggregates tasks approved for pickup inside the window per
// technician: throughput, mean days from intake to approval, and revenue.
func (s *ReportService) Performance(ctx context.Context, from, to time.Time) ([]TechnicianPerformance, error) {
	readyEntries, err := s.store.Activities().ListByTypesInWindow(ctx, []domain.ActivityType{domain.ActivityReady}, from, to)
	if err != nil {
		return nil, errorutil.MapError(err)
	}

	// Count each task once, at its most recent approval.
	latestReady := map[string]time.Time{}
	for _, entry := range readyEntries {
		latestReady[entry.TaskID] = entry.Timestamp
	}

	type bucket struct {
		count   int
		days    float64
		revenue decimal.Decimal
	}
	buckets := map[string]*bucket{}

	for taskID, readyAt := range latestReady {
		task, err := s.store.Tasks().GetByID(ctx, taskID)
		if err != nil {
			s.logger.Warn("skipping task in performance report",
				zap.String("task_id", taskID), zap.Error(err))
			continue
		}
		if task.AssignedTo == nil {
			continue
		}
		activities, err := s.store.Activities().ListByTask(ctx, taskID)
		if err != nil {
			s.logger.Warn("skipping task in performance report",
				zap.String("task_id", taskID), zap.Error(err))
			continue
		}
		var intakeAt *time.Time
		for i := range activities {
			if activities[i].Type == domain.ActivityIntake {
				intakeAt = &activities[i].Timestamp
				break
			}
		}
		if intakeAt == nil {
			continue
		}

		b, ok := buckets[*task.AssignedTo]
		if !ok {
			b = &bucket{revenue: decimal.Zero}
			buckets[*task.AssignedTo] = b
		}
		b.count++
		b.days += readyAt.Sub(*intakeAt).Hours() / 24
		b.revenue = b.revenue.Add(task.TotalCost)
	}

	result := make([]TechnicianPerformance, 0, len(buckets))
	for technicianID, b := range buckets {
		name := technicianID
		if user, err := s.store.Users().GetByID(ctx, technicianID); err == nil {
			name = user.FullName()
		}
		result = append(result, TechnicianPerformance{
			TechnicianID:   technicianID,
			Name:           name,
			TasksCompleted: b.count,
			AverageDays:    round1(b.days / float64(b.count)),
			Revenue:        b.revenue,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TasksCompleted > result[j].TasksCompleted
	})
	return result, nil
}

func (s *ReportService) fromCache(ctx context.Context, key string) *TurnaroundReport {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil
	}
	var report TurnaroundReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil
	}
	return &report
}

func (s *ReportService) toCache(ctx context.Context, key string, report *TurnaroundReport) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func periodKey(ts time.Time, granularity string) string {
	if granularity == GranularityWeekly {
		year, week := ts.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	}
	return ts.Format("2006-01")
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
