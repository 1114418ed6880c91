package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/repairshop-service/internal/domain"
)

func newTestReportService(store *fakeStore) *ReportService {
	return NewReportService(ReportDependencies{
		Store: store,
		Now:   func() time.Time { return testClock },
	})
}

func day(offset int) time.Time {
	return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func TestTurnaroundSubtractsCustomerTime(t *testing.T) {
	store := newFakeStore(func() time.Time { return testClock })
	svc := newTestReportService(store)
	task := seedTask(store, domain.TaskStatusPickedUp, nil)

	// In shop 5 days, with the customer 2 days, back in shop 3 more days.
	store.addActivity(task.ID, domain.ActivityIntake, day(0))
	store.addActivity(task.ID, domain.ActivityPickedUp, day(5))
	store.addActivity(task.ID, domain.ActivityReturned, day(7))
	store.addActivity(task.ID, domain.ActivityPickedUp, day(10))

	from, to := day(-1), day(11)
	report, err := svc.Turnaround(context.Background(), TurnaroundQuery{From: &from, To: &to})
	require.NoError(t, err)

	require.Len(t, report.Tasks, 1)
	assert.Equal(t, 8, report.Tasks[0].TurnaroundDays)
	assert.Equal(t, task.TicketNumber, report.Tasks[0].TicketNumber)
	require.Len(t, report.Periods, 1)
	assert.Equal(t, "2026-06", report.Periods[0].Period)
	assert.Equal(t, 1, report.Periods[0].TasksCompleted)
	assert.InDelta(t, 8.0, report.Periods[0].AverageTurnaround, 0.01)
}

func TestTurnaroundClampsNegativeToZero(t *testing.T) {
	store := newFakeStore(func() time.Time { return testClock })
	svc := newTestReportService(store)
	task := seedTask(store, domain.TaskStatusPickedUp, nil)

	// The only pickup in the window is followed by a long customer-side
	// span, pushing the net below zero.
	store.addActivity(task.ID, domain.ActivityIntake, day(0))
	store.addActivity(task.ID, domain.ActivityPickedUp, day(1))
	store.addActivity(task.ID, domain.ActivityReturned, day(6))

	from, to := day(0), day(2)
	report, err := svc.Turnaround(context.Background(), TurnaroundQuery{From: &from, To: &to})
	require.NoError(t, err)

	require.Len(t, report.Tasks, 1)
	assert.Equal(t, 0, report.Tasks[0].TurnaroundDays)
}

func TestTurnaroundSkipsTasksWithoutIntake(t *testing.T) {
	store := newFakeStore(func() time.Time { return testClock })
	svc := newTestReportService(store)
	broken := seedTask(store, domain.TaskStatusPickedUp, nil)
	healthy := seedTask(store, domain.TaskStatusPickedUp, nil)

	store.addActivity(broken.ID, domain.ActivityPickedUp, day(3))
	store.addActivity(healthy.ID, domain.ActivityIntake, day(0))
	store.addActivity(healthy.ID, domain.ActivityPickedUp, day(4))

	from, to := day(-1), day(5)
	report, err := svc.Turnaround(context.Background(), TurnaroundQuery{From: &from, To: &to})
	require.NoError(t, err)

	require.Len(t, report.Tasks, 1)
	assert.Equal(t, healthy.ID, report.Tasks[0].TaskID)
}

func TestTurnaroundSummaryAcrossPeriods(t *testing.T) {
	store := newFakeStore(func() time.Time { return testClock })
	svc := newTestReportService(store)

	// Two June pickups averaging 4 days, one July pickup at 2 days.
	for _, offsets := range [][2]int{{0, 3}, {0, 5}} {
		task := seedTask(store, domain.TaskStatusPickedUp, nil)
		store.addActivity(task.ID, domain.ActivityIntake, day(offsets[0]))
		store.addActivity(task.ID, domain.ActivityPickedUp, day(offsets[1]))
	}
	julyTask := seedTask(store, domain.TaskStatusPickedUp, nil)
	store.addActivity(julyTask.ID, domain.ActivityIntake, day(34))
	store.addActivity(julyTask.ID, domain.ActivityPickedUp, day(36))

	from, to := day(-1), day(40)
	report, err := svc.Turnaround(context.Background(), TurnaroundQuery{From: &from, To: &to})
	require.NoError(t, err)

	require.Len(t, report.Periods, 2)
	assert.Equal(t, "2026-06", report.Periods[0].Period)
	assert.InDelta(t, 4.0, report.Periods[0].AverageTurnaround, 0.01)
	assert.Equal(t, "2026-07", report.Periods[1].Period)
	assert.InDelta(t, 2.0, report.Periods[1].AverageTurnaround, 0.01)

	assert.Equal(t, "2026-07", report.Summary.BestPeriod)
	assert.InDelta(t, 50.0, report.Summary.Improvement, 0.01)
	assert.InDelta(t, 10.0/3.0, report.Summary.OverallAverage, 0.05)
}

func TestTurnaroundWeeklyBuckets(t *testing.T) {
	store := newFakeStore(func() time.Time { return testClock })
	svc := newTestReportService(store)
	task := seedTask(store, domain.TaskStatusPickedUp, nil)
	store.addActivity(task.ID, domain.ActivityIntake, day(0))
	store.addActivity(task.ID, domain.ActivityPickedUp, day(2))

	from, to := day(-1), day(5)
	report, err := svc.Turnaround(context.Background(), TurnaroundQuery{From: &from, To: &to, Granularity: GranularityWeekly})
	require.NoError(t, err)

	require.Len(t, report.Periods, 1)
	year, week := day(2).ISOWeek()
	assert.Equal(t, "2026-W23", report.Periods[0].Period)
	assert.Equal(t, 2026, year)
	assert.Equal(t, 23, week)
}

func TestResolveRangePresets(t *testing.T) {
	store := newFakeStore(func() time.Time { return testClock })
	svc := newTestReportService(store)

	from, to, err := svc.ResolveRange(TurnaroundQuery{Preset: "last_7_days"})
	require.NoError(t, err)
	assert.Equal(t, testClock, to)
	assert.Equal(t, testClock.AddDate(0, 0, -7), from)

	_, _, err = svc.ResolveRange(TurnaroundQuery{Preset: "fortnight"})
	require.Error(t, err)

	_, _, err = svc.ResolveRange(TurnaroundQuery{})
	require.Error(t, err, "explicit bounds required without a preset")
}

func TestWorkloadCountsOpenTasksPerTechnician(t *testing.T) {
	store := newFakeStore(func() time.Time { return testClock })
	svc := newTestReportService(store)
	tess := store.addUser(domain.RoleTechnician, "Tess", false)
	wes := store.addUser(domain.RoleTechnician, "Wes", false)

	seedTask(store, domain.TaskStatusInProgress, &tess.ID)
	seedTask(store, domain.TaskStatusAwaitingParts, &tess.ID)
	seedTask(store, domain.TaskStatusInProgress, &wes.ID)
	seedTask(store, domain.TaskStatusPickedUp, &wes.ID) // closed, not counted

	workloads, err := svc.Workload(context.Background())
	require.NoError(t, err)
	require.Len(t, workloads, 2)

	byID := map[string]TechnicianWorkload{}
	for _, workload := range workloads {
		byID[workload.TechnicianID] = workload
	}
	assert.Equal(t, 2, byID[tess.ID].Total)
	assert.Equal(t, 1, byID[tess.ID].ByStatus[domain.TaskStatusAwaitingParts])
	assert.Equal(t, 1, byID[wes.ID].Total)
}

func TestPerformanceAggregatesReadyTasks(t *testing.T) {
	store := newFakeStore(func() time.Time { return testClock })
	svc := newTestReportService(store)
	tess := store.addUser(domain.RoleTechnician, "Tess", false)

	first := seedTask(store, domain.TaskStatusReadyForPickup, &tess.ID)
	store.tasks[first.ID].TotalCost = decimal.NewFromInt(120)
	store.addActivity(first.ID, domain.ActivityIntake, day(0))
	store.addActivity(first.ID, domain.ActivityReady, day(4))

	second := seedTask(store, domain.TaskStatusReadyForPickup, &tess.ID)
	store.tasks[second.ID].TotalCost = decimal.NewFromInt(80)
	store.addActivity(second.ID, domain.ActivityIntake, day(1))
	store.addActivity(second.ID, domain.ActivityReady, day(3))

	performance, err := svc.Performance(context.Background(), day(-1), day(5))
	require.NoError(t, err)
	require.Len(t, performance, 1)

	row := performance[0]
	assert.Equal(t, tess.ID, row.TechnicianID)
	assert.Equal(t, 2, row.TasksCompleted)
	assert.InDelta(t, 3.0, row.AverageDays, 0.01)
	assert.True(t, row.Revenue.Equal(decimal.NewFromInt(200)))
}
