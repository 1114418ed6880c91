package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/repairshop-service/internal/domain"
	"github.com/spec-kit/repairshop-service/internal/events"
	"github.com/spec-kit/repairshop-service/internal/repository"
	"github.com/spec-kit/repairshop-service/internal/workflow"
	"github.com/spec-kit/repairshop-service/pkg/util/errorutil"
)

var testClock = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

func newTestTaskService(store *fakeStore) *TaskService {
	return NewTaskService(TaskDependencies{
		Store:       store,
		Transitions: workflow.DefaultTransitionTable(),
		Dispatcher:  events.NewInMemoryDispatcher(),
		Now:         func() time.Time { return testClock },
	})
}

func seedTask(store *fakeStore, status domain.TaskStatus, assignedTo *string) *domain.Task {
	customer := store.addCustomer("Dana Reyes", "555-0101")
	creator := store.addUser(domain.RoleFrontDesk, "Front", false)
	task := &domain.Task{
		TicketNumber:    "A09-001",
		Status:          status,
		Urgency:         domain.TaskUrgencyMedium,
		CustomerID:      customer.ID,
		CreatedBy:       creator.ID,
		AssignedTo:      assignedTo,
		EstimatedCost:   decimal.NewFromInt(100),
		TotalCost:       decimal.NewFromInt(100),
		PaidAmount:      decimal.Zero,
		PaymentStatus:   domain.PaymentStatusUnpaid,
		CurrentLocation: "Front Desk",
		DateIn:          testClock.AddDate(0, 0, -3),
	}
	_ = store.Tasks().Create(context.Background(), task)
	return task
}

func activitiesOfType(t *testing.T, store *fakeStore, taskID string, activityType domain.ActivityType) []domain.TaskActivity {
	t.Helper()
	all, err := store.Activities().ListByTask(context.Background(), taskID)
	require.NoError(t, err)
	var matched []domain.TaskActivity
	for _, activity := range all {
		if activity.Type == activityType {
			matched = append(matched, activity)
		}
	}
	return matched
}

func TestCreateTaskMintsSequentialTicketNumbers(t *testing.T) {
	store := newFakeStore(func() time.Time { return testClock })
	svc := newTestTaskService(store)
	frontDesk := store.addUser(domain.RoleFrontDesk, "Front", false)
	actor := domain.Actor{ID: frontDesk.ID, Role: domain.RoleFrontDesk}

	first, err := svc.Create(context.Background(), actor, CreateTaskInput{
		CustomerName:  "Dana Reyes",
		CustomerPhone: "555-0101",
		DeviceModel:   "ThinkPad X1",
		Description:   "no boot",
	})
	require.NoError(t, err)
	assert.Equal(t, "A09-001", first.TicketNumber)
	assert.Equal(t, domain.TaskStatusPending, first.Status)

	second, err := svc.Create(context.Background(), actor, CreateTaskInput{
		CustomerPhone: "555-0101",
		DeviceModel:   "iPhone 14",
		Description:   "cracked screen",
	})
	require.NoError(t, err)
	assert.Equal(t, "A09-002", second.TicketNumber)

	// Same phone resolves to the same customer, no duplicate row.
	assert.Equal(t, first.CustomerID, second.CustomerID)
	assert.Len(t, store.customers, 1)

	assert.Len(t, activitiesOfType(t, store, first.ID, domain.ActivityIntake), 1)
}

func TestCreateTaskWithTechnicianStartsInProgress(t *testing.T) {
	store := newFakeStore(func() time.Time { return testClock })
	svc := newTestTaskService(store)
	frontDesk := store.addUser(domain.RoleFrontDesk, "Front", false)
	technician := store.addUser(domain.RoleTechnician, "Tess", false)

	task, err := svc.Create(context.Background(), domain.Actor{ID: frontDesk.ID, Role: domain.RoleFrontDesk}, CreateTaskInput{
		CustomerName:  "Ben Okafor",
		CustomerPhone: "555-0202",
		DeviceModel:   "Pixel 8",
		Description:   "battery drain",
		TechnicianID:  &technician.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, task.Status)
	require.NotNil(t, task.AssignedTo)
	assert.Equal(t, technician.ID, *task.AssignedTo)
	assert.Len(t, activitiesOfType(t, store, task.ID, domain.ActivityAssignment), 1)
}

func TestCreateTaskRequiresIntakeRole(t *testing.T) {
	store := newFakeStore(func() time.Time { return testClock })
	svc := newTestTaskService(store)
	technician := store.addUser(domain.RoleTechnician, "Tess", false)

	_, err := svc.Create(context.Background(), domain.Actor{ID: technician.ID, Role: domain.RoleTechnician}, CreateTaskInput{
		CustomerPhone: "555-0303",
		DeviceModel:   "PS5",
		Description:   "overheating",
	})
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", errorutil.ToDomainError(err).Code)
}

func TestTransitionDeniedByRoleTable(t *testing.T) {
	store := newFakeStore(func() time.Time { return testClock })
	svc := newTestTaskService(store)
	task := seedTask(store, domain.TaskStatusPending, nil)
	frontDesk := store.addUser(domain.RoleFrontDesk, "Front", false)

	_, err := svc.ChangeStatus(context.Background(), domain.Actor{ID: frontDesk.ID, Role: domain.RoleFrontDesk}, task.ID, TransitionInput{
		NewStatus: domain.TaskStatusInProgress,
	})
	require.Error(t, err)
	domainErr := errorutil.ToDomainError(err)
	assert.Equal(t, "FORBIDDEN_TRANSITION", domainErr.Code)
	assert.Equal(t, "As a Front Desk, you cannot change status from 'Pending' to 'In Progress'.", domainErr.Message)

	// Nothing was written.
	stored, _ := store.Tasks().GetByID(context.Background(), task.ID)
	assert.Equal(t, domain.TaskStatusPending, stored.Status)
	assert.Empty(t, activitiesOfType(t, store, task.ID, domain.ActivityStatusUpdate))
}

func TestManagerBypassesTransitionTable(t *testing.T) {
	store := newFakeStore(func() time.Time { return testClock })
	svc := newTestTaskService(store)
	task := seedTask(store, domain.TaskStatusPending, nil)
	manager := store.addUser(domain.RoleManager, "Mara", false)

	updated, err := svc.ChangeStatus(context.Background(), domain.Actor{ID: manager.ID, Role: domain.RoleManager}, task.ID, TransitionInput{
		NewStatus: domain.TaskStatusPickedUp,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPickedUp, updated.Status)
	require.NotNil(t, updated.DateOut)
	assert.Equal(t, testClock, *updated.DateOut)
	require.NotNil(t, updated.SentOutBy)
	assert.Equal(t, manager.ID, *updated.SentOutBy)
	assert.Len(t, activitiesOfType(t, store, task.ID, domain.ActivityPickedUp), 1)
}

func TestTechnicianWorkflowToCompleted(t *testing.T) {
	store := newFakeStore(func() time.Time { return testClock })
	svc := newTestTaskService(store)
	technician := store.addUser(domain.RoleTechnician, "Tess", false)
	task := seedTask(store, domain.TaskStatusPending, &technician.ID)
	actor := domain.Actor{ID: technician.ID, Role: domain.RoleTechnician}

	_, err := svc.ChangeStatus(context.Background(), actor, task.ID, TransitionInput{NewStatus: domain.TaskStatusInProgress})
	require.NoError(t, err)

	updated, err := svc.ChangeStatus(context.Background(), actor, task.ID, TransitionInput{NewStatus: domain.TaskStatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, updated.Status)

	entries := activitiesOfType(t, store, task.ID, domain.ActivityStatusUpdate)
	require.NotEmpty(t, entries)
	assert.Equal(t, "Task marked as Completed.", entries[len(entries)-1].Message)
}

func TestQCRejectionWritesRejectedEntryOnly(t *testing.T) {
	store := newFakeStore(func() time.Time { return testClock })
	svc := newTestTaskService(store)
	task := seedTask(store, domain.TaskStatusCompleted, nil)
	frontDesk := store.addUser(domain.RoleFrontDesk, "Front", false)

	updated, err := svc.ChangeStatus(context.Background(), domain.Actor{ID: frontDesk.ID, Role: domain.RoleFrontDesk}, task.ID, TransitionInput{
		NewStatus: domain.TaskStatusInProgress,
		Notes:     "screen still flickers",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, updated.Status)
	require.NotNil(t, updated.QCRejectedAt)
	require.NotNil(t, updated.QCRejectedBy)
	assert.Equal(t, frontDesk.ID, *updated.QCRejectedBy)

	rejected := activitiesOfType(t, store, task.ID, domain.ActivityRejected)
	require.Len(t, rejected, 1)
	assert.Contains(t, rejected[0].Message, "screen still flickers")
	// The rejection entry replaces the generic status note.
	assert.Empty(t, activitiesOfType(t, store, task.ID, domain.ActivityStatusUpdate))
}

func TestReworkAfterPickupWritesReturnedEntry(t *testing.T) {
	store := newFakeStore(func() time.Time { return testClock })
	svc := newTestTaskService(store)
	task := seedTask(store, domain.TaskStatusPickedUp, nil)
	frontDesk := store.addUser(domain.RoleFrontDesk, "Front", false)

	updated, err := svc.ChangeStatus(context.Background(), domain.Actor{ID: frontDesk.ID, Role: domain.RoleFrontDesk}, task.ID, TransitionInput{
		NewStatus: domain.TaskStatusInProgress,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, updated.Status)
	assert.Len(t, activitiesOfType(t, store, task.ID, domain.ActivityReturned), 1)
}

func TestAssignmentDuringTransition(t *testing.T) {
	store := newFakeStore(func() time.Time { return testClock })
	svc := newTestTaskService(store)
	task := seedTask(store, domain.TaskStatusPickedUp, nil)
	frontDesk := store.addUser(domain.RoleFrontDesk, "Front", false)
	technician := store.addUser(domain.RoleTechnician, "Tess", false)

	updated, err := svc.ChangeStatus(context.Background(), domain.Actor{ID: frontDesk.ID, Role: domain.RoleFrontDesk}, task.ID, TransitionInput{
		NewStatus:    domain.TaskStatusInProgress,
		TechnicianID: &technician.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedTo)
	assert.Equal(t, technician.ID, *updated.AssignedTo)
	assert.Len(t, activitiesOfType(t, store, task.ID, domain.ActivityAssignment), 1)
}

func TestUpdateEnforcesFieldWhitelist(t *testing.T) {
	store := newFakeStore(func() time.Time { return testClock })
	svc := newTestTaskService(store)
	task := seedTask(store, domain.TaskStatusInProgress, nil)
	technician := store.addUser(domain.RoleTechnician, "Tess", false)

	urgency := domain.TaskUrgencyHigh
	_, err := svc.Update(context.Background(), domain.Actor{ID: technician.ID, Role: domain.RoleTechnician}, task.ID, UpdateTaskInput{
		Urgency: &urgency,
	})
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", errorutil.ToDomainError(err).Code)

	description := "replaced thermal paste"
	updated, err := svc.Update(context.Background(), domain.Actor{ID: technician.ID, Role: domain.RoleTechnician}, task.ID, UpdateTaskInput{
		Description: &description,
	})
	require.NoError(t, err)
	assert.Equal(t, description, updated.Description)
}

func TestAccountantOverridesPaymentStatus(t *testing.T) {
	store := newFakeStore(func() time.Time { return testClock })
	svc := newTestTaskService(store)
	task := seedTask(store, domain.TaskStatusPickedUp, nil)
	accountant := store.addUser(domain.RoleAccountant, "Ada", false)

	fullyPaid := domain.PaymentStatusFullyPaid
	updated, err := svc.Update(context.Background(), domain.Actor{ID: accountant.ID, Role: domain.RoleAccountant}, task.ID, UpdateTaskInput{
		PaymentStatus: &fullyPaid,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFullyPaid, updated.PaymentStatus)
	require.NotNil(t, updated.PaidDate)
	assert.Equal(t, testClock, *updated.PaidDate)
}

func TestDeleteRequiresManager(t *testing.T) {
	store := newFakeStore(func() time.Time { return testClock })
	svc := newTestTaskService(store)
	task := seedTask(store, domain.TaskStatusPending, nil)
	frontDesk := store.addUser(domain.RoleFrontDesk, "Front", false)
	manager := store.addUser(domain.RoleManager, "Mara", false)

	err := svc.Delete(context.Background(), domain.Actor{ID: frontDesk.ID, Role: domain.RoleFrontDesk}, task.ID)
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", errorutil.ToDomainError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), domain.Actor{ID: manager.ID, Role: domain.RoleManager}, task.ID))
	_, err = svc.Get(context.Background(), task.ID)
	require.Error(t, err)
}

func TestAddActivityRejectsLifecycleTypes(t *testing.T) {
	store := newFakeStore(func() time.Time { return testClock })
	svc := newTestTaskService(store)
	task := seedTask(store, domain.TaskStatusInProgress, nil)
	technician := store.addUser(domain.RoleTechnician, "Tess", false)
	actor := domain.Actor{ID: technician.ID, Role: domain.RoleTechnician}

	_, err := svc.AddActivity(context.Background(), actor, task.ID, domain.ActivityPickedUp, "fake pickup")
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", errorutil.ToDomainError(err).Code)

	activity, err := svc.AddActivity(context.Background(), actor, task.ID, domain.ActivityDiagnosis, "faulty PSU")
	require.NoError(t, err)
	assert.Equal(t, domain.ActivityDiagnosis, activity.Type)
}

// staleStore simulates a concurrent writer landing between read and write.
type staleStore struct {
	*fakeStore
}

func (s staleStore) Tasks() repository.TaskRepository {
	return staleTasks{s.fakeStore.Tasks(), s.fakeStore}
}

func (s staleStore) WithinTx(_ context.Context, fn func(repository.Store) error) error {
	return fn(s)
}

type staleTasks struct {
	repository.TaskRepository
	store *fakeStore
}

func (s staleTasks) Update(ctx context.Context, task *domain.Task) error {
	s.store.tasks[task.ID].Version++
	return s.TaskRepository.Update(ctx, task)
}

func TestStaleVersionConflict(t *testing.T) {
	store := newFakeStore(func() time.Time { return testClock })
	svc := NewTaskService(TaskDependencies{
		Store:       staleStore{store},
		Transitions: workflow.DefaultTransitionTable(),
		Dispatcher:  events.NewInMemoryDispatcher(),
		Now:         func() time.Time { return testClock },
	})
	task := seedTask(store, domain.TaskStatusPending, nil)
	manager := store.addUser(domain.RoleManager, "Mara", false)

	description := "new"
	_, err := svc.Update(context.Background(), domain.Actor{ID: manager.ID, Role: domain.RoleManager}, task.ID, UpdateTaskInput{
		Description: &description,
	})
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", errorutil.ToDomainError(err).Code)
}
