package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/repairshop-service/internal/domain"
	"github.com/spec-kit/repairshop-service/internal/events"
	"github.com/spec-kit/repairshop-service/internal/repository"
	"github.com/spec-kit/repairshop-service/internal/workflow"
	"github.com/spec-kit/repairshop-service/pkg/util/errorutil"
)

// TaskService coordinates the repair task lifecycle: intake, status
// transitions, field edits and the activity log.
type TaskService struct {
	store       repository.Store
	transitions workflow.TransitionTable
	dispatcher  events.Dispatcher
	now         func() time.Time
}

// TaskDependencies bundles collaborators for the task service.
type TaskDependencies struct {
	Store       repository.Store
	Transitions workflow.TransitionTable
	Dispatcher  events.Dispatcher
	Now         func() time.Time
}

// NewTaskService wires the task service.
func NewTaskService(deps TaskDependencies) *TaskService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &TaskService{
		store:       deps.Store,
		transitions: deps.Transitions,
		dispatcher:  deps.Dispatcher,
		now:         now,
	}
}

// CreateTaskInput describes intake of a new device.
type CreateTaskInput struct {
	CustomerID    *string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string

	BrandID      *string
	DeviceModel  string
	SerialNumber string
	Description  string

	Urgency       domain.TaskUrgency
	EstimatedCost decimal.Decimal
	Location      string
	TechnicianID  *string
}

// TransitionInput carries a requested status change and its optional
// side-channel data.
type TransitionInput struct {
	NewStatus domain.TaskStatus
	// TechnicianID reassigns the task when front desk pulls it back into
	// progress.
	TechnicianID *string
	// Notes, on a move back to In Progress from Completed or Ready for
	// Pickup, marks the change as a quality-control rejection.
	Notes string
}

// UpdateTaskInput carries field edits; nil fields are left untouched.
type UpdateTaskInput struct {
	Urgency         *domain.TaskUrgency
	Description     *string
	DeviceModel     *string
	SerialNumber    *string
	BrandID         *string
	CurrentLocation *string
	EstimatedCost   *decimal.Decimal
	PaymentStatus   *domain.PaymentStatus
}

// TaskListInput captures listing parameters from the API layer.
type TaskListInput struct {
	Statuses        []domain.TaskStatus
	ExcludeStatuses []domain.TaskStatus
	CustomerID      *string
	AssignedTo      *string
	Unassigned      bool
	SearchTerm      *string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	Limit           int
	Offset          int
}

// editableFields is the per-role field whitelist for task edits. Managers
// and admins bypass it.
var editableFields = map[domain.Role]map[string]bool{
	domain.RoleFrontDesk: {
		"urgency":          true,
		"description":      true,
		"device_model":     true,
		"serial_number":    true,
		"brand_id":         true,
		"current_location": true,
		"estimated_cost":   true,
	},
	domain.RoleTechnician: {
		"description":      true,
		"device_model":     true,
		"serial_number":    true,
		"current_location": true,
	},
	domain.RoleAccountant: {
		"payment_status": true,
	},
}

// Create performs device intake: resolves the customer by id or phone,
// mints a ticket number and writes the opening activity entry.
func (s *TaskService) Create(ctx context.Context, actor domain.Actor, input CreateTaskInput) (*domain.Task, error) {
	if actor.Role != domain.RoleFrontDesk && !actor.Role.Privileged() {
		return nil, errorutil.NewForbidden("only front desk staff can register new tasks")
	}
	if input.Urgency == "" {
		input.Urgency = domain.TaskUrgencyMedium
	}
	if input.EstimatedCost.IsNegative() {
		return nil, errorutil.NewValidationError("estimated cost cannot be negative", nil)
	}

	var (
		task      *domain.Task
		published []events.Event
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		customer, err := s.resolveCustomer(ctx, tx, input)
		if err != nil {
			return err
		}

		var technician *domain.User
		if input.TechnicianID != nil {
			technician, err = s.resolveTechnician(ctx, tx, *input.TechnicianID)
			if err != nil {
				return err
			}
		}

		now := s.now()
		ticketNumber, err := s.nextTicketNumber(ctx, tx, now)
		if err != nil {
			return err
		}

		location := input.Location
		if location == "" {
			location = "Front Desk"
		}

		task = &domain.Task{
			TicketNumber:    ticketNumber,
			Status:          domain.TaskStatusPending,
			Urgency:         input.Urgency,
			CustomerID:      customer.ID,
			CreatedBy:       actor.ID,
			BrandID:         input.BrandID,
			DeviceModel:     input.DeviceModel,
			SerialNumber:    input.SerialNumber,
			Description:     input.Description,
			EstimatedCost:   input.EstimatedCost,
			TotalCost:       input.EstimatedCost,
			PaidAmount:      decimal.Zero,
			PaymentStatus:   domain.PaymentStatusUnpaid,
			CurrentLocation: location,
			DateIn:          now,
		}
		if technician != nil {
			task.Status = domain.TaskStatusInProgress
			task.AssignedTo = &technician.ID
		}
		if err := tx.Tasks().Create(ctx, task); err != nil {
			return err
		}

		if err := s.appendActivity(ctx, tx, task.ID, &actor.ID, domain.ActivityIntake,
			fmt.Sprintf("Task %s created for %s.", task.TicketNumber, customer.Name)); err != nil {
			return err
		}
		if technician != nil {
			if err := s.appendActivity(ctx, tx, task.ID, &actor.ID, domain.ActivityAssignment,
				fmt.Sprintf("Task assigned to %s.", technician.FullName())); err != nil {
				return err
			}
		}

		published = append(published, s.newEvent(events.EventTaskCreated, task.ID, actor, events.TaskCreatedPayload{
			TicketNumber: task.TicketNumber,
			Status:       task.Status,
			Urgency:      task.Urgency,
			CustomerID:   task.CustomerID,
		}))
		if technician != nil {
			published = append(published, s.newEvent(events.EventTaskAssigned, task.ID, actor, events.TaskAssignedPayload{
				NewTechnicianID: &technician.ID,
			}))
		}
		return nil
	})
	if err != nil {
		return nil, errorutil.MapError(err)
	}
	s.publish(ctx, published)
	return task, nil
}

// Get loads a task by id.
func (s *TaskService) Get(ctx context.Context, id string) (*domain.Task, error) {
	task, err := s.store.Tasks().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorutil.NewNotFound("task", map[string]any{"task_id": id})
		}
		return nil, errorutil.MapError(err)
	}
	return task, nil
}

// GetByTicketNumber loads a task by its human-facing ticket number.
func (s *TaskService) GetByTicketNumber(ctx context.Context, ticketNumber string) (*domain.Task, error) {
	task, err := s.store.Tasks().GetByTicketNumber(ctx, ticketNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorutil.NewNotFound("task", map[string]any{"ticket_number": ticketNumber})
		}
		return nil, errorutil.MapError(err)
	}
	return task, nil
}

// List returns tasks matching the filter plus the unpaginated total.
// Technicians only ever see their own queue.
func (s *TaskService) List(ctx context.Context, actor domain.Actor, input TaskListInput) ([]domain.Task, int, error) {
	filter := repository.TaskFilter{
		Statuses:        input.Statuses,
		ExcludeStatuses: input.ExcludeStatuses,
		CustomerID:      input.CustomerID,
		AssignedTo:      input.AssignedTo,
		SearchTerm:      input.SearchTerm,
		CreatedFrom:     input.CreatedFrom,
		CreatedTo:       input.CreatedTo,
		Limit:           input.Limit,
		Offset:          input.Offset,
	}
	if input.Unassigned {
		hasTechnician := false
		filter.HasTechnician = &hasTechnician
	}
	if actor.Role == domain.RoleTechnician {
		filter.AssignedTo = &actor.ID
	}

	tasks, err := s.store.Tasks().List(ctx, filter)
	if err != nil {
		return nil, 0, errorutil.MapError(err)
	}
	total, err := s.store.Tasks().Count(ctx, filter)
	if err != nil {
		return nil, 0, errorutil.MapError(err)
	}
	return tasks, total, nil
}

// ListDebts returns delivered or deliverable tasks that still owe money.
func (s *TaskService) ListDebts(ctx context.Context, actor domain.Actor, limit, offset int) ([]domain.Task, int, error) {
	if actor.Role == domain.RoleTechnician {
		return nil, 0, errorutil.NewForbidden("technicians cannot view the debts ledger")
	}
	fullyPaid := domain.PaymentStatusFullyPaid
	filter := repository.TaskFilter{
		Statuses: []domain.TaskStatus{
			domain.TaskStatusCompleted,
			domain.TaskStatusReadyForPickup,
			domain.TaskStatusPickedUp,
		},
		NotPaymentStatus: &fullyPaid,
		Limit:            limit,
		Offset:           offset,
	}
	tasks, err := s.store.Tasks().List(ctx, filter)
	if err != nil {
		return nil, 0, errorutil.MapError(err)
	}
	total, err := s.store.Tasks().Count(ctx, filter)
	if err != nil {
		return nil, 0, errorutil.MapError(err)
	}
	return tasks, total, nil
}

// ChangeStatus runs the requested transition through the role table and
// applies its side effects atomically.
func (s *TaskService) ChangeStatus(ctx context.Context, actor domain.Actor, taskID string, input TransitionInput) (*domain.Task, error) {
	if !validStatus(input.NewStatus) {
		return nil, errorutil.NewValidationError(
			fmt.Sprintf("unknown status %q", input.NewStatus), nil)
	}

	var (
		task      *domain.Task
		published []events.Event
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		task, err = tx.Tasks().GetByID(ctx, taskID)
		if err != nil {
			return err
		}
		published, err = s.applyTransition(ctx, tx, actor, task, input)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorutil.NewNotFound("task", map[string]any{"task_id": taskID})
		}
		return nil, errorutil.MapError(err)
	}
	s.publish(ctx, published)
	return task, nil
}

// applyTransition mutates the task under an ambient transaction and returns
// the events to publish after commit.
func (s *TaskService) applyTransition(ctx context.Context, tx repository.Store, actor domain.Actor, task *domain.Task, input TransitionInput) ([]events.Event, error) {
	oldStatus := task.Status
	if oldStatus == input.NewStatus {
		return nil, errorutil.NewValidationError("task is already in the requested status", nil)
	}
	if !s.transitions.Allows(actor.Role, oldStatus, input.NewStatus) {
		return nil, errorutil.NewForbiddenTransition(string(actor.Role), string(oldStatus), string(input.NewStatus))
	}

	now := s.now()
	task.Status = input.NewStatus

	var published []events.Event
	logged := false

	switch input.NewStatus {
	case domain.TaskStatusPickedUp:
		task.DateOut = &now
		task.SentOutBy = &actor.ID
		if err := s.appendActivity(ctx, tx, task.ID, &actor.ID, domain.ActivityPickedUp,
			"Task has been picked up by the customer."); err != nil {
			return nil, err
		}
		logged = true

	case domain.TaskStatusCompleted:
		if err := s.appendActivity(ctx, tx, task.ID, &actor.ID, domain.ActivityStatusUpdate,
			"Task marked as Completed."); err != nil {
			return nil, err
		}
		logged = true

	case domain.TaskStatusReadyForPickup:
		task.ApprovedAt = &now
		if err := s.appendActivity(ctx, tx, task.ID, &actor.ID, domain.ActivityReady,
			"Task has been approved and is ready for pickup."); err != nil {
			return nil, err
		}
		logged = true

	case domain.TaskStatusInProgress:
		rejection := input.Notes != "" &&
			(oldStatus == domain.TaskStatusCompleted || oldStatus == domain.TaskStatusReadyForPickup)
		if rejection {
			task.QCRejectedAt = &now
			task.QCRejectedBy = &actor.ID
			if err := s.appendActivity(ctx, tx, task.ID, &actor.ID, domain.ActivityRejected,
				fmt.Sprintf("Quality control rejected: %s", input.Notes)); err != nil {
				return nil, err
			}
			published = append(published, s.newEvent(events.EventTaskQCRejected, task.ID, actor, events.TaskStatusChangedPayload{
				OldStatus: oldStatus,
				NewStatus: input.NewStatus,
				Notes:     input.Notes,
			}))
			logged = true
		}
		if oldStatus == domain.TaskStatusPickedUp {
			if err := s.appendActivity(ctx, tx, task.ID, &actor.ID, domain.ActivityReturned,
				"Task returned by the customer for further work."); err != nil {
				return nil, err
			}
			logged = true
		}
		if input.TechnicianID != nil {
			technician, err := s.resolveTechnician(ctx, tx, *input.TechnicianID)
			if err != nil {
				return nil, err
			}
			oldTechnician := task.AssignedTo
			task.AssignedTo = &technician.ID
			if err := s.appendActivity(ctx, tx, task.ID, &actor.ID, domain.ActivityAssignment,
				fmt.Sprintf("Task assigned to %s.", technician.FullName())); err != nil {
				return nil, err
			}
			published = append(published, s.newEvent(events.EventTaskAssigned, task.ID, actor, events.TaskAssignedPayload{
				OldTechnicianID: oldTechnician,
				NewTechnicianID: &technician.ID,
			}))
			logged = true
		}
	}

	if !logged {
		if err := s.appendActivity(ctx, tx, task.ID, &actor.ID, domain.ActivityStatusUpdate,
			fmt.Sprintf("Status changed from '%s' to '%s'.", oldStatus, input.NewStatus)); err != nil {
			return nil, err
		}
	}

	if err := s.saveTask(ctx, tx, task); err != nil {
		return nil, err
	}

	published = append(published, s.newEvent(events.EventTaskStatusChanged, task.ID, actor, events.TaskStatusChangedPayload{
		OldStatus: oldStatus,
		NewStatus: input.NewStatus,
		Notes:     input.Notes,
	}))
	return published, nil
}

// Update applies field edits subject to the per-role whitelist. Estimated
// cost changes re-derive the ledger totals in the same transaction.
func (s *TaskService) Update(ctx context.Context, actor domain.Actor, taskID string, input UpdateTaskInput) (*domain.Task, error) {
	if denied := deniedFields(actor.Role, input); len(denied) > 0 {
		return nil, errorutil.NewForbidden(
			fmt.Sprintf("role %s may not edit: %s", actor.Role, strings.Join(denied, ", ")))
	}
	if input.EstimatedCost != nil && input.EstimatedCost.IsNegative() {
		return nil, errorutil.NewValidationError("estimated cost cannot be negative", nil)
	}

	var task *domain.Task
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		task, err = tx.Tasks().GetByID(ctx, taskID)
		if err != nil {
			return err
		}

		if input.Urgency != nil {
			task.Urgency = *input.Urgency
		}
		if input.Description != nil {
			task.Description = *input.Description
		}
		if input.DeviceModel != nil {
			task.DeviceModel = *input.DeviceModel
		}
		if input.SerialNumber != nil {
			task.SerialNumber = *input.SerialNumber
		}
		if input.BrandID != nil {
			task.BrandID = input.BrandID
		}
		if input.CurrentLocation != nil {
			task.CurrentLocation = *input.CurrentLocation
		}
		if input.EstimatedCost != nil {
			task.EstimatedCost = *input.EstimatedCost
			if err := recomputeLedger(ctx, tx, task, s.now()); err != nil {
				return err
			}
		}
		if input.PaymentStatus != nil {
			task.PaymentStatus = *input.PaymentStatus
			if *input.PaymentStatus == domain.PaymentStatusFullyPaid {
				now := s.now()
				task.PaidDate = &now
			} else {
				task.PaidDate = nil
			}
		}

		return s.saveTask(ctx, tx, task)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorutil.NewNotFound("task", map[string]any{"task_id": taskID})
		}
		return nil, errorutil.MapError(err)
	}
	return task, nil
}

// Delete removes a task and its dependent rows. Managers only.
func (s *TaskService) Delete(ctx context.Context, actor domain.Actor, taskID string) error {
	if !actor.Role.Privileged() {
		return errorutil.NewForbidden("only managers can delete tasks")
	}
	if err := s.store.Tasks().Delete(ctx, taskID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errorutil.NewNotFound("task", map[string]any{"task_id": taskID})
		}
		return errorutil.MapError(err)
	}
	return nil
}

// manualActivityTypes are the entry kinds staff may write by hand; lifecycle
// entries only ever come from the state machine.
var manualActivityTypes = map[domain.ActivityType]bool{
	domain.ActivityNote:            true,
	domain.ActivityDiagnosis:       true,
	domain.ActivityCustomerContact: true,
	domain.ActivityDeviceNote:      true,
}

// AddActivity appends a free-form entry to the task event log.
func (s *TaskService) AddActivity(ctx context.Context, actor domain.Actor, taskID string, activityType domain.ActivityType, message string) (*domain.TaskActivity, error) {
	if !manualActivityTypes[activityType] {
		return nil, errorutil.NewValidationError(
			fmt.Sprintf("activity type %q cannot be written directly", activityType), nil)
	}
	if strings.TrimSpace(message) == "" {
		return nil, errorutil.NewValidationError("activity message is required", nil)
	}
	if _, err := s.Get(ctx, taskID); err != nil {
		return nil, err
	}
	activity := &domain.TaskActivity{
		TaskID:  taskID,
		UserID:  &actor.ID,
		Type:    activityType,
		Message: message,
	}
	if err := s.store.Activities().Append(ctx, activity); err != nil {
		return nil, errorutil.MapError(err)
	}
	return activity, nil
}

// Activities returns the full event log of a task, oldest first.
func (s *TaskService) Activities(ctx context.Context, taskID string) ([]domain.TaskActivity, error) {
	if _, err := s.Get(ctx, taskID); err != nil {
		return nil, err
	}
	items, err := s.store.Activities().ListByTask(ctx, taskID)
	if err != nil {
		return nil, errorutil.MapError(err)
	}
	return items, nil
}

// AllowedTransitions lists the statuses the actor may move the task to.
func (s *TaskService) AllowedTransitions(ctx context.Context, actor domain.Actor, taskID string) ([]domain.TaskStatus, error) {
	task, err := s.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return s.transitions.AllowedNext(actor.Role, task.Status), nil
}

func (s *TaskService) resolveCustomer(ctx context.Context, tx repository.Store, input CreateTaskInput) (*domain.Customer, error) {
	if input.CustomerID != nil {
		customer, err := tx.Customers().GetByID(ctx, *input.CustomerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, errorutil.NewNotFound("customer", map[string]any{"customer_id": *input.CustomerID})
			}
			return nil, err
		}
		return customer, nil
	}
	if input.CustomerPhone == "" {
		return nil, errorutil.NewValidationError("customer phone is required", nil)
	}
	customer, err := tx.Customers().GetByPhone(ctx, input.CustomerPhone)
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if input.CustomerName == "" {
		return nil, errorutil.NewValidationError("customer name is required for new customers", nil)
	}
	customer = &domain.Customer{
		Name:  input.CustomerName,
		Phone: input.CustomerPhone,
		Email: input.CustomerEmail,
	}
	if err := tx.Customers().Create(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *TaskService) resolveTechnician(ctx context.Context, tx repository.Store, technicianID string) (*domain.User, error) {
	user, err := tx.Users().GetByID(ctx, technicianID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorutil.NewNotFound("technician", map[string]any{"technician_id": technicianID})
		}
		return nil, err
	}
	if user.Role != domain.RoleTechnician || !user.Active {
		return nil, errorutil.NewValidationError("assignee must be an active technician",
			map[string]any{"technician_id": technicianID})
	}
	return user, nil
}

// nextTicketNumber mints the next ticket number. The prefix is a year letter
// (A for the first year the shop has tasks, B for the next, ...) plus the
// two-digit month; the suffix is a zero-padded per-prefix sequence.
func (s *TaskService) nextTicketNumber(ctx context.Context, tx repository.Store, now time.Time) (string, error) {
	baseYear, ok, err := tx.Tasks().EarliestIntakeYear(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		baseYear = now.Year()
	}
	offset := now.Year() - baseYear
	if offset < 0 || offset > 25 {
		offset = 0
	}
	prefix := fmt.Sprintf("%c%02d", rune('A'+offset), int(now.Month()))

	last, found, err := tx.Tasks().LastTicketNumberWithPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	sequence := 1
	if found {
		if idx := strings.LastIndex(last, "-"); idx >= 0 {
			if n, convErr := strconv.Atoi(last[idx+1:]); convErr == nil {
				sequence = n + 1
			}
		}
	}
	return fmt.Sprintf("%s-%03d", prefix, sequence), nil
}

func (s *TaskService) appendActivity(ctx context.Context, tx repository.Store, taskID string, userID *string, activityType domain.ActivityType, message string) error {
	return tx.Activities().Append(ctx, &domain.TaskActivity{
		TaskID:  taskID,
		UserID:  userID,
		Type:    activityType,
		Message: message,
	})
}

// saveTask persists and translates a version mismatch into a conflict.
func (s *TaskService) saveTask(ctx context.Context, tx repository.Store, task *domain.Task) error {
	if err := tx.Tasks().Update(ctx, task); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errorutil.NewStaleVersion(task.ID)
		}
		return err
	}
	return nil
}

func (s *TaskService) newEvent(eventType events.EventType, taskID string, actor domain.Actor, payload any) events.Event {
	return events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TaskID:    taskID,
		Actor:     events.Actor{UserID: actor.ID, Role: actor.Role},
		Timestamp: s.now(),
		Payload:   payload,
	}
}

func (s *TaskService) publish(ctx context.Context, published []events.Event) {
	for _, event := range published {
		_ = s.dispatcher.Publish(ctx, event)
	}
}

func deniedFields(role domain.Role, input UpdateTaskInput) []string {
	if role.Privileged() {
		return nil
	}
	allowed := editableFields[role]
	var denied []string
	check := func(name string, set bool) {
		if set && !allowed[name] {
			denied = append(denied, name)
		}
	}
	check("urgency", input.Urgency != nil)
	check("description", input.Description != nil)
	check("device_model", input.DeviceModel != nil)
	check("serial_number", input.SerialNumber != nil)
	check("brand_id", input.BrandID != nil)
	check("current_location", input.CurrentLocation != nil)
	check("estimated_cost", input.EstimatedCost != nil)
	check("payment_status", input.PaymentStatus != nil)
	return denied
}

func validStatus(status domain.TaskStatus) bool {
	switch status {
	case domain.TaskStatusPending, domain.TaskStatusInProgress, domain.TaskStatusAwaitingParts,
		domain.TaskStatusCompleted, domain.TaskStatusReadyForPickup, domain.TaskStatusPickedUp,
		domain.TaskStatusTerminated:
		return true
	}
	return false
}
