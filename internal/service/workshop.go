package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/repairshop-service/internal/domain"
	"github.com/spec-kit/repairshop-service/internal/events"
	"github.com/spec-kit/repairshop-service/internal/repository"
	"github.com/spec-kit/repairshop-service/pkg/util/errorutil"
)

// WorkshopSendInput names the workshop and the receiving technician.
type WorkshopSendInput struct {
	LocationID   string
	TechnicianID string
}

// SendToWorkshop hands a task off to an external workshop. The current
// location and technician are snapshotted so the return can restore them.
func (s *TaskService) SendToWorkshop(ctx context.Context, actor domain.Actor, taskID string, input WorkshopSendInput) (*domain.Task, error) {
	if actor.Role != domain.RoleTechnician && !actor.Role.Privileged() {
		return nil, errorutil.NewForbidden("only technicians can send tasks to a workshop")
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
		if task.InWorkshop() {
			return errorutil.NewInvalidWorkshopState("task is already in a workshop")
		}
		if task.Status.IsTerminal() {
			return errorutil.NewInvalidWorkshopState(
				fmt.Sprintf("a task in status '%s' cannot be sent to a workshop", task.Status))
		}

		location, err := tx.Locations().GetByID(ctx, input.LocationID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errorutil.NewNotFound("location", map[string]any{"location_id": input.LocationID})
			}
			return err
		}
		if !location.IsWorkshop {
			return errorutil.NewValidationError("destination is not a workshop",
				map[string]any{"location_id": location.ID})
		}

		recipient, err := tx.Users().GetByID(ctx, input.TechnicianID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errorutil.NewNotFound("technician", map[string]any{"technician_id": input.TechnicianID})
			}
			return err
		}
		if !recipient.IsWorkshop || !recipient.Active {
			return errorutil.NewValidationError("recipient must be an active workshop technician",
				map[string]any{"technician_id": recipient.ID})
		}

		now := s.now()
		originalLocation := task.CurrentLocation
		inWorkshop := domain.WorkshopStatusInWorkshop

		task.OriginalTechnicianID = task.AssignedTo
		if task.OriginalTechnicianID == nil {
			task.OriginalTechnicianID = &actor.ID
		}
		task.OriginalLocation = &originalLocation
		task.WorkshopStatus = &inWorkshop
		task.WorkshopLocationID = &location.ID
		task.WorkshopTechnicianID = &recipient.ID
		task.WorkshopSentAt = &now
		task.WorkshopReturnedAt = nil
		task.AssignedTo = &recipient.ID
		task.CurrentLocation = location.Name

		if err := s.appendActivity(ctx, tx, task.ID, &actor.ID, domain.ActivityWorkshop,
			fmt.Sprintf("Task sent to workshop %s, received by %s.", location.Name, recipient.FullName())); err != nil {
			return err
		}
		if err := s.saveTask(ctx, tx, task); err != nil {
			return err
		}

		published = append(published, s.newEvent(events.EventTaskSentToWorkshop, task.ID, actor, events.WorkshopPayload{
			LocationID:   &location.ID,
			TechnicianID: &recipient.ID,
		}))
		return nil
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

// ReturnFromWorkshop closes the workshop detour with an outcome and restores
// the snapshotted technician and location.
func (s *TaskService) ReturnFromWorkshop(ctx context.Context, actor domain.Actor, taskID string, outcome domain.WorkshopStatus) (*domain.Task, error) {
	if outcome != domain.WorkshopStatusSolved && outcome != domain.WorkshopStatusNotSolved {
		return nil, errorutil.NewValidationError(
			fmt.Sprintf("workshop outcome must be '%s' or '%s'", domain.WorkshopStatusSolved, domain.WorkshopStatusNotSolved), nil)
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
		if !task.InWorkshop() {
			return errorutil.NewInvalidWorkshopState("task is not in a workshop")
		}

		now := s.now()
		locationID := task.WorkshopLocationID
		technicianID := task.WorkshopTechnicianID

		task.WorkshopStatus = &outcome
		task.WorkshopReturnedAt = &now
		task.AssignedTo = task.OriginalTechnicianID
		if task.OriginalLocation != nil {
			task.CurrentLocation = *task.OriginalLocation
		}
		// The workshop references only carry meaning during the detour.
		task.WorkshopLocationID = nil
		task.WorkshopTechnicianID = nil
		task.OriginalTechnicianID = nil
		task.OriginalLocation = nil

		if err := s.appendActivity(ctx, tx, task.ID, &actor.ID, domain.ActivityWorkshop,
			fmt.Sprintf("Task returned from workshop: %s.", outcome)); err != nil {
			return err
		}
		if err := s.saveTask(ctx, tx, task); err != nil {
			return err
		}

		published = append(published, s.newEvent(events.EventTaskReturnedFromWorkshop, task.ID, actor, events.WorkshopPayload{
			LocationID:   locationID,
			TechnicianID: technicianID,
			Outcome:      &outcome,
		}))
		return nil
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
