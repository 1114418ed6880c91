// Package workflow holds the role-gated status transition policy for repair
// tasks. The table is built once at startup and passed into the task service;
// it is never mutated afterwards.
package workflow

import "github.com/spec-kit/repairshop-service/internal/domain"

// TransitionTable maps role -> current status -> permitted next statuses.
type TransitionTable map[domain.Role]map[domain.TaskStatus][]domain.TaskStatus

// DefaultTransitionTable returns the shop's standard policy. Manager and
// Admin roles are not listed because they bypass the table.
func DefaultTransitionTable() TransitionTable {
	return TransitionTable{
		domain.RoleFrontDesk: {
			domain.TaskStatusCompleted:      {domain.TaskStatusReadyForPickup, domain.TaskStatusInProgress, domain.TaskStatusPending},
			domain.TaskStatusReadyForPickup: {domain.TaskStatusPickedUp, domain.TaskStatusPending, domain.TaskStatusInProgress},
			domain.TaskStatusPickedUp:       {domain.TaskStatusInProgress},
			domain.TaskStatusPending:        {domain.TaskStatusTerminated},
			domain.TaskStatusInProgress:     {domain.TaskStatusTerminated, domain.TaskStatusPending},
		},
		domain.RoleTechnician: {
			domain.TaskStatusPending:       {domain.TaskStatusInProgress},
			domain.TaskStatusInProgress:    {domain.TaskStatusAwaitingParts, domain.TaskStatusCompleted},
			domain.TaskStatusAwaitingParts: {domain.TaskStatusInProgress},
		},
	}
}

// Allows reports whether the role may move a task from current to next.
// Privileged roles may always transition.
func (t TransitionTable) Allows(role domain.Role, current, next domain.TaskStatus) bool {
	if role.Privileged() {
		return true
	}
	byStatus, ok := t[role]
	if !ok {
		return false
	}
	for _, candidate := range byStatus[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// AllowedNext lists the statuses the role may reach from current.
func (t TransitionTable) AllowedNext(role domain.Role, current domain.TaskStatus) []domain.TaskStatus {
	if role.Privileged() {
		return []domain.TaskStatus{
			domain.TaskStatusPending,
			domain.TaskStatusInProgress,
			domain.TaskStatusAwaitingParts,
			domain.TaskStatusCompleted,
			domain.TaskStatusReadyForPickup,
			domain.TaskStatusPickedUp,
			domain.TaskStatusTerminated,
		}
	}
	byStatus, ok := t[role]
	if !ok {
		return nil
	}
	return append([]domain.TaskStatus(nil), byStatus[current]...)
}
