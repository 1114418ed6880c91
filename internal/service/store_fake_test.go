package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/repairshop-service/internal/domain"
	"github.com/spec-kit/repairshop-service/internal/repository"
)

// fakeStore is an in-memory repository.Store used by the service tests.
type fakeStore struct {
	seq         int
	activitySeq int64
	clock       func() time.Time

	tasks       map[string]*domain.Task
	activities  []*domain.TaskActivity
	payments    map[string]*domain.Payment
	adjustments map[string]*domain.CostAdjustment
	users       map[string]*domain.User
	customers   map[string]*domain.Customer
	locations   map[string]*domain.Location
	methods     map[string]*domain.PaymentMethod
	categories  map[string]*domain.PaymentCategory
}

func newFakeStore(clock func() time.Time) *fakeStore {
	if clock == nil {
		clock = time.Now
	}
	return &fakeStore{
		clock:       clock,
		tasks:       map[string]*domain.Task{},
		payments:    map[string]*domain.Payment{},
		adjustments: map[string]*domain.CostAdjustment{},
		users:       map[string]*domain.User{},
		customers:   map[string]*domain.Customer{},
		locations:   map[string]*domain.Location{},
		methods:     map[string]*domain.PaymentMethod{},
		categories:  map[string]*domain.PaymentCategory{},
	}
}

func (f *fakeStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeStore) Tasks() repository.TaskRepository                { return (*fakeTasks)(f) }
func (f *fakeStore) Activities() repository.ActivityRepository      { return (*fakeActivities)(f) }
func (f *fakeStore) Payments() repository.PaymentRepository         { return (*fakePayments)(f) }
func (f *fakeStore) Adjustments() repository.CostAdjustmentRepository {
	return (*fakeAdjustments)(f)
}
func (f *fakeStore) Users() repository.UserRepository           { return (*fakeUsers)(f) }
func (f *fakeStore) Customers() repository.CustomerRepository   { return (*fakeCustomers)(f) }
func (f *fakeStore) Locations() repository.LocationRepository   { return (*fakeLocations)(f) }
func (f *fakeStore) Methods() repository.PaymentMethodRepository {
	return (*fakeMethods)(f)
}
func (f *fakeStore) Categories() repository.PaymentCategoryRepository {
	return (*fakeCategories)(f)
}

func (f *fakeStore) WithinTx(_ context.Context, fn func(repository.Store) error) error {
	return fn(f)
}

// Seed helpers.

func (f *fakeStore) addUser(role domain.Role, firstName string, workshop bool) *domain.User {
	user := &domain.User{
		ID:        f.nextID("user"),
		Username:  strings.ToLower(firstName),
		FirstName: firstName,
		Role:      role,
		IsWorkshop: workshop,
		Active:    true,
	}
	f.users[user.ID] = user
	return user
}

func (f *fakeStore) addCustomer(name, phone string) *domain.Customer {
	customer := &domain.Customer{ID: f.nextID("cust"), Name: name, Phone: phone}
	f.customers[customer.ID] = customer
	return customer
}

func (f *fakeStore) addLocation(name string, workshop bool) *domain.Location {
	location := &domain.Location{ID: f.nextID("loc"), Name: name, IsWorkshop: workshop}
	f.locations[location.ID] = location
	return location
}

func (f *fakeStore) addMethod(name string) *domain.PaymentMethod {
	method := &domain.PaymentMethod{ID: f.nextID("method"), Name: name, UserSelectable: true}
	f.methods[method.ID] = method
	return method
}

func (f *fakeStore) addActivity(taskID string, activityType domain.ActivityType, ts time.Time) {
	f.activitySeq++
	f.activities = append(f.activities, &domain.TaskActivity{
		ID:        f.activitySeq,
		TaskID:    taskID,
		Type:      activityType,
		Message:   string(activityType),
		Timestamp: ts,
	})
}

// fakeTasks

type fakeTasks fakeStore

func (f *fakeTasks) Create(_ context.Context, task *domain.Task) error {
	task.ID = (*fakeStore)(f).nextID("task")
	task.Version = 1
	task.CreatedAt = f.clock()
	task.UpdatedAt = task.CreatedAt
	clone := *task
	f.tasks[task.ID] = &clone
	return nil
}

func (f *fakeTasks) Update(_ context.Context, task *domain.Task) error {
	stored, ok := f.tasks[task.ID]
	if !ok || stored.Version != task.Version {
		return pgx.ErrNoRows
	}
	task.Version++
	task.UpdatedAt = f.clock()
	clone := *task
	f.tasks[task.ID] = &clone
	return nil
}

func (f *fakeTasks) GetByID(_ context.Context, id string) (*domain.Task, error) {
	stored, ok := f.tasks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (f *fakeTasks) GetByTicketNumber(_ context.Context, ticketNumber string) (*domain.Task, error) {
	for _, task := range f.tasks {
		if task.TicketNumber == ticketNumber {
			clone := *task
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTasks) Delete(_ context.Context, id string) error {
	if _, ok := f.tasks[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeTasks) matches(task *domain.Task, filter repository.TaskFilter) bool {
	if len(filter.Statuses) > 0 {
		found := false
		for _, status := range filter.Statuses {
			if task.Status == status {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	for _, status := range filter.ExcludeStatuses {
		if task.Status == status {
			return false
		}
	}
	if filter.NotPaymentStatus != nil && task.PaymentStatus == *filter.NotPaymentStatus {
		return false
	}
	if filter.AssignedTo != nil {
		if task.AssignedTo == nil || *task.AssignedTo != *filter.AssignedTo {
			return false
		}
	}
	if filter.CustomerID != nil && task.CustomerID != *filter.CustomerID {
		return false
	}
	if filter.HasTechnician != nil && (task.AssignedTo != nil) != *filter.HasTechnician {
		return false
	}
	return true
}

func (f *fakeTasks) List(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	var result []domain.Task
	for _, task := range f.tasks {
		if f.matches(task, filter) {
			result = append(result, *task)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (f *fakeTasks) Count(_ context.Context, filter repository.TaskFilter) (int, error) {
	count := 0
	for _, task := range f.tasks {
		if f.matches(task, filter) {
			count++
		}
	}
	return count, nil
}

func (f *fakeTasks) EarliestIntakeYear(_ context.Context) (int, bool, error) {
	year := 0
	for _, task := range f.tasks {
		if year == 0 || task.CreatedAt.Year() < year {
			year = task.CreatedAt.Year()
		}
	}
	return year, year != 0, nil
}

func (f *fakeTasks) LastTicketNumberWithPrefix(_ context.Context, prefix string) (string, bool, error) {
	last := ""
	for _, task := range f.tasks {
		if strings.HasPrefix(task.TicketNumber, prefix+"-") && task.TicketNumber > last {
			last = task.TicketNumber
		}
	}
	return last, last != "", nil
}

// fakeActivities

type fakeActivities fakeStore

func (f *fakeActivities) Append(_ context.Context, activity *domain.TaskActivity) error {
	f.activitySeq++
	activity.ID = f.activitySeq
	if activity.Timestamp.IsZero() {
		activity.Timestamp = f.clock()
	}
	clone := *activity
	f.activities = append(f.activities, &clone)
	return nil
}

func (f *fakeActivities) ListByTask(_ context.Context, taskID string) ([]domain.TaskActivity, error) {
	var result []domain.TaskActivity
	for _, activity := range f.activities {
		if activity.TaskID == taskID {
			result = append(result, *activity)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].ID < result[j].ID
		}
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

func (f *fakeActivities) TaskIDsWithActivity(_ context.Context, activityType domain.ActivityType, from, to time.Time) ([]string, error) {
	seen := map[string]bool{}
	var ids []string
	for _, activity := range f.activities {
		if activity.Type != activityType {
			continue
		}
		if activity.Timestamp.Before(from) || activity.Timestamp.After(to) {
			continue
		}
		if !seen[activity.TaskID] {
			seen[activity.TaskID] = true
			ids = append(ids, activity.TaskID)
		}
	}
	return ids, nil
}

func (f *fakeActivities) ListByTypesInWindow(_ context.Context, types []domain.ActivityType, from, to time.Time) ([]domain.TaskActivity, error) {
	typeSet := map[domain.ActivityType]bool{}
	for _, t := range types {
		typeSet[t] = true
	}
	var result []domain.TaskActivity
	for _, activity := range f.activities {
		if !typeSet[activity.Type] {
			continue
		}
		if activity.Timestamp.Before(from) || activity.Timestamp.After(to) {
			continue
		}
		result = append(result, *activity)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].ID < result[j].ID
		}
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

// fakePayments

type fakePayments fakeStore

func (f *fakePayments) Create(_ context.Context, payment *domain.Payment) error {
	payment.ID = (*fakeStore)(f).nextID("pay")
	payment.CreatedAt = f.clock()
	clone := *payment
	f.payments[payment.ID] = &clone
	return nil
}

func (f *fakePayments) Delete(_ context.Context, id string) error {
	if _, ok := f.payments[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.payments, id)
	return nil
}

func (f *fakePayments) GetByID(_ context.Context, id string) (*domain.Payment, error) {
	payment, ok := f.payments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *payment
	return &clone, nil
}

func (f *fakePayments) ListByTask(_ context.Context, taskID string) ([]domain.Payment, error) {
	var result []domain.Payment
	for _, payment := range f.payments {
		if payment.TaskID != nil && *payment.TaskID == taskID {
			result = append(result, *payment)
		}
	}
	return result, nil
}

func (f *fakePayments) ListInWindow(_ context.Context, from, to time.Time) ([]domain.Payment, error) {
	var result []domain.Payment
	for _, payment := range f.payments {
		if payment.Date.Before(from) || payment.Date.After(to) {
			continue
		}
		result = append(result, *payment)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

// fakeAdjustments

type fakeAdjustments fakeStore

func (f *fakeAdjustments) Create(_ context.Context, adjustment *domain.CostAdjustment) error {
	adjustment.ID = (*fakeStore)(f).nextID("adj")
	adjustment.CreatedAt = f.clock()
	clone := *adjustment
	f.adjustments[adjustment.ID] = &clone
	return nil
}

func (f *fakeAdjustments) Delete(_ context.Context, id string) error {
	if _, ok := f.adjustments[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.adjustments, id)
	return nil
}

func (f *fakeAdjustments) GetByID(_ context.Context, id string) (*domain.CostAdjustment, error) {
	adjustment, ok := f.adjustments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *adjustment
	return &clone, nil
}

func (f *fakeAdjustments) ListByTask(_ context.Context, taskID string) ([]domain.CostAdjustment, error) {
	var result []domain.CostAdjustment
	for _, adjustment := range f.adjustments {
		if adjustment.TaskID == taskID {
			result = append(result, *adjustment)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeAdjustments) UpdateStatus(_ context.Context, id string, status domain.ApprovalStatus, approverID string) error {
	adjustment, ok := f.adjustments[id]
	if !ok {
		return pgx.ErrNoRows
	}
	adjustment.Status = status
	adjustment.ApproverID = &approverID
	return nil
}

// fakeUsers

type fakeUsers fakeStore

func (f *fakeUsers) Create(_ context.Context, user *domain.User) error {
	user.ID = (*fakeStore)(f).nextID("user")
	user.CreatedAt = f.clock()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, user := range f.users {
		if user.Username == username {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUsers) ListActiveByRole(_ context.Context, role domain.Role) ([]domain.User, error) {
	var result []domain.User
	for _, user := range f.users {
		if user.Role == role && user.Active {
			result = append(result, *user)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// fakeCustomers

type fakeCustomers fakeStore

func (f *fakeCustomers) Create(_ context.Context, customer *domain.Customer) error {
	customer.ID = (*fakeStore)(f).nextID("cust")
	customer.CreatedAt = f.clock()
	clone := *customer
	f.customers[customer.ID] = &clone
	return nil
}

func (f *fakeCustomers) GetByID(_ context.Context, id string) (*domain.Customer, error) {
	customer, ok := f.customers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *customer
	return &clone, nil
}

func (f *fakeCustomers) GetByPhone(_ context.Context, phone string) (*domain.Customer, error) {
	for _, customer := range f.customers {
		if customer.Phone == phone {
			clone := *customer
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// fakeLocations

type fakeLocations fakeStore

func (f *fakeLocations) GetByID(_ context.Context, id string) (*domain.Location, error) {
	location, ok := f.locations[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *location
	return &clone, nil
}

func (f *fakeLocations) List(_ context.Context) ([]domain.Location, error) {
	var result []domain.Location
	for _, location := range f.locations {
		result = append(result, *location)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// fakeMethods

type fakeMethods fakeStore

func (f *fakeMethods) GetByID(_ context.Context, id string) (*domain.PaymentMethod, error) {
	method, ok := f.methods[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *method
	return &clone, nil
}

// fakeCategories

type fakeCategories fakeStore

func (f *fakeCategories) GetByID(_ context.Context, id string) (*domain.PaymentCategory, error) {
	category, ok := f.categories[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *category
	return &clone, nil
}

func (f *fakeCategories) GetOrCreateByName(_ context.Context, name string) (*domain.PaymentCategory, error) {
	for _, category := range f.categories {
		if category.Name == name {
			clone := *category
			return &clone, nil
		}
	}
	category := &domain.PaymentCategory{ID: (*fakeStore)(f).nextID("cat"), Name: name}
	f.categories[category.ID] = category
	clone := *category
	return &clone, nil
}
