package domain

import "time"

// Customer owns one or more repair tasks, keyed by phone at intake.
type Customer struct {
	ID        string
	Name      string
	Phone     string
	Email     string
	CreatedAt time.Time
}

// Location is a named place a device can sit, front desk or workshop.
type Location struct {
	ID         string
	Name       string
	IsWorkshop bool
}

// Brand is a device manufacturer.
type Brand struct {
	ID   string
	Name string
}
