// Package sims manages SIM cards and their usage records.
package sims

import (
	"sort"
	"strings"
	"time"

	"github.com/odyssey-erp/simdesk/internal/shared"
)

// Status is the lifecycle state of a SIM card.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
	StatusLost      Status = "lost"
)

// Statuses lists every accepted status in display order.
func Statuses() []Status {
	return []Status{StatusActive, StatusInactive, StatusSuspended, StatusLost}
}

// Valid reports whether the status is one of the enumerated values.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended, StatusLost:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// RecentLimit is the number of SIMs shown on the dashboard.
const RecentLimit = 5

// SimCard is a tracked SIM.
type SimCard struct {
	ID          int64
	IMEI        string
	IMSI        string
	PhoneNumber *string
	Carrier     string
	IssueDate   time.Time
	ExpiryDate  *time.Time
	Status      Status
	OwnerName   *string
	OwnerID     *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UsageRecord is one usage sample for a SIM.
type UsageRecord struct {
	ID          int64     `json:"id"`
	SimID       int64     `json:"sim_id"`
	DataUsedMB  float64   `json:"data_used_mb"`
	CallMinutes float64   `json:"call_minutes"`
	SMSCount    int64     `json:"sms_count"`
	Date        time.Time `json:"date"`
}

// SimInput carries the fields accepted when creating a SIM.
type SimInput struct {
	IMEI        string `form:"imei" validate:"required,max=32"`
	IMSI        string `form:"imsi" validate:"required,max=32"`
	PhoneNumber string `form:"phone_number" validate:"omitempty,max=32"`
	Carrier     string `form:"carrier" validate:"required,max=100"`
	IssueDate   string `form:"issue_date" validate:"required,datetime=2006-01-02"`
	ExpiryDate  string `form:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
	Status      string `form:"status" validate:"omitempty,oneof=active inactive suspended lost"`
	OwnerName   string `form:"owner_name" validate:"omitempty,max=200"`
	OwnerID     string `form:"owner_id" validate:"omitempty,max=100"`
}

// SimUpdate carries the mutable fields of a SIM. IMEI and IMSI are absent on
// purpose: they cannot change after creation.
type SimUpdate struct {
	PhoneNumber string `form:"phone_number" validate:"omitempty,max=32"`
	Carrier     string `form:"carrier" validate:"required,max=100"`
	ExpiryDate  string `form:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
	Status      string `form:"status" validate:"required,oneof=active inactive suspended lost"`
	OwnerName   string `form:"owner_name" validate:"omitempty,max=200"`
	OwnerID     string `form:"owner_id" validate:"omitempty,max=100"`
}

// UsageInput carries one usage sample to append.
type UsageInput struct {
	DataUsedMB  float64 `form:"data_used_mb" validate:"finite,gte=0"`
	CallMinutes float64 `form:"call_minutes" validate:"finite,gte=0"`
	SMSCount    int64   `form:"sms_count" validate:"gte=0"`
	Date        string  `form:"date" validate:"required,datetime=2006-01-02"`
}

// DashboardStats aggregates the dashboard figures.
type DashboardStats struct {
	Total  int64
	Active int64
	Recent []SimCard
}

// ValidationError lists field level problems keyed by form field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "sims: invalid input (" + strings.Join(parts, "; ") + ")"
}

// Unwrap lets errors.Is match shared.ErrValidation.
func (e *ValidationError) Unwrap() error {
	return shared.ErrValidation
}

// FieldErrors exposes the messages to JSON problem responses.
func (e *ValidationError) FieldErrors() map[string]string {
	return e.Fields
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
