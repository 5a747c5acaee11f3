package sims

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/simdesk/internal/rbac"
	"github.com/odyssey-erp/simdesk/internal/shared"
)

// Service implements the SIM record operations. Every operation receives the
// acting principal and checks its role before touching the store.
type Service struct {
	repo     Repository
	validate *validator.Validate
	now      func() time.Time
	logger   *slog.Logger
	recorder WriteRecorder
}

// WriteRecorder observes successful writes by operation name.
type WriteRecorder interface {
	SimWrite(op string)
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger used for audit lines.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithRecorder reports successful writes to r.
func WithRecorder(r WriteRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// NewService constructs the SIM service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, validate: newValidator(), now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsInf(f, 0) && !math.IsNaN(f)
	})
	return v
}

// Create registers a new SIM.
func (s *Service) Create(ctx context.Context, actor rbac.Principal, input SimInput) (SimCard, error) {
	if err := authorize(actor, rbac.RoleOperator, "create"); err != nil {
		return SimCard{}, err
	}
	input = normaliseInput(input)
	if err := s.check(input); err != nil {
		return SimCard{}, err
	}
	issue, _ := time.Parse(DateLayout, input.IssueDate)
	status := StatusActive
	if input.Status != "" {
		status = Status(input.Status)
	}
	now := s.stamp()
	sim := SimCard{
		IMEI:        input.IMEI,
		IMSI:        input.IMSI,
		PhoneNumber: optional(input.PhoneNumber),
		Carrier:     input.Carrier,
		IssueDate:   issue,
		ExpiryDate:  parseOptionalDate(input.ExpiryDate),
		Status:      status,
		OwnerName:   optional(input.OwnerName),
		OwnerID:     optional(input.OwnerID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Insert(ctx, &sim)
	})
	if err != nil {
		return SimCard{}, err
	}
	s.logger.Info("sim created", slog.Int64("sim_id", sim.ID), slog.String("actor", actor.Username))
	s.recordWrite("create")
	return sim, nil
}

// Get returns one SIM.
func (s *Service) Get(ctx context.Context, actor rbac.Principal, id int64) (SimCard, error) {
	if err := authorize(actor, rbac.RoleViewer, "view"); err != nil {
		return SimCard{}, err
	}
	return s.repo.Get(ctx, id)
}

// Update changes the mutable fields of a SIM and refreshes updated_at.
func (s *Service) Update(ctx context.Context, actor rbac.Principal, id int64, input SimUpdate) (SimCard, error) {
	if err := authorize(actor, rbac.RoleOperator, "update"); err != nil {
		return SimCard{}, err
	}
	input = normaliseUpdate(input)
	if err := s.check(input); err != nil {
		return SimCard{}, err
	}
	var updated SimCard
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		current.PhoneNumber = optional(input.PhoneNumber)
		current.Carrier = input.Carrier
		current.ExpiryDate = parseOptionalDate(input.ExpiryDate)
		current.Status = Status(input.Status)
		current.OwnerName = optional(input.OwnerName)
		current.OwnerID = optional(input.OwnerID)
		current.UpdatedAt = nextUpdatedAt(current.UpdatedAt, s.stamp())
		if err := tx.Update(ctx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return SimCard{}, err
	}
	s.logger.Info("sim updated", slog.Int64("sim_id", id), slog.String("status", string(updated.Status)), slog.String("actor", actor.Username))
	s.recordWrite("update")
	return updated, nil
}

// List returns SIMs newest first, filtered by a case-insensitive search term.
func (s *Service) List(ctx context.Context, actor rbac.Principal, search string) ([]SimCard, error) {
	if err := authorize(actor, rbac.RoleViewer, "list"); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, ListFilter{Search: strings.TrimSpace(search)})
}

// UsageHistory returns usage records for a SIM, most recent date first.
func (s *Service) UsageHistory(ctx context.Context, actor rbac.Principal, simID int64) ([]UsageRecord, error) {
	if err := authorize(actor, rbac.RoleViewer, "view usage"); err != nil {
		return nil, err
	}
	records, err := s.repo.UsageHistory(ctx, simID)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []UsageRecord{}
	}
	return records, nil
}

// DashboardStats returns the totals and the most recently created SIMs.
func (s *Service) DashboardStats(ctx context.Context, actor rbac.Principal) (DashboardStats, error) {
	if err := authorize(actor, rbac.RoleViewer, "view dashboard"); err != nil {
		return DashboardStats{}, err
	}
	total, err := s.repo.Count(ctx, "")
	if err != nil {
		return DashboardStats{}, err
	}
	active, err := s.repo.Count(ctx, StatusActive)
	if err != nil {
		return DashboardStats{}, err
	}
	recent, err := s.repo.List(ctx, ListFilter{Limit: RecentLimit})
	if err != nil {
		return DashboardStats{}, err
	}
	return DashboardStats{Total: total, Active: active, Recent: recent}, nil
}

// RecordUsage appends a usage sample to an existing SIM.
func (s *Service) RecordUsage(ctx context.Context, actor rbac.Principal, simID int64, input UsageInput) (UsageRecord, error) {
	if err := authorize(actor, rbac.RoleOperator, "record usage"); err != nil {
		return UsageRecord{}, err
	}
	input.Date = strings.TrimSpace(input.Date)
	if err := s.check(input); err != nil {
		return UsageRecord{}, err
	}
	date, _ := time.Parse(DateLayout, input.Date)
	rec := UsageRecord{
		SimID:       simID,
		DataUsedMB:  input.DataUsedMB,
		CallMinutes: input.CallMinutes,
		SMSCount:    input.SMSCount,
		Date:        date,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetForUpdate(ctx, simID); err != nil {
			return err
		}
		return tx.InsertUsage(ctx, &rec)
	})
	if err != nil {
		return UsageRecord{}, err
	}
	s.logger.Info("usage recorded", slog.Int64("sim_id", simID), slog.String("actor", actor.Username))
	s.recordWrite("usage")
	return rec, nil
}

// Delete removes a SIM together with its usage records.
func (s *Service) Delete(ctx context.Context, actor rbac.Principal, id int64) error {
	if err := authorize(actor, rbac.RoleAdmin, "delete"); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("sim deleted", slog.Int64("sim_id", id), slog.String("actor", actor.Username))
	s.recordWrite("delete")
	return nil
}

func (s *Service) recordWrite(op string) {
	if s.recorder != nil {
		s.recorder.SimWrite(op)
	}
}

func authorize(actor rbac.Principal, required rbac.Role, action string) error {
	if rbac.Authorize(actor, required) == rbac.Denied {
		return fmt.Errorf("sims: %s requires %s: %w", action, required, shared.ErrDenied)
	}
	return nil
}

// stamp returns the current time at the precision every supported store keeps.
func (s *Service) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// nextUpdatedAt keeps updated_at strictly increasing even when the clock
// has not advanced since the previous write.
func nextUpdatedAt(previous, now time.Time) time.Time {
	if now.After(previous) {
		return now
	}
	return previous.Add(time.Microsecond)
}

func (s *Service) check(input any) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("sims: validate: %w", err)
	}
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return &ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "max":
		return "Must be at most " + fe.Param() + " characters"
	case "datetime":
		return "Use the YYYY-MM-DD format"
	case "oneof":
		return "Must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gte":
		return "Must not be negative"
	case "finite":
		return "Must be a finite number"
	default:
		return "Invalid value"
	}
}

func normaliseInput(in SimInput) SimInput {
	in.IMEI = strings.TrimSpace(in.IMEI)
	in.IMSI = strings.TrimSpace(in.IMSI)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.Carrier = strings.TrimSpace(in.Carrier)
	in.IssueDate = strings.TrimSpace(in.IssueDate)
	in.ExpiryDate = strings.TrimSpace(in.ExpiryDate)
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	in.OwnerName = strings.TrimSpace(in.OwnerName)
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	return in
}

func normaliseUpdate(in SimUpdate) SimUpdate {
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.Carrier = strings.TrimSpace(in.Carrier)
	in.ExpiryDate = strings.TrimSpace(in.ExpiryDate)
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	in.OwnerName = strings.TrimSpace(in.OwnerName)
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	return in
}

func parseOptionalDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return nil
	}
	return &t
}
