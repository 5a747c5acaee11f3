package sims

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/odyssey-erp/simdesk/internal/platform/db"
	"github.com/odyssey-erp/simdesk/internal/shared"
)

// Repository exposes persistence for SIM cards and usage records.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (SimCard, error)
	List(ctx context.Context, filter ListFilter) ([]SimCard, error)
	Count(ctx context.Context, status Status) (int64, error)
	UsageHistory(ctx context.Context, simID int64) ([]UsageRecord, error)
}

// TxRepository performs writes inside a transaction.
type TxRepository interface {
	Insert(ctx context.Context, sim *SimCard) error
	GetForUpdate(ctx context.Context, id int64) (SimCard, error)
	Update(ctx context.Context, sim SimCard) error
	InsertUsage(ctx context.Context, rec *UsageRecord) error
	Delete(ctx context.Context, id int64) error
}

// ListFilter narrows List results. An empty Search matches every row; a zero
// Limit returns all rows.
type ListFilter struct {
	Search string
	Limit  int
}

// searchColumns are matched case-insensitively against the search term.
var searchColumns = []string{"imei", "imsi", "phone_number", "owner_name", "carrier"}

// GormRepository implements Repository on the relational store.
type GormRepository struct {
	conn *gorm.DB
}

// NewRepository constructs a store-backed repository.
func NewRepository(conn *gorm.DB) *GormRepository {
	return &GormRepository{conn: conn}
}

type gormTx struct {
	tx     *gorm.DB
	locked bool
}

// WithTx runs fn inside a single transaction.
func (r *GormRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	locked := db.DialectName(r.conn) == db.DialectPostgres
	return db.WithTx(ctx, r.conn, func(tx *gorm.DB) error {
		return fn(ctx, &gormTx{tx: tx, locked: locked})
	})
}

// Get loads one SIM by id.
func (r *GormRepository) Get(ctx context.Context, id int64) (SimCard, error) {
	var row db.SimCard
	if err := r.conn.WithContext(ctx).Take(&row, "id = ?", id).Error; err != nil {
		if db.IsNotFound(err) {
			return SimCard{}, shared.ErrNotFound
		}
		return SimCard{}, fmt.Errorf("sims: get %d: %w", id, err)
	}
	return toDomain(row), nil
}

// List returns SIMs newest first, optionally filtered by a search term.
func (r *GormRepository) List(ctx context.Context, filter ListFilter) ([]SimCard, error) {
	q := r.conn.WithContext(ctx).Model(&db.SimCard{})
	if term := strings.TrimSpace(filter.Search); term != "" {
		exprs := make([]string, len(searchColumns))
		args := make([]any, len(searchColumns))
		pattern := db.ContainsPattern(term)
		dialect := db.DialectName(r.conn)
		for i, col := range searchColumns {
			exprs[i] = db.ContainsExpr(dialect, col)
			args[i] = pattern
		}
		q = q.Where("("+strings.Join(exprs, " OR ")+")", args...)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var rows []db.SimCard
	if err := q.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sims: list: %w", err)
	}
	out := make([]SimCard, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomain(row))
	}
	return out, nil
}

// Count returns the number of SIMs, restricted to status when it is set.
func (r *GormRepository) Count(ctx context.Context, status Status) (int64, error) {
	q := r.conn.WithContext(ctx).Model(&db.SimCard{})
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("sims: count: %w", err)
	}
	return n, nil
}

// UsageHistory returns the SIM's usage records, most recent date first.
func (r *GormRepository) UsageHistory(ctx context.Context, simID int64) ([]UsageRecord, error) {
	var rows []db.UsageRecord
	err := r.conn.WithContext(ctx).
		Where("sim_id = ?", simID).
		Order("date DESC").Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sims: usage history: %w", err)
	}
	out := make([]UsageRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainUsage(row))
	}
	return out, nil
}

func (t *gormTx) Insert(ctx context.Context, sim *SimCard) error {
	row := toRow(*sim)
	if err := t.tx.WithContext(ctx).Create(&row).Error; err != nil {
		if db.IsDuplicateKey(err) {
			return shared.ErrDuplicateKey
		}
		return fmt.Errorf("sims: insert: %w", err)
	}
	sim.ID = row.ID
	return nil
}

func (t *gormTx) GetForUpdate(ctx context.Context, id int64) (SimCard, error) {
	q := t.tx.WithContext(ctx)
	if t.locked {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row db.SimCard
	if err := q.Take(&row, "id = ?", id).Error; err != nil {
		if db.IsNotFound(err) {
			return SimCard{}, shared.ErrNotFound
		}
		return SimCard{}, fmt.Errorf("sims: lock %d: %w", id, err)
	}
	return toDomain(row), nil
}

// Update writes the mutable columns only; imei and imsi are never part of
// the statement.
func (t *gormTx) Update(ctx context.Context, sim SimCard) error {
	res := t.tx.WithContext(ctx).Model(&db.SimCard{}).Where("id = ?", sim.ID).Updates(map[string]any{
		"phone_number": sim.PhoneNumber,
		"carrier":      sim.Carrier,
		"expiry_date":  sim.ExpiryDate,
		"status":       string(sim.Status),
		"owner_name":   sim.OwnerName,
		"owner_id":     sim.OwnerID,
		"updated_at":   sim.UpdatedAt,
	})
	if res.Error != nil {
		if db.IsDuplicateKey(res.Error) {
			return shared.ErrDuplicateKey
		}
		return fmt.Errorf("sims: update %d: %w", sim.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *gormTx) InsertUsage(ctx context.Context, rec *UsageRecord) error {
	row := db.UsageRecord{
		SimID:       rec.SimID,
		DataUsedMB:  rec.DataUsedMB,
		CallMinutes: rec.CallMinutes,
		SMSCount:    rec.SMSCount,
		Date:        rec.Date,
	}
	if err := t.tx.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("sims: insert usage: %w", err)
	}
	rec.ID = row.ID
	return nil
}

func (t *gormTx) Delete(ctx context.Context, id int64) error {
	res := t.tx.WithContext(ctx).Delete(&db.SimCard{}, id)
	if res.Error != nil {
		return fmt.Errorf("sims: delete %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func toRow(sim SimCard) db.SimCard {
	return db.SimCard{
		ID:          sim.ID,
		IMEI:        sim.IMEI,
		IMSI:        sim.IMSI,
		PhoneNumber: sim.PhoneNumber,
		Carrier:     sim.Carrier,
		IssueDate:   sim.IssueDate,
		ExpiryDate:  sim.ExpiryDate,
		Status:      string(sim.Status),
		OwnerName:   sim.OwnerName,
		OwnerID:     sim.OwnerID,
		CreatedAt:   sim.CreatedAt,
		UpdatedAt:   sim.UpdatedAt,
	}
}

func toDomain(row db.SimCard) SimCard {
	return SimCard{
		ID:          row.ID,
		IMEI:        row.IMEI,
		IMSI:        row.IMSI,
		PhoneNumber: row.PhoneNumber,
		Carrier:     row.Carrier,
		IssueDate:   row.IssueDate,
		ExpiryDate:  row.ExpiryDate,
		Status:      Status(row.Status),
		OwnerName:   row.OwnerName,
		OwnerID:     row.OwnerID,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func toDomainUsage(row db.UsageRecord) UsageRecord {
	return UsageRecord{
		ID:          row.ID,
		SimID:       row.SimID,
		DataUsedMB:  row.DataUsedMB,
		CallMinutes: row.CallMinutes,
		SMSCount:    row.SMSCount,
		Date:        row.Date,
	}
}

var _ Repository = (*GormRepository)(nil)

