package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:platform_db_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := Open(context.Background(), dsn, nil)
	require.NoError(t, err)
	require.NoError(t, Migrate(context.Background(), conn))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func TestDetectDialect(t *testing.T) {
	assert.Equal(t, DialectPostgres, DetectDialect("postgres://u:p@localhost:5432/simdesk"))
	assert.Equal(t, DialectPostgres, DetectDialect("host=localhost dbname=simdesk sslmode=disable"))
	assert.Equal(t, DialectSQLite, DetectDialect("file:data/simdesk.db"))
	assert.Equal(t, DialectSQLite, DetectDialect("simdesk.db"))
}

func TestEnsureSQLiteParams(t *testing.T) {
	assert.Equal(t, "a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", EnsureSQLiteParams("a.db"))
	assert.Equal(t, "file:x?mode=memory&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", EnsureSQLiteParams("file:x?mode=memory"))
	kept := "a.db?_pragma=foreign_keys(0)&_pragma=busy_timeout(10)"
	assert.Equal(t, kept, EnsureSQLiteParams(kept))
}

func TestSQLitePathFromDSN(t *testing.T) {
	assert.Equal(t, "data/simdesk.db", sqlitePathFromDSN("file:data/simdesk.db?_pragma=foreign_keys(1)"))
	assert.Equal(t, "", sqlitePathFromDSN("file:x?mode=memory&cache=shared"))
	assert.Equal(t, "", sqlitePathFromDSN(":memory:"))
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn := openTestDB(t)
	require.NoError(t, Migrate(context.Background(), conn))
	for _, table := range []string{"users", "sim_cards", "usage_records"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}

func TestUniqueIndexesAndCascade(t *testing.T) {
	conn := openTestDB(t)
	now := time.Now().UTC()

	sim := SimCard{IMEI: "1", IMSI: "2", Carrier: "Acme", IssueDate: now, Status: "active", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, conn.Create(&sim).Error)

	dup := SimCard{IMEI: "1", IMSI: "3", Carrier: "Acme", IssueDate: now, Status: "active", CreatedAt: now, UpdatedAt: now}
	err := conn.Create(&dup).Error
	require.Error(t, err)
	assert.True(t, IsDuplicateKey(err))

	noPhoneA := SimCard{IMEI: "10", IMSI: "20", Carrier: "Acme", IssueDate: now, Status: "active", CreatedAt: now, UpdatedAt: now}
	noPhoneB := SimCard{IMEI: "11", IMSI: "21", Carrier: "Acme", IssueDate: now, Status: "active", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, conn.Create(&noPhoneA).Error)
	require.NoError(t, conn.Create(&noPhoneB).Error)

	require.NoError(t, conn.Create(&UsageRecord{SimID: sim.ID, DataUsedMB: 1.5, Date: now}).Error)
	require.NoError(t, conn.Create(&UsageRecord{SimID: sim.ID, SMSCount: 3, Date: now}).Error)

	require.NoError(t, conn.Delete(&SimCard{}, sim.ID).Error)
	var orphans int64
	require.NoError(t, conn.Model(&UsageRecord{}).Where("sim_id = ?", sim.ID).Count(&orphans).Error)
	assert.Zero(t, orphans)
}

func TestContainsPatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, `%acme%`, ContainsPattern("ACME"))
	assert.Equal(t, `%50\%\_off%`, ContainsPattern("50%_off"))
}

func TestContainsExprPerDialect(t *testing.T) {
	assert.Equal(t, `unicode_lower(carrier) LIKE ? ESCAPE '\'`, ContainsExpr(DialectSQLite, "carrier"))
	assert.Equal(t, `LOWER(carrier) LIKE ? ESCAPE '\'`, ContainsExpr(DialectPostgres, "carrier"))
}

func TestUnicodeLowerFoldsNonASCII(t *testing.T) {
	conn := openTestDB(t)
	var lowered string
	require.NoError(t, conn.Raw("SELECT unicode_lower(?)", "ÉMILE Ørsted").Scan(&lowered).Error)
	assert.Equal(t, "émile ørsted", lowered)

	var isNull bool
	require.NoError(t, conn.Raw("SELECT unicode_lower(NULL) IS NULL").Scan(&isNull).Error)
	assert.True(t, isNull)
}

func TestWithTxRollsBack(t *testing.T) {
	conn := openTestDB(t)
	now := time.Now().UTC()
	err := WithTx(context.Background(), conn, func(tx *gorm.DB) error {
		if err := tx.Create(&User{Username: "tmp", PasswordHash: "x", Role: "viewer", CreatedAt: now}).Error; err != nil {
			return err
		}
		return fmt.Errorf("boom")
	})
	require.Error(t, err)
	var count int64
	require.NoError(t, conn.Model(&User{}).Count(&count).Error)
	assert.Zero(t, count)
}
