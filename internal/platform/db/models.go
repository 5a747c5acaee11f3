package db

import "time"

// User is a dashboard account.
type User struct {
	ID           int64      `gorm:"primaryKey;autoIncrement"`
	Username     string     `gorm:"type:varchar(64);not null;uniqueIndex"`
	PasswordHash string     `gorm:"type:text;not null"`
	Role         string     `gorm:"type:varchar(16);not null;default:'viewer'"`
	CreatedAt    time.Time  `gorm:"not null"`
	LastLoginAt  *time.Time // Nil until the first successful login.
}

// TableName pins the users table name.
func (User) TableName() string { return "users" }

// SimCard is a tracked SIM. IMEI and IMSI never change after insert.
type SimCard struct {
	ID          int64      `gorm:"primaryKey;autoIncrement"`
	IMEI        string     `gorm:"column:imei;type:varchar(32);not null;uniqueIndex"`
	IMSI        string     `gorm:"column:imsi;type:varchar(32);not null;uniqueIndex"`
	PhoneNumber *string    `gorm:"type:varchar(32);uniqueIndex"` // NULLs do not collide.
	Carrier     string     `gorm:"type:varchar(100);not null"`
	IssueDate   time.Time  `gorm:"type:date;not null"`
	ExpiryDate  *time.Time `gorm:"type:date"`
	Status      string     `gorm:"type:varchar(16);not null;default:'active';index"`
	OwnerName   *string    `gorm:"type:varchar(200)"`
	OwnerID     *string    `gorm:"type:varchar(100)"`
	CreatedAt   time.Time  `gorm:"not null;index"`
	UpdatedAt   time.Time  `gorm:"not null"`

	UsageRecords []UsageRecord `gorm:"foreignKey:SimID;constraint:OnDelete:CASCADE"`
}

// TableName pins the sim_cards table name.
func (SimCard) TableName() string { return "sim_cards" }

// UsageRecord is one append-only usage sample owned by a SimCard.
type UsageRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	SimID       int64     `gorm:"not null;index"`
	DataUsedMB  float64   `gorm:"column:data_used_mb;not null;default:0"`
	CallMinutes float64   `gorm:"not null;default:0"`
	SMSCount    int64     `gorm:"column:sms_count;not null;default:0"`
	Date        time.Time `gorm:"type:date;not null;index"`
}

// TableName pins the usage_records table name.
func (UsageRecord) TableName() string { return "usage_records" }
