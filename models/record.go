package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Record is a patient.
type Record struct {
	ID         string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name       string         `gorm:"not null;index" json:"name"`
	Address    string         `gorm:"not null" json:"address"`
	Telephone  string         `gorm:"not null" json:"telephone"`
	Occupation string         `gorm:"not null" json:"occupation"`
	Status     string         `gorm:"not null" json:"status"`
	Gender     string         `gorm:"not null" json:"gender"`
	Complaint  string         `gorm:"not null" json:"complaint"`
	Birthday   datatypes.Date `gorm:"not null" json:"birthday"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`

	Entries []Transaction `gorm:"foreignKey:RecordID;references:ID;constraint:OnDelete:RESTRICT" json:"-"`
}

func (r *Record) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// AgeAt returns the age in whole years of someone born on birthday.
func AgeAt(birthday, now time.Time) int {
	if birthday.IsZero() {
		return 0
	}
	years := now.Year() - birthday.Year()
	if now.Month() < birthday.Month() || (now.Month() == birthday.Month() && now.Day() < birthday.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// RecordSummary is the listing projection of a Record.
type RecordSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Transaction is a treatment entry billed to a Record.
type Transaction struct {
	ID        string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	RecordID  string          `gorm:"type:varchar(36);not null;index" json:"recordId"`
	Date      datatypes.Date  `gorm:"not null" json:"date"`
	Tooth     string          `gorm:"not null" json:"tooth"`
	Service   string          `gorm:"not null" json:"service"`
	Fees      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"fees"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (Transaction) TableName() string {
	return "treatment_entries"
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
