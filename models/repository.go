package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PageSize is the number of records on one listing page.
const PageSize = 20

var (
	ErrNotFound         = errors.New("not found")
	ErrRecordHasEntries = errors.New("record still has treatment entries")
)

// ListQuery selects one page of records.
type ListQuery struct {
	Page   int
	Search string
	Desc   bool
}

// RecordPage is one page of the listing together with the number of
// pages the whole (filtered) listing spans.
type RecordPage struct {
	PageCount int
	Total     int64
	Records   []RecordSummary
}

// Repository stores patient records and their treatment entries. Lookups
// of a missing id fail with ErrNotFound.
type Repository interface {
	ListRecords(ctx context.Context, q ListQuery) (*RecordPage, error)
	GetRecord(ctx context.Context, id string) (*Record, error)
	CreateRecord(ctx context.Context, record *Record) error
	UpdateRecord(ctx context.Context, record *Record) error
	DeleteRecord(ctx context.Context, id string) (*Record, error)

	CreateTransaction(ctx context.Context, entry *Transaction) error
	UpdateTransaction(ctx context.Context, entry *Transaction) error
	DeleteTransaction(ctx context.Context, id string) (*Transaction, error)

	Ping(ctx context.Context) error
	Close() error
}

// GormRepository is the Repository over a gorm database.
type GormRepository struct {
	db *gorm.DB
	// readOpts is applied to the listing transaction.
	readOpts *sql.TxOptions
	// nameMatch is the case-insensitive LIKE condition on name for the
	// connected dialect.
	nameMatch string
}

// NewRepository wraps an open database. On postgres the listing runs in a
// read-only repeatable-read transaction so the count and the page come
// from one snapshot.
func NewRepository(db *gorm.DB) *GormRepository {
	r := &GormRepository{db: db, nameMatch: `LOWER(name) LIKE ? ESCAPE '\'`}
	switch db.Dialector.Name() {
	case "postgres":
		r.readOpts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
		r.nameMatch = `name ILIKE ? ESCAPE '\'`
	case "sqlite":
		// The built-in LOWER folds ASCII only.
		r.nameMatch = unicodeLower + `(name) LIKE ? ESCAPE '\'`
	}
	return r
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *GormRepository) nameContains(term string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if term == "" {
			return db
		}
		pattern := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
		return db.Where(r.nameMatch, pattern)
	}
}

func (r *GormRepository) ListRecords(ctx context.Context, q ListQuery) (*RecordPage, error) {
	if q.Page < 1 {
		return nil, fmt.Errorf("invalid page number %d", q.Page)
	}

	page := &RecordPage{Records: []RecordSummary{}}
	filter := r.nameContains(q.Search)

	var opts []*sql.TxOptions
	if r.readOpts != nil {
		opts = append(opts, r.readOpts)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Record{}).Scopes(filter).Count(&page.Total).Error; err != nil {
			return fmt.Errorf("count records: %w", err)
		}
		err := tx.Model(&Record{}).
			Scopes(filter).
			Select("id", "name").
			Order(clause.OrderByColumn{Column: clause.Column{Name: "name"}, Desc: q.Desc}).
			Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: q.Desc}).
			Limit(PageSize).
			Offset((q.Page - 1) * PageSize).
			Find(&page.Records).Error
		if err != nil {
			return fmt.Errorf("fetch records: %w", err)
		}
		return nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	if page.Records == nil {
		page.Records = []RecordSummary{}
	}
	page.PageCount = int((page.Total + PageSize - 1) / PageSize)
	return page, nil
}

func (r *GormRepository) GetRecord(ctx context.Context, id string) (*Record, error) {
	var record Record
	err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}}).
				Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}})
		}).
		First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	if record.Entries == nil {
		record.Entries = []Transaction{}
	}
	return &record, nil
}

func (r *GormRepository) CreateRecord(ctx context.Context, record *Record) error {
	record.ID = ""
	if err := r.db.WithContext(ctx).Omit("Entries").Create(record).Error; err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

// UpdateRecord replaces every field of an existing record except its id
// and creation time.
func (r *GormRepository) UpdateRecord(ctx context.Context, record *Record) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Record
		if err := tx.First(&existing, "id = ?", record.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("record %s: %w", record.ID, ErrNotFound)
			}
			return fmt.Errorf("load record: %w", err)
		}

		existing.Name = record.Name
		existing.Address = record.Address
		existing.Telephone = record.Telephone
		existing.Occupation = record.Occupation
		existing.Status = record.Status
		existing.Gender = record.Gender
		existing.Complaint = record.Complaint
		existing.Birthday = record.Birthday

		if err := tx.Omit("Entries").Save(&existing).Error; err != nil {
			return fmt.Errorf("update record: %w", err)
		}
		*record = existing
		return nil
	})
}

// DeleteRecord removes a record that owns no treatment entries and
// returns it.
func (r *GormRepository) DeleteRecord(ctx context.Context, id string) (*Record, error) {
	var record Record
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&record, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("record %s: %w", id, ErrNotFound)
			}
			return fmt.Errorf("load record: %w", err)
		}

		var entries int64
		if err := tx.Model(&Transaction{}).Where("record_id = ?", id).Count(&entries).Error; err != nil {
			return fmt.Errorf("count entries: %w", err)
		}
		if entries > 0 {
			return fmt.Errorf("record %s has %d entries: %w", id, entries, ErrRecordHasEntries)
		}

		if err := tx.Delete(&record).Error; err != nil {
			return fmt.Errorf("delete record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *GormRepository) CreateTransaction(ctx context.Context, entry *Transaction) error {
	entry.ID = ""
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owners int64
		if err := tx.Model(&Record{}).Where("id = ?", entry.RecordID).Count(&owners).Error; err != nil {
			return fmt.Errorf("check record: %w", err)
		}
		if owners == 0 {
			return fmt.Errorf("record %s: %w", entry.RecordID, ErrNotFound)
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		return nil
	})
}

// UpdateTransaction replaces date, tooth, service and fees. The owning
// record never changes; entry.RecordID is filled in from storage.
func (r *GormRepository) UpdateTransaction(ctx context.Context, entry *Transaction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Transaction
		if err := tx.First(&existing, "id = ?", entry.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("transaction %s: %w", entry.ID, ErrNotFound)
			}
			return fmt.Errorf("load transaction: %w", err)
		}

		existing.Date = entry.Date
		existing.Tooth = entry.Tooth
		existing.Service = entry.Service
		existing.Fees = entry.Fees

		if err := tx.Save(&existing).Error; err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		*entry = existing
		return nil
	})
}

func (r *GormRepository) DeleteTransaction(ctx context.Context, id string) (*Transaction, error) {
	var entry Transaction
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&entry, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
			}
			return fmt.Errorf("load transaction: %w", err)
		}
		if err := tx.Delete(&entry).Error; err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *GormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
