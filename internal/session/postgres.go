package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/floodfreq/internal/log"
	"go.uber.org/zap"
)

// field is one stored session value
type field struct {
	UID       string    `gorm:"primaryKey;column:uid"`
	Field     string    `gorm:"primaryKey;column:field"`
	Value     []byte    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;index;not null"`
}

func (field) TableName() string {
	return "analysis_fields"
}

// PostgresStore keeps sessions in PostgreSQL
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore connects and migrates the session table
func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := CreateConnection(connectionString)
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&field{}); err != nil {
		return nil, fmt.Errorf("failed to migrate session table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// CreateConnection opens a gorm connection that logs through zap
func CreateConnection(connectionString string) (*gorm.DB, error) {
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Info("connecting to PostgreSQL...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		log.Warn("warning: unable to create a PostgreSQL connection:", err)
		return nil, err
	}

	return db, nil
}

func (p *PostgresStore) Get(ctx context.Context, uid, name string) ([]byte, error) {
	var f field
	err := p.db.WithContext(ctx).Where("uid = ? AND field = ?", uid, name).Take(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying session field: %w", err)
	}
	return f.Value, nil
}

func (p *PostgresStore) Put(ctx context.Context, uid string, fields map[string][]byte) error {
	if len(fields) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]field, 0, len(fields))
	for name, value := range fields {
		rows = append(rows, field{UID: uid, Field: name, Value: value, UpdatedAt: now})
	}

	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uid"}, {Name: "field"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("error storing session fields: %w", err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, uid string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	err := p.db.WithContext(ctx).Where("uid = ? AND field IN ?", uid, fields).Delete(&field{}).Error
	if err != nil {
		return fmt.Errorf("error deleting session fields: %w", err)
	}
	return nil
}

func (p *PostgresStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	db := p.db.WithContext(ctx)
	expired := db.Model(&field{}).Select("uid").Group("uid").Having("MAX(updated_at) < ?", before)
	res := db.Where("uid IN (?)", expired).Delete(&field{})
	if res.Error != nil {
		return 0, fmt.Errorf("error purging sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (p *PostgresStore) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
