package database

import (
	"fmt"
	"time"

	"farmops-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// approvedRecordIndex backs the "one approved record per flock and day" rule
// at the storage boundary. Races that slip past the sentinel's lookup fail here.
const approvedRecordIndex = `CREATE UNIQUE INDEX IF NOT EXISTS uniq_daily_records_approved
	ON daily_records (flock_id, record_date)
	WHERE review_status = 'approved' AND is_duplicate = false`

// Open connects to Postgres. TranslateError makes unique violations surface as
// gorm.ErrDuplicatedKey.
func Open(dsn string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), Config())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	log.Info("database connection established")
	return db, nil
}

// Config is shared by the production and the test dialector.
func Config() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	}
}

// Migrate creates the schema and the partial unique index on daily records.
func Migrate(db *gorm.DB, log *zap.Logger) error {
	err := db.AutoMigrate(
		&models.Farm{},
		&models.User{},
		&models.Customer{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.Flock{},
		&models.DailyRecord{},
		&models.Notification{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if err := db.Exec(approvedRecordIndex).Error; err != nil {
		return fmt.Errorf("create approved record index: %w", err)
	}

	log.Info("migration completed")
	return nil
}
