package database

import (
	"fmt"
	"time"

	"github.com/Egham-7/custom-endpoint-proxy/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB wraps a gorm connection holding the user and user-key tables.
type DB struct {
	*gorm.DB
	config     models.DatabaseConfig
	driverName string
}

func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (db *DB) Ping() error {
	if db.DB == nil {
		return fmt.Errorf("database not connected")
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (db *DB) DriverName() string {
	return db.driverName
}

// Migrate creates or updates the tables owned by this service.
func (db *DB) Migrate() error {
	if err := db.AutoMigrate(&models.User{}, &models.UserKey{}); err != nil {
		return fmt.Errorf("failed to migrate %s schema: %w", db.driverName, err)
	}
	return nil
}

func (db *DB) setConnectionPool() {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return
	}

	if db.config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(db.config.MaxOpenConns)
	}
	if db.config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(db.config.MaxIdleConns)
	}
	if db.config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(db.config.ConnMaxLifetime) * time.Second)
	}
}

// New opens and pings a connection for the configured driver.
func New(config models.DatabaseConfig) (*DB, error) {
	dialector, driverName, err := dialectorFor(config)
	if err != nil {
		return nil, err
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driverName, err)
	}

	db := &DB{
		DB:         gormDB,
		config:     config,
		driverName: driverName,
	}

	db.setConnectionPool()

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping %s: %w", driverName, err)
	}

	fiberlog.Infof("Connected to %s database", driverName)
	return db, nil
}
