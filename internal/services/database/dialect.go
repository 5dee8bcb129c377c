package database

import (
	"fmt"

	"github.com/Egham-7/custom-endpoint-proxy/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func dialectorFor(config models.DatabaseConfig) (gorm.Dialector, string, error) {
	switch config.Type {
	case models.PostgreSQL:
		return postgres.Open(postgresDSN(config)), "postgres", nil
	case models.MySQL:
		return mysql.Open(mysqlDSN(config)), "mysql", nil
	case models.SQLite:
		if config.FilePath == "" {
			return nil, "", fmt.Errorf("file_path is required for SQLite")
		}
		return sqlite.Open(config.FilePath), "sqlite3", nil
	default:
		return nil, "", fmt.Errorf("unsupported database type: %s", config.Type)
	}
}

func postgresDSN(config models.DatabaseConfig) string {
	if config.DSN != "" {
		return config.DSN
	}
	sslMode := config.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.Username, config.Password, config.Database, sslMode,
	)
}

func mysqlDSN(config models.DatabaseConfig) string {
	if config.DSN != "" {
		return config.DSN
	}
	return fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?parseTime=true",
		config.Username, config.Password, config.Host, config.Port, config.Database,
	)
}
