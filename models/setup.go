package models

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var DB *gorm.DB

// ConnectDatabase opens the configured database and migrates the schema.
// A .env file, when present, overrides driver and DSN.
func ConnectDatabase(driver, dsn string) {
	// Optional overrides, the file is not required.
	if err := godotenv.Load(); err == nil {
		if v := os.Getenv("DB_DRIVER"); v != "" {
			driver = v
		}
		if v := os.Getenv("DB_DSN"); v != "" {
			dsn = v
		}
	}

	db, err := Open(driver, dsn)
	if err != nil {
		log.Fatal(fmt.Sprintf("Cannot connect %s database at %s: %v", driver, dsn, err))
	}
	log.Info(fmt.Sprintf("Connected %s database at %s", driver, dsn))

	if err := Migrate(db); err != nil {
		log.Fatal("migration error: ", err)
	}
	DB = db
}

// Open creates a gorm connection for the given driver without migrating.
func Open(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "mysql":
		return gorm.Open(mysql.Open(dsn), &gorm.Config{})
	case "", "sqlite":
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

// Migrate creates or updates the tables for every entity.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&KeypointSchema{},
		&Batch{},
		&Image{},
		&Assignment{},
		&Annotation{},
		&Verification{},
	)
}
