package db

import (
	"sync"

	_ "github.com/jackc/pgx/v4"
	"github.com/pkg/errors"
	"github.com/shiplane/shiplane/internal/models"
	"github.com/shiplane/shiplane/pkg/env"
	"github.com/shiplane/shiplane/pkg/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	conn     *gorm.DB
	connOnce sync.Once
)

// Connection returns the shared gorm connection, opening it on first
// use according to the configured database type.
func Connection() *gorm.DB {
	connOnce.Do(func() {
		var err error

		switch env.Variables().DatabaseType {
		case "sqlite":
			conn, err = gorm.Open(
				sqlite.Open(env.Variables().DatabasePath),
				&gorm.Config{},
			)
		case "postgres":
			fallthrough
		default:
			conn, err = gorm.Open(
				postgres.Open(env.Variables().DatabaseDSN),
				&gorm.Config{},
			)
		}

		if err != nil {
			log.Fatal("failed to connect to database", "error", err)
		}
	})

	return conn
}

// Migrate applies the schema for all shiplane models.
func Migrate() error {
	if err := Connection().AutoMigrate(
		&models.Release{},
		&models.CronJob{},
		&models.ReleaseTask{},
		&models.RegressionCycle{},
		&models.BuildArtifact{},
		&models.ActivityLog{},
	); err != nil {
		return errors.Wrap(err, "failed to migrate database")
	}

	return nil
}
