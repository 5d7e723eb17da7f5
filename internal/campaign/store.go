package campaign

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Run statuses tracked in the campaign database.
const (
	RunNew      string = "NEW"
	RunEncoded  string = "ENCODED"
	RunCollated string = "COLLATED"
	RunFailed   string = "FAILED"
)

type CampaignRecord struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"uniqueIndex;not null"`
	WorkDir      string    `gorm:"not null"`
	App          datatypes.JSON
	Sampler      datatypes.JSON
	CreationTime time.Time

	Runs []RunRecord `gorm:"foreignKey:CampaignId;constraint:OnDelete:CASCADE"`
}

type RunRecord struct {
	CampaignId uuid.UUID `gorm:"type:uuid;primaryKey"`
	RunId      string    `gorm:"primaryKey"`
	Seq        int       `gorm:"not null"`
	Status     string    `gorm:"size:20;not null"`
	Params     datatypes.JSON
	Outputs    datatypes.JSON
}

// OpenDatabase opens the campaign database. URLs with a postgres scheme go
// through the postgres driver; anything else is treated as a sqlite path.
func OpenDatabase(url string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		dialector = postgres.Open(url)
	} else {
		dialector = sqlite.Open(url)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open campaign database: %w", err)
	}

	if err := getMigrator(db).Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate campaign database: %w", err)
	}

	return db, nil
}

func getMigrator(db *gorm.DB) *gormigrate.Gormigrate {
	migrator := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "0",
			Migrate: func(txn *gorm.DB) error {
				return txn.AutoMigrate(&CampaignRecord{}, &RunRecord{})
			},
		},
	})

	migrator.InitSchema(func(txn *gorm.DB) error {
		if db.Dialector.Name() == "sqlite" || db.Dialector.Name() == "sqlite3" {
			if err := txn.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
				slog.Error("error enabling foreign keys for sqlite", "error", err)
			}
		}
		return txn.AutoMigrate(&CampaignRecord{}, &RunRecord{})
	})

	return migrator
}
