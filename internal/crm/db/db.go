// Package db mirrors CRM snapshots into a relational database so the data can
// be queried with SQL. The JSON snapshot stays the source of truth; the mirror
// is rewritten in full on every save.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	rows "github.com/gartstein/staffing/internal/crm/db/models"
	"github.com/gartstein/staffing/internal/crm/models"
	"github.com/gartstein/staffing/internal/crm/pipeline"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Environment variables gating the mirror.
const (
	EnvURL    = "CRM_DATABASE_URL"
	EnvDriver = "CRM_DATABASE_DRIVER"
)

const snapshotVersion = 1

// Config selects the database.
type Config struct {
	// Driver is "postgres" or "sqlite".
	Driver string
	DSN    string
}

// FromEnv reads the mirror settings. ok is false unless both variables are
// set.
func FromEnv(getenv func(string) string) (cfg Config, ok bool) {
	cfg = Config{Driver: getenv(EnvDriver), DSN: getenv(EnvURL)}
	return cfg, cfg.Driver != "" && cfg.DSN != ""
}

// Mirror is a store.Persister backed by gorm.
type Mirror struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects and migrates the schema.
func Open(cfg Config, logger *zap.Logger) (*Mirror, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if dialector.Name() == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// in-memory sqlite databases are per connection
		sqlDB.SetMaxOpenConns(1)
	}
	return newMirror(db, logger)
}

func newMirror(db *gorm.DB, logger *zap.Logger) (*Mirror, error) {
	if err := db.AutoMigrate(rows.All()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Mirror{db: db, logger: logger.Named("db_mirror")}, nil
}

// Save replaces every mirrored table with the content of snap in one
// transaction.
func (m *Mirror) Save(ctx context.Context, snap *models.Snapshot) error {
	start := time.Now()
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, model := range rows.All() {
			if err := all.Delete(model).Error; err != nil {
				return fmt.Errorf("failed to clear %T: %w", model, err)
			}
		}

		if err := createAll(tx, mapRows(snap.Vendors, vendorRow)); err != nil {
			return err
		}
		if err := createAll(tx, mapRows(snap.Resources, resourceRow)); err != nil {
			return err
		}
		if err := createAll(tx, mapRows(snap.JobRequirements, jobRow)); err != nil {
			return err
		}
		if err := createAll(tx, mapRows(snap.ProcessFlows, flowRow)); err != nil {
			return err
		}
		if err := createAll(tx, mapRows(snap.FileCategories, categoryRow)); err != nil {
			return err
		}
		if err := createAll(tx, mapRows(snap.Files, fileRow)); err != nil {
			return err
		}
		skills := mapRows(snap.TechStackSkills, func(i int, s string) rows.Skill {
			return rows.Skill{Name: s, Position: i}
		})
		if err := createAll(tx, skills); err != nil {
			return err
		}
		return tx.Create(&rows.Meta{ID: 1, Version: snapshotVersion, SavedAt: time.Now()}).Error
	})
	if err != nil {
		return err
	}

	m.logger.Debug("Snapshot mirrored", zap.Duration("took", time.Since(start)))
	return nil
}

func createAll[R any](tx *gorm.DB, items []R) error {
	if len(items) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(items, 100).Error; err != nil {
		return fmt.Errorf("failed to insert %T: %w", items, err)
	}
	return nil
}

// Load rebuilds a snapshot from the mirror. It returns nil when nothing was
// mirrored yet.
func (m *Mirror) Load(ctx context.Context) (*models.Snapshot, error) {
	db := m.db.WithContext(ctx)

	var meta rows.Meta
	if err := db.First(&meta, 1).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var (
		vendors    []rows.Vendor
		resources  []rows.Resource
		jobs       []rows.JobRequirement
		flows      []rows.ProcessFlow
		skills     []rows.Skill
		categories []rows.FileCategory
		files      []rows.File
	)
	for _, dst := range []any{&vendors, &resources, &jobs, &flows, &skills, &categories, &files} {
		if err := db.Order("position").Find(dst).Error; err != nil {
			return nil, fmt.Errorf("failed to read %T: %w", dst, err)
		}
	}

	return &models.Snapshot{
		Vendors:         mapModels(vendors, vendorFromRow),
		Resources:       mapModels(resources, resourceFromRow),
		JobRequirements: mapModels(jobs, jobFromRow),
		ProcessFlows:    mapModels(flows, flowFromRow),
		TechStackSkills: mapModels(skills, func(s rows.Skill) string { return s.Name }),
		FileCategories:  mapModels(categories, categoryFromRow),
		Files:           mapModels(files, fileFromRow),
	}, nil
}

// StatusCounts groups mirrored process flows by status.
func (m *Mirror) StatusCounts(ctx context.Context) (map[pipeline.Status]int64, error) {
	var out []struct {
		Status pipeline.Status
		N      int64
	}
	err := m.db.WithContext(ctx).Model(&rows.ProcessFlow{}).
		Select("status, count(*) as n").
		Group("status").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[pipeline.Status]int64, len(out))
	for _, r := range out {
		counts[r.Status] = r.N
	}
	return counts, nil
}

// Close releases the connection pool.
func (m *Mirror) Close() error {
	db, err := m.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
