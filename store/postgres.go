package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/karthikraju391/pairchat/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// node is one path of the tree as a row.
type node struct {
	Path      string `gorm:"primaryKey;type:text"`
	Value     []byte `gorm:"type:bytea;not null"`
	UpdatedAt time.Time
}

func (node) TableName() string { return "tree_nodes" }

// PostgresTree is the shared Tree driver; several gateway processes can
// point at the same database. A multi-path Update runs in one transaction.
type PostgresTree struct {
	db *gorm.DB
}

// OpenPostgres connects with dsn and migrates the tree table.
func OpenPostgres(dsn string) (*PostgresTree, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewPostgresTree(db)
}

// NewPostgresTree wraps an open gorm handle.
func NewPostgresTree(db *gorm.DB) (*PostgresTree, error) {
	if err := db.AutoMigrate(&node{}); err != nil {
		return nil, fmt.Errorf("migrate tree_nodes: %w", err)
	}
	logger.Info("postgres_tree_ready")
	return &PostgresTree{db: db}, nil
}

func (t *PostgresTree) Update(ctx context.Context, values map[string][]byte) error {
	now := time.Now().UTC()
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range sortedPaths(values) {
			row := node{Path: p, Value: values[p], UpdatedAt: now}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "path"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("upsert %s: %w", p, err)
			}
		}
		return nil
	})
}

func (t *PostgresTree) Get(ctx context.Context, path string) ([]byte, error) {
	var row node
	err := t.db.WithContext(ctx).Where("path = ?", path).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return row.Value, nil
}

func (t *PostgresTree) Scan(ctx context.Context, prefix string, fn func(path string, value []byte) error) error {
	var rows []node
	err := t.db.WithContext(ctx).
		Where(`path LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%").
		Order(`path COLLATE "C" ASC`).
		Find(&rows).Error
	if err != nil {
		return fmt.Errorf("scan %s: %w", prefix, err)
	}
	for _, row := range rows {
		if err := fn(row.Path, row.Value); err != nil {
			return err
		}
	}
	return nil
}

func (t *PostgresTree) Ping(ctx context.Context) error {
	sqlDB, err := t.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (t *PostgresTree) Close() error {
	sqlDB, err := t.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike quotes LIKE wildcards so ids containing "_" match literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
