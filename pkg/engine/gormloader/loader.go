// Package gormloader stores template sources in a relational table and
// serves them to pongo2 through its TemplateLoader seam. It suits setups
// where operators edit templates at runtime (admin panels, multi-tenant
// skins) and the filesystem is read-only.
package gormloader

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Template is the persisted row backing one named template.
type Template struct {
	Name      string `gorm:"primaryKey"`
	Source    string `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName keeps the table name stable regardless of gorm's pluralisation
// settings.
func (Template) TableName() string { return "templates" }

// Loader implements pongo2.TemplateLoader on top of a gorm.DB.
type Loader struct {
	db *gorm.DB
}

var _ pongo2.TemplateLoader = (*Loader)(nil)

// New migrates the templates table and returns a loader bound to db.
func New(db *gorm.DB) (*Loader, error) {
	if db == nil {
		return nil, errors.New("gormloader: db is required")
	}
	if err := db.AutoMigrate(&Template{}); err != nil {
		return nil, fmt.Errorf("gormloader: migrate templates table: %w", err)
	}
	return &Loader{db: db}, nil
}

// Open opens (or creates) a SQLite database at dsn and returns a migrated
// loader on it. SQL statements go to logger at warn level; a nil logger
// keeps gorm silent.
func Open(dsn string, logger *slog.Logger) (*Loader, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("gormloader: dsn is required")
	}

	gormLog := gormlogger.Default.LogMode(gormlogger.Silent)
	if logger != nil {
		gormLog = gormlogger.New(&slogWriter{logger: logger}, gormlogger.Config{
			IgnoreRecordNotFoundError: true,
			LogLevel:                  gormlogger.Warn,
		})
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("gormloader: open %q: %w", dsn, err)
	}
	return New(db)
}

// slogWriter funnels gorm's printf-style log lines into slog.
type slogWriter struct {
	logger *slog.Logger
}

func (w *slogWriter) Printf(format string, args ...any) {
	w.logger.Warn(fmt.Sprintf(format, args...))
}

// Abs resolves {% include %} and {% extends %} references. Stored names
// are rooted, so plain names pass through cleaned; a ./ or ../ prefix
// resolves relative to the including template.
func (l *Loader) Abs(base, name string) string {
	if base == "" || !strings.HasPrefix(name, ".") {
		return path.Clean(name)
	}
	return path.Join(path.Dir(base), name)
}

// Get returns the stored source for name. A missing row reports
// fs.ErrNotExist so the engine adapter can translate it into its
// not-found error.
func (l *Loader) Get(name string) (io.Reader, error) {
	var row Template
	err := l.db.Where("name = ?", name).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("gormloader: template %q: %w", name, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("gormloader: load template %q: %w", name, err)
	}
	return strings.NewReader(row.Source), nil
}

// Put inserts or replaces the source stored under name.
func (l *Loader) Put(name, source string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("gormloader: template name is required")
	}
	if err := l.db.Save(&Template{Name: name, Source: source}).Error; err != nil {
		return fmt.Errorf("gormloader: store template %q: %w", name, err)
	}
	return nil
}

// Names lists the stored template names in lexical order.
func (l *Loader) Names() ([]string, error) {
	var names []string
	err := l.db.Model(&Template{}).Order("name").Pluck("name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("gormloader: list templates: %w", err)
	}
	return names, nil
}
