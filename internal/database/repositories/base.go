package repositories

import (
	"database/sql"

	"github.com/rs/zerolog"
)

// BaseRepository provides common database state for concrete repositories.
type BaseRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewBase creates a new base repository
func NewBase(db *sql.DB, log zerolog.Logger) *BaseRepository {
	return &BaseRepository{
		db:  db,
		log: log,
	}
}

// DB returns the database connection
func (r *BaseRepository) DB() *sql.DB {
	return r.db
}

// execer abstracts *sql.DB and *sql.Tx so repository writes can run inside
// the gateway's per-ticker transactions.
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// scaled100 converts an unscaled oscillator value to the store's x100
// integer representation.
func scaled100(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return int64(*v*100 + signOf(*v)*0.5)
}

func signOf(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// unscaled100 reverses scaled100 on read.
func unscaled100(v sql.NullInt64) *float64 {
	if !v.Valid {
		return nil
	}
	f := float64(v.Int64) / 100
	return &f
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
