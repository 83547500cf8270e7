package storage

import (
	_ "embed"

	"github.com/jmoiron/sqlx"
	_ "github.com/marcboeker/go-duckdb/v2"
)

//go:embed schema/ticks.sql
var ticksSchema []byte

type DuckDB = *sqlx.DB

// InitDuckDB opens the database at path and applies the tick schema.
// An empty path opens an in-memory database.
func InitDuckDB(path string) (DuckDB, error) {
	db, err := sqlx.Connect("duckdb", path)
	if err != nil {
		return nil, err
	}

	_ = db.MustExec(string(ticksSchema))

	return db, nil
}
