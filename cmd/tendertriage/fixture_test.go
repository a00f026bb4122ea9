package main

import (
	"context"
	"database/sql"
	"fmt"

	"tendertriage/internal/infra/tabular"
)

func openSQLiteFixture(path string) (*sql.DB, error) {
	ctx := context.Background()
	db, err := tabular.Open(ctx, tabular.DriverSQLite, path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE t (id TEXT, amount REAL)`); err != nil {
		return nil, err
	}
	for i := 0; i < 40; i++ {
		amount := 100.0 + float64(i%5)
		if i == 7 {
			amount = 1
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO t VALUES (?, ?)`, fmt.Sprintf("S%02d", i), amount); err != nil {
			return nil, err
		}
	}
	return db, nil
}
