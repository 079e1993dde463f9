package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(UpOrderLinesTable, DownOrderLinesTable)
}

func UpOrderLinesTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `CREATE TABLE order_lines
(
    id SERIAL PRIMARY KEY,
    order_uuid UUID NOT NULL REFERENCES orders (uuid),
    sku VARCHAR(64) NOT NULL,
    description VARCHAR(255) NOT NULL,
    metal VARCHAR(32) NOT NULL,
    weight_oz NUMERIC(12, 4) NOT NULL,
    quantity INT NOT NULL,
    unit_price NUMERIC(14, 2) NOT NULL,
    extended_price NUMERIC(14, 2) NOT NULL
);`)
	return err
}

func DownOrderLinesTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, "DROP TABLE order_lines;")
	return err
}
