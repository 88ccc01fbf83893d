package server

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"CollabCanvas/internal/wire"
)

// PostgresStore persists the shape table in the shapes_active table.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects, verifies the connection and ensures the table.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS shapes_active (
		id TEXT PRIMARY KEY,
		shape_info JSONB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure shapes_active: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SelectAll() ([]wire.Row, error) {
	rows, err := p.db.Query(`SELECT id, shape_info FROM shapes_active`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []wire.Row
	for rows.Next() {
		var id string
		var info []byte
		if err := rows.Scan(&id, &info); err != nil {
			return nil, err
		}
		out = append(out, wire.Row{ID: id, ShapeInfo: json.RawMessage(info)})
	}
	return out, rows.Err()
}

func (p *PostgresStore) Insert(shapeInfo json.RawMessage) (wire.Row, error) {
	var id string
	err := p.db.QueryRow(
		`INSERT INTO shapes_active (id, shape_info) VALUES (gen_random_uuid()::text, $1) RETURNING id`,
		[]byte(shapeInfo),
	).Scan(&id)
	if err != nil {
		return wire.Row{}, err
	}
	return wire.Row{ID: id, ShapeInfo: shapeInfo}, nil
}

func (p *PostgresStore) Update(id string, shapeInfo json.RawMessage) (wire.Row, error) {
	res, err := p.db.Exec(`UPDATE shapes_active SET shape_info = $1 WHERE id = $2`, []byte(shapeInfo), id)
	if err != nil {
		return wire.Row{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wire.Row{}, notFoundError{id: id}
	}
	return wire.Row{ID: id, ShapeInfo: shapeInfo}, nil
}

func (p *PostgresStore) Delete(id string) (wire.Row, error) {
	var info []byte
	err := p.db.QueryRow(
		`DELETE FROM shapes_active WHERE id = $1 RETURNING shape_info`, id,
	).Scan(&info)
	if err == sql.ErrNoRows {
		return wire.Row{}, notFoundError{id: id}
	}
	if err != nil {
		return wire.Row{}, err
	}
	return wire.Row{ID: id, ShapeInfo: json.RawMessage(info)}, nil
}

// Close releases the connection pool.
func (p *PostgresStore) Close() error { return p.db.Close() }
