package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/empleo/pkg/models"
)

func (r *SQLiteRepo) GetCompany(ctx context.Context, id int64) (*models.Company, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, name, executive_id, created FROM companies WHERE id = ?`, id)
	var c models.Company
	var executiveID sql.NullInt64
	if err := row.Scan(&c.ID, &c.Name, &executiveID, &c.Created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	if executiveID.Valid {
		c.ExecutiveID = &executiveID.Int64
	}

	return &c, nil
}

func (r *SQLiteRepo) CreateCompany(ctx context.Context, c *models.Company) (int64, error) {
	if c == nil {
		return 0, fmt.Errorf("company is nil")
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO companies (name, executive_id, created) VALUES (?, ?, ?)`, c.Name, c.ExecutiveID, now())
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}
