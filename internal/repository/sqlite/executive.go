package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/empleo/pkg/models"
)

func (r *SQLiteRepo) GetExecutive(ctx context.Context, id int64) (*models.Executive, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, name, active, created FROM executives WHERE id = ?`, id)
	var e models.Executive
	var active int
	if err := row.Scan(&e.ID, &e.Name, &active, &e.Created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	e.Active = active != 0

	return &e, nil
}

// ActiveForCompany resolves the executive currently responsible for a company.
// Returns nil when the company has no assignment or the assigned executive is
// no longer active.
func (r *SQLiteRepo) ActiveForCompany(ctx context.Context, companyID int64) (*models.Executive, error) {
	row := r.conn.QueryRow(ctx, `SELECT e.id, e.name, e.active, e.created FROM executives e JOIN companies c ON c.executive_id = e.id WHERE c.id = ? AND e.active = 1`, companyID)
	var e models.Executive
	var active int
	if err := row.Scan(&e.ID, &e.Name, &active, &e.Created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	e.Active = active != 0

	return &e, nil
}

func (r *SQLiteRepo) CreateExecutive(ctx context.Context, e *models.Executive) (int64, error) {
	if e == nil {
		return 0, fmt.Errorf("executive is nil")
	}

	active := 0
	if e.Active {
		active = 1
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO executives (name, active, created) VALUES (?, ?, ?)`, e.Name, active, now())
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}
