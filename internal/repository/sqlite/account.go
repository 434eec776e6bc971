package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/empleo/pkg/models"
)

func (r *SQLiteRepo) CreateAccount(ctx context.Context, a *models.Account) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("account is nil")
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO accounts (email, password_hash, role, entity_id, created) VALUES (?, ?, ?, ?, ?)`, a.Email, a.PasswordHash, string(a.Role), a.EntityID, now())
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, email, password_hash, role, entity_id, created FROM accounts WHERE email = ?`, email)
	var a models.Account
	var role string
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &role, &a.EntityID, &a.Created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	a.Role = models.Role(role)

	return &a, nil
}
