package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/garnizeh/empleo/pkg/models"
)

// CreateFromRequest materializes the job listing for an approved request.
// The jobs table carries UNIQUE(request_id), so a repeated call for the same
// request returns the existing job's id instead of creating a duplicate.
func (r *SQLiteRepo) CreateFromRequest(ctx context.Context, req *models.EmploymentRequest) (int64, error) {
	if req == nil {
		return 0, fmt.Errorf("request is nil")
	}

	tags, err := json.Marshal(req.Content.Tags)
	if err != nil {
		return 0, fmt.Errorf("marshal tags: %w", err)
	}
	questions, err := json.Marshal(req.Content.Questions)
	if err != nil {
		return 0, fmt.Errorf("marshal questions: %w", err)
	}

	q := `INSERT INTO jobs (request_id, company_id, title, description, work_mode, schedule, location, salary_range, tags, questions, status, created) VALUES (?,?,?,?,?,?,?,?,?,?,?,?) ON CONFLICT(request_id) DO NOTHING`
	res, err := r.conn.Exec(ctx, q,
		req.ID, req.CompanyID,
		req.Content.Title, req.Content.Description, string(req.Content.WorkMode), req.Content.Schedule,
		req.Content.Location, req.Content.SalaryRange, string(tags), string(questions),
		models.JobStatusPendingCompanyReview, now(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert job: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return res.LastInsertId()
	}

	// conflict path: the job already exists for this request
	row := r.conn.QueryRow(ctx, `SELECT id FROM jobs WHERE request_id = ?`, req.ID)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup existing job: %w", err)
	}

	return id, nil
}

func (r *SQLiteRepo) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, request_id, company_id, title, description, work_mode, schedule, location, salary_range, tags, questions, status, created FROM jobs WHERE id = ?`, id)

	var j models.Job
	var workMode, tags, questions string
	if err := row.Scan(
		&j.ID, &j.RequestID, &j.CompanyID,
		&j.Content.Title, &j.Content.Description, &workMode, &j.Content.Schedule,
		&j.Content.Location, &j.Content.SalaryRange, &tags, &questions,
		&j.Status, &j.Created,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	j.Content.WorkMode = models.WorkMode(workMode)
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &j.Content.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if questions != "" {
		if err := json.Unmarshal([]byte(questions), &j.Content.Questions); err != nil {
			return nil, fmt.Errorf("unmarshal questions: %w", err)
		}
	}

	return &j, nil
}
