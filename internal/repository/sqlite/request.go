package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/garnizeh/empleo/pkg/models"
)

const requestColumns = `id, company_id, executive_id, title, description, work_mode, schedule, location, salary_range, tags, questions, state, reviewer_comment, company_comment, job_id, submitted_at, reviewed_at, published_at`

// CreateRequest inserts the request row and its first history entry in one
// transaction.
func (r *SQLiteRepo) CreateRequest(ctx context.Context, req *models.EmploymentRequest, first *models.HistoryEntry) error {
	if req == nil {
		return fmt.Errorf("request is nil")
	}
	if first == nil {
		return fmt.Errorf("first history entry is nil")
	}

	tags, err := json.Marshal(req.Content.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	questions, err := json.Marshal(req.Content.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	tx, err := r.conn.GetConn().BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	insert := `INSERT INTO employment_requests (id, company_id, executive_id, title, description, work_mode, schedule, location, salary_range, tags, questions, state, submitted_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`
	if _, err := tx.ExecContext(ctx, insert,
		req.ID, req.CompanyID, req.ExecutiveID,
		req.Content.Title, req.Content.Description, string(req.Content.WorkMode), req.Content.Schedule,
		req.Content.Location, req.Content.SalaryRange, string(tags), string(questions),
		string(req.State), req.SubmittedAt,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert request: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO request_history (request_id, resulting_state, comment, actor_id, actor_role, created) VALUES (?,?,?,?,?,?)`,
		req.ID, string(first.State), first.Comment, first.ActorID, string(first.ActorRole), first.Created,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert history: %w", err)
	}

	return tx.Commit()
}

// GetRequest loads a request with its full history.
func (r *SQLiteRepo) GetRequest(ctx context.Context, id string) (*models.EmploymentRequest, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+requestColumns+` FROM employment_requests WHERE id = ?`, id)
	req, err := scanRequest(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.conn.QueryRows(ctx, `SELECT id, request_id, resulting_state, comment, actor_id, actor_role, created FROM request_history WHERE request_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h models.HistoryEntry
		var state, role string
		if err := rows.Scan(&h.ID, &h.RequestID, &state, &h.Comment, &h.ActorID, &role, &h.Created); err != nil {
			return nil, err
		}
		h.State = models.RequestState(state)
		h.ActorRole = models.Role(role)
		req.History = append(req.History, h)
	}

	return req, rows.Err()
}

// TransitionRequest performs the optimistic state change: the UPDATE is
// conditioned on the request still being in `from`, and the history entry is
// appended in the same transaction only when that condition held. A false
// return means a concurrent writer moved the request first. A nil entry
// skips the history append (used for the approve leg of approve+publish,
// which is audited by the resulting published entry).
func (r *SQLiteRepo) TransitionRequest(ctx context.Context, id string, from, to models.RequestState, upd *models.RequestUpdate, entry *models.HistoryEntry) (bool, error) {
	set := []string{"state = ?"}
	args := []any{string(to)}

	if upd != nil {
		if upd.ExecutiveID != nil {
			set = append(set, "executive_id = ?")
			args = append(args, *upd.ExecutiveID)
		}
		if upd.ReviewerComment != nil {
			set = append(set, "reviewer_comment = ?")
			args = append(args, *upd.ReviewerComment)
		}
		if upd.CompanyComment != nil {
			set = append(set, "company_comment = ?")
			args = append(args, *upd.CompanyComment)
		}
		if upd.JobID != nil {
			set = append(set, "job_id = ?")
			args = append(args, *upd.JobID)
		}
		if upd.ReviewedAt != nil {
			set = append(set, "reviewed_at = ?")
			args = append(args, *upd.ReviewedAt)
		}
		if upd.PublishedAt != nil {
			set = append(set, "published_at = ?")
			args = append(args, *upd.PublishedAt)
		}
		if upd.Content != nil {
			contentSet, contentArgs, err := contentClauses(upd.Content)
			if err != nil {
				return false, err
			}
			set = append(set, contentSet...)
			args = append(args, contentArgs...)
		}
	}

	args = append(args, id, string(from))

	tx, err := r.conn.GetConn().BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}

	q := `UPDATE employment_requests SET ` + strings.Join(set, ", ") + ` WHERE id = ? AND state = ?`
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("transition update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return false, err
	}
	if n == 0 {
		_ = tx.Rollback()
		return false, nil
	}

	if entry != nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO request_history (request_id, resulting_state, comment, actor_id, actor_role, created) VALUES (?,?,?,?,?,?)`,
			id, string(entry.State), entry.Comment, entry.ActorID, string(entry.ActorRole), entry.Created,
		); err != nil {
			_ = tx.Rollback()
			return false, fmt.Errorf("append history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}

	return true, nil
}

func (r *SQLiteRepo) ListByCompany(ctx context.Context, companyID int64, state *models.RequestState) ([]models.EmploymentRequest, error) {
	q := `SELECT ` + requestColumns + ` FROM employment_requests WHERE company_id = ?`
	args := []any{companyID}
	if state != nil {
		q += ` AND state = ?`
		args = append(args, string(*state))
	}
	q += ` ORDER BY submitted_at DESC`

	return r.listRequests(ctx, q, args...)
}

func (r *SQLiteRepo) ListForExecutive(ctx context.Context, executiveID int64, state *models.RequestState) ([]models.EmploymentRequest, error) {
	q := `SELECT ` + requestColumns + ` FROM employment_requests WHERE (executive_id = ? OR (state = 'pending' AND executive_id IS NULL))`
	args := []any{executiveID}
	if state != nil {
		q += ` AND state = ?`
		args = append(args, string(*state))
	}
	q += ` ORDER BY submitted_at DESC`

	return r.listRequests(ctx, q, args...)
}

func (r *SQLiteRepo) ListByState(ctx context.Context, state models.RequestState) ([]models.EmploymentRequest, error) {
	q := `SELECT ` + requestColumns + ` FROM employment_requests WHERE state = ? ORDER BY submitted_at`

	return r.listRequests(ctx, q, string(state))
}

func (r *SQLiteRepo) StatsForExecutive(ctx context.Context, executiveID int64) (*models.ExecutiveStats, error) {
	stats := &models.ExecutiveStats{
		ExecutiveID: executiveID,
		ByState:     make(map[models.RequestState]int64),
	}

	rows, err := r.conn.QueryRows(ctx, `SELECT state, COUNT(*) FROM employment_requests WHERE executive_id = ? GROUP BY state`, executiveID)
	if err != nil {
		return nil, fmt.Errorf("stats query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var state string
		var count int64
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats.ByState[models.RequestState(state)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	row := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM employment_requests WHERE state = 'pending'`)
	if err := row.Scan(&stats.GlobalPending); err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *SQLiteRepo) listRequests(ctx context.Context, q string, args ...any) ([]models.EmploymentRequest, error) {
	rows, err := r.conn.QueryRows(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EmploymentRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}

	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.EmploymentRequest, error) {
	var req models.EmploymentRequest
	var (
		executiveID                      sql.NullInt64
		workMode, tags, questions, state string
		reviewerComment, companyComment  string
		jobID                            sql.NullInt64
		reviewedAt, publishedAt          sql.NullInt64
	)
	if err := row.Scan(
		&req.ID, &req.CompanyID, &executiveID,
		&req.Content.Title, &req.Content.Description, &workMode, &req.Content.Schedule,
		&req.Content.Location, &req.Content.SalaryRange, &tags, &questions,
		&state, &reviewerComment, &companyComment, &jobID,
		&req.SubmittedAt, &reviewedAt, &publishedAt,
	); err != nil {
		return nil, err
	}

	req.Content.WorkMode = models.WorkMode(workMode)
	req.State = models.RequestState(state)
	req.ReviewerComment = reviewerComment
	req.CompanyComment = companyComment
	if executiveID.Valid {
		req.ExecutiveID = &executiveID.Int64
	}
	if jobID.Valid {
		req.JobID = &jobID.Int64
	}
	if reviewedAt.Valid {
		req.ReviewedAt = &reviewedAt.Int64
	}
	if publishedAt.Valid {
		req.PublishedAt = &publishedAt.Int64
	}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &req.Content.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if questions != "" {
		if err := json.Unmarshal([]byte(questions), &req.Content.Questions); err != nil {
			return nil, fmt.Errorf("unmarshal questions: %w", err)
		}
	}

	return &req, nil
}

func contentClauses(c *models.ContentUpdate) ([]string, []any, error) {
	var set []string
	var args []any

	if c.Title != nil {
		set = append(set, "title = ?")
		args = append(args, *c.Title)
	}
	if c.Description != nil {
		set = append(set, "description = ?")
		args = append(args, *c.Description)
	}
	if c.WorkMode != nil {
		set = append(set, "work_mode = ?")
		args = append(args, string(*c.WorkMode))
	}
	if c.Schedule != nil {
		set = append(set, "schedule = ?")
		args = append(args, *c.Schedule)
	}
	if c.Location != nil {
		set = append(set, "location = ?")
		args = append(args, *c.Location)
	}
	if c.SalaryRange != nil {
		set = append(set, "salary_range = ?")
		args = append(args, *c.SalaryRange)
	}
	if c.Tags != nil {
		b, err := json.Marshal(*c.Tags)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal tags: %w", err)
		}
		set = append(set, "tags = ?")
		args = append(args, string(b))
	}
	if c.Questions != nil {
		b, err := json.Marshal(*c.Questions)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal questions: %w", err)
		}
		set = append(set, "questions = ?")
		args = append(args, string(b))
	}

	return set, args, nil
}
