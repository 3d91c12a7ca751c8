package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const staffColumns = `id, name, phone, email, password_hash, role, is_active,
	reset_token, reset_token_expires_at, created_at, updated_at`

func scanStaff(row scanner) (Staff, error) {
	var s Staff
	err := row.Scan(&s.ID, &s.Name, &s.Phone, &s.Email, &s.PasswordHash, &s.Role,
		&s.IsActive, &s.ResetToken, &s.ResetTokenExpiresAt, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

type CreateStaffParams struct {
	Name         string
	Phone        pgtype.Text
	Email        string
	PasswordHash string
	Role         string
}

const createStaff = `
INSERT INTO staff (name, phone, email, password_hash, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + staffColumns

func (q *Queries) CreateStaff(ctx context.Context, arg CreateStaffParams) (Staff, error) {
	return scanStaff(q.db.QueryRow(ctx, createStaff,
		arg.Name, arg.Phone, arg.Email, arg.PasswordHash, arg.Role))
}

const getStaff = `SELECT ` + staffColumns + ` FROM staff WHERE id = $1 AND is_active`

func (q *Queries) GetStaff(ctx context.Context, id uuid.UUID) (Staff, error) {
	return scanStaff(q.db.QueryRow(ctx, getStaff, id))
}

const getStaffByEmail = `SELECT ` + staffColumns + ` FROM staff WHERE email = $1 AND is_active`

func (q *Queries) GetStaffByEmail(ctx context.Context, email string) (Staff, error) {
	return scanStaff(q.db.QueryRow(ctx, getStaffByEmail, email))
}

type ListStaffParams struct {
	Limit  int32
	Offset int32
}

const listStaff = `
SELECT ` + staffColumns + ` FROM staff WHERE is_active ORDER BY name LIMIT $1 OFFSET $2`

func (q *Queries) ListStaff(ctx context.Context, arg ListStaffParams) ([]Staff, error) {
	rows, err := q.db.Query(ctx, listStaff, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

type UpdateStaffParams struct {
	ID    uuid.UUID
	Name  string
	Phone pgtype.Text
	Role  string
}

const updateStaff = `
UPDATE staff SET name = $2, phone = $3, role = $4, updated_at = now()
WHERE id = $1 AND is_active
RETURNING ` + staffColumns

func (q *Queries) UpdateStaff(ctx context.Context, arg UpdateStaffParams) (Staff, error) {
	return scanStaff(q.db.QueryRow(ctx, updateStaff, arg.ID, arg.Name, arg.Phone, arg.Role))
}

const softDeleteStaff = `
UPDATE staff SET is_active = FALSE, updated_at = now()
WHERE id = $1 AND is_active
RETURNING id`

func (q *Queries) SoftDeleteStaff(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var out uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteStaff, id).Scan(&out)
	return out, err
}

type SetStaffResetTokenParams struct {
	ID        uuid.UUID
	Token     string
	ExpiresAt time.Time
}

const setStaffResetToken = `
UPDATE staff SET reset_token = $2, reset_token_expires_at = $3, updated_at = now()
WHERE id = $1 AND is_active`

func (q *Queries) SetStaffResetToken(ctx context.Context, arg SetStaffResetTokenParams) error {
	_, err := q.db.Exec(ctx, setStaffResetToken, arg.ID, arg.Token, arg.ExpiresAt)
	return err
}

const getStaffByResetToken = `
SELECT ` + staffColumns + ` FROM staff
WHERE reset_token = $1 AND reset_token_expires_at > now() AND is_active`

func (q *Queries) GetStaffByResetToken(ctx context.Context, token string) (Staff, error) {
	return scanStaff(q.db.QueryRow(ctx, getStaffByResetToken, token))
}

type UpdateStaffPasswordParams struct {
	ID           uuid.UUID
	PasswordHash string
}

const updateStaffPassword = `
UPDATE staff SET password_hash = $2, reset_token = NULL, reset_token_expires_at = NULL, updated_at = now()
WHERE id = $1 AND is_active`

func (q *Queries) UpdateStaffPassword(ctx context.Context, arg UpdateStaffPasswordParams) error {
	_, err := q.db.Exec(ctx, updateStaffPassword, arg.ID, arg.PasswordHash)
	return err
}
