package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sefa-b/game-economy/internal/cache"
	"github.com/sefa-b/game-economy/internal/domain"
)

// SubjectRepository stores subjects keyed by their UUID.
type SubjectRepository struct {
	*CachedRepository[uuid.UUID, domain.Subject]
}

// NewSubjectRepository creates a subject repository.
func NewSubjectRepository(db *DB, c cache.Cache[uuid.UUID, domain.Subject], policy WritePolicy) *SubjectRepository {
	s := subjectStore{}
	return &SubjectRepository{
		CachedRepository: NewCachedRepository[uuid.UUID, domain.Subject]("subjects", db, c, s.load, s, policy),
	}
}

type subjectStore struct{}

func (subjectStore) Key(s domain.Subject) uuid.UUID  { return s.ID() }
func (subjectStore) KeyString(id uuid.UUID) string   { return id.String() }
func (subjectStore) Validate(s domain.Subject) error { return s.Validate() }

func (subjectStore) Normalize(id uuid.UUID) (uuid.UUID, error) {
	if id == uuid.Nil {
		return uuid.Nil, domain.Invalid("subject_id", "must be set")
	}
	return id, nil
}

func (subjectStore) load(ctx context.Context, tx Tx, id uuid.UUID) (domain.Subject, error) {
	var nickname string
	err := tx.QueryRowContext(ctx, `SELECT nickname FROM subjects WHERE subject_id = $1`, id.String()).Scan(&nickname)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Subject{}, domain.NotFound("subject", id)
	}
	if err != nil {
		return domain.Subject{}, fmt.Errorf("failed to get subject: %w", err)
	}
	return domain.RestoreSubject(id, nickname), nil
}

func (subjectStore) LoadAll(ctx context.Context, tx Tx) ([]domain.Subject, error) {
	rows, err := tx.QueryContext(ctx, `SELECT subject_id, nickname FROM subjects ORDER BY subject_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	defer rows.Close()

	var out []domain.Subject
	for rows.Next() {
		var (
			id       uuid.UUID
			nickname string
		)
		if err := rows.Scan(&id, &nickname); err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		out = append(out, domain.RestoreSubject(id, nickname))
	}
	return out, rows.Err()
}

func (subjectStore) Upsert(ctx context.Context, tx Tx, s domain.Subject) error {
	query := `
		INSERT INTO subjects (subject_id, nickname)
		VALUES ($1, $2)
		ON CONFLICT (subject_id)
		DO UPDATE SET nickname = excluded.nickname`

	if _, err := tx.ExecContext(ctx, query, s.ID().String(), s.Nickname().OrElse("")); err != nil {
		return fmt.Errorf("failed to upsert subject: %w", err)
	}
	return nil
}

func (subjectStore) Remove(ctx context.Context, tx Tx, id uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM subjects WHERE subject_id = $1`, id.String()); err != nil {
		return fmt.Errorf("failed to delete subject: %w", err)
	}
	return nil
}

func (subjectStore) RemoveAll(ctx context.Context, tx Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM subjects`); err != nil {
		return fmt.Errorf("failed to delete subjects: %w", err)
	}
	return nil
}
