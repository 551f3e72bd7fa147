package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
)

type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// PredictionRepository handles prediction history.
type PredictionRepository struct {
	db  DB
	now func() time.Time
}

// NewPredictionRepository creates a new prediction repository.
func NewPredictionRepository(db DB) *PredictionRepository {
	return &PredictionRepository{db: db, now: time.Now}
}

const insertPrediction = `
	INSERT INTO predictions (id, batch_id, model, artifact_version, name, price, cached, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// Create stores a prediction, assigning an ID and timestamp when unset.
func (r *PredictionRepository) Create(ctx context.Context, p *Prediction) error {
	return r.insert(ctx, r.db, p)
}

// CreateMany stores predictions in one transaction when the connection
// supports it.
func (r *PredictionRepository) CreateMany(ctx context.Context, preds []*Prediction) error {
	if len(preds) == 0 {
		return nil
	}

	b, ok := r.db.(txBeginner)
	if !ok {
		for _, p := range preds {
			if err := r.insert(ctx, r.db, p); err != nil {
				return err
			}
		}
		return nil
	}

	tx, err := b.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for _, p := range preds {
		if err := r.insert(ctx, tx, p); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit predictions: %w", err)
	}
	return nil
}

func (r *PredictionRepository) insert(ctx context.Context, db DB, p *Prediction) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now().UTC().Truncate(time.Microsecond)
	}

	_, err := db.ExecContext(ctx, insertPrediction,
		p.ID, p.BatchID, p.Model, p.ArtifactVersion, p.Name, p.Price, p.Cached, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

// GetByID retrieves a prediction by ID.
func (r *PredictionRepository) GetByID(ctx context.Context, id uuid.UUID) (*Prediction, error) {
	query := `
		SELECT id, batch_id, model, artifact_version, name, price, cached, created_at
		FROM predictions WHERE id = $1
	`
	p, err := scanPrediction(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get prediction: %w", err)
	}
	return p, nil
}

// List returns the most recent predictions first.
func (r *PredictionRepository) List(ctx context.Context, filter ListFilter) ([]*Prediction, error) {
	var (
		where []string
		args  []any
	)
	if filter.Model != "" {
		args = append(args, filter.Model)
		where = append(where, fmt.Sprintf("model = $%d", len(args)))
	}
	if filter.BatchID.Valid {
		args = append(args, filter.BatchID.UUID)
		where = append(where, fmt.Sprintf("batch_id = $%d", len(args)))
	}
	args = append(args, filter.limit())

	query := `
		SELECT id, batch_id, model, artifact_version, name, price, cached, created_at
		FROM predictions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	defer rows.Close()

	var preds []*Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		preds = append(preds, p)
	}
	return preds, rows.Err()
}

// Count returns how many predictions a model has served; an empty model
// counts all of them.
func (r *PredictionRepository) Count(ctx context.Context, model string) (int64, error) {
	var n int64
	var err error
	if model == "" {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM predictions`).Scan(&n)
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM predictions WHERE model = $1`, model).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count predictions: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrediction(s scanner) (*Prediction, error) {
	p := &Prediction{}
	err := s.Scan(
		&p.ID, &p.BatchID, &p.Model, &p.ArtifactVersion, &p.Name, &p.Price, &p.Cached, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}
