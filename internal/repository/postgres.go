// Package repository persists batches, labels and barcode artifacts in
// PostgreSQL.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/LabelDrop/internal/model"
	"github.com/dharsanguruparan/LabelDrop/internal/storage"
)

const foreignKeyViolation = "23503"

const labelColumns = `id, batch_id, position, product_name, mrp, quality, size, net_quantity,
	product_code, design_color, mfg_month, mfg_year, gtin, manufacturer, image_path, created_at`

const artifactColumns = `id, batch_id, filename, code, path, created_at`

// Postgres implements storage.Repository on a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Postgres)(nil)

// NewPostgres constructs a repository.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// CreateBatch inserts a batch.
func (r *Postgres) CreateBatch(ctx context.Context, batch *model.Batch) error {
	now := time.Now().UTC()
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now
	}
	batch.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO batches (id, dataset_name, dataset_path, processed, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, batch.ID, batch.DatasetName, batch.DatasetPath, batch.Processed, batch.CreatedAt, batch.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// GetBatch returns a batch by id.
func (r *Postgres) GetBatch(ctx context.Context, id string) (*model.Batch, error) {
	var b model.Batch
	err := r.pool.QueryRow(ctx, `
		SELECT id, dataset_name, dataset_path, processed, created_at, updated_at
		FROM batches WHERE id=$1
	`, id).Scan(&b.ID, &b.DatasetName, &b.DatasetPath, &b.Processed, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, notFound("select batch", err)
	}
	return &b, nil
}

// ListBatches returns batches newest first.
func (r *Postgres) ListBatches(ctx context.Context) ([]model.Batch, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, dataset_name, dataset_path, processed, created_at, updated_at
		FROM batches ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Batch, error) {
		var b model.Batch
		err := row.Scan(&b.ID, &b.DatasetName, &b.DatasetPath, &b.Processed, &b.CreatedAt, &b.UpdatedAt)
		return b, err
	})
}

// MarkProcessed flags a batch as processed.
func (r *Postgres) MarkProcessed(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE batches SET processed=TRUE, updated_at=$1 WHERE id=$2`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteBatch removes a batch; labels and artifacts follow through the
// foreign keys. The blob paths that belonged to the batch are returned sorted.
func (r *Postgres) DeleteBatch(ctx context.Context, id string) ([]string, error) {
	var paths []string
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT image_path FROM labels WHERE batch_id=$1 AND image_path <> ''
			UNION ALL
			SELECT path FROM barcode_artifacts WHERE batch_id=$1
		`, id)
		if err != nil {
			return fmt.Errorf("collect blob paths: %w", err)
		}
		paths, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("collect blob paths: %w", err)
		}
		var dataset string
		err = tx.QueryRow(ctx, `DELETE FROM batches WHERE id=$1 RETURNING dataset_path`, id).Scan(&dataset)
		if err != nil {
			return notFound("delete batch", err)
		}
		if dataset != "" {
			paths = append(paths, dataset)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// AddArtifact stores an artifact, replacing and returning any artifact of the
// same batch with the same code.
func (r *Postgres) AddArtifact(ctx context.Context, a *model.BarcodeArtifact) (*model.BarcodeArtifact, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	var replaced *model.BarcodeArtifact
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `DELETE FROM barcode_artifacts WHERE batch_id=$1 AND code=$2 RETURNING `+artifactColumns,
			a.BatchID, a.Code)
		if err != nil {
			return fmt.Errorf("replace artifact: %w", err)
		}
		old, err := pgx.CollectRows(rows, scanArtifact)
		if err != nil {
			return fmt.Errorf("replace artifact: %w", err)
		}
		if len(old) > 0 {
			replaced = &old[0]
		}
		_, err = tx.Exec(ctx, `INSERT INTO barcode_artifacts (`+artifactColumns+`) VALUES ($1,$2,$3,$4,$5,$6)`,
			a.ID, a.BatchID, a.Filename, a.Code, a.Path, a.CreatedAt)
		if err != nil {
			return notFound("insert artifact", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return replaced, nil
}

// ListArtifacts returns a batch's artifacts oldest first.
func (r *Postgres) ListArtifacts(ctx context.Context, batchID string) ([]model.BarcodeArtifact, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+artifactColumns+` FROM barcode_artifacts WHERE batch_id=$1 ORDER BY created_at, id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return pgx.CollectRows(rows, scanArtifact)
}

// CreateLabel inserts a label record.
func (r *Postgres) CreateLabel(ctx context.Context, l *model.LabelRecord) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO labels (`+labelColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		l.ID, l.BatchID, l.Position, l.ProductName, l.MRP, l.Quality, l.Size, l.NetQuantity,
		l.ProductCode, l.DesignColor, l.MfgMonth, l.MfgYear, l.GTIN, l.Manufacturer, l.ImagePath, l.CreatedAt)
	if err != nil {
		return notFound("insert label", err)
	}
	return nil
}

// GetLabel returns a label of a batch.
func (r *Postgres) GetLabel(ctx context.Context, batchID, id string) (*model.LabelRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+labelColumns+` FROM labels WHERE batch_id=$1 AND id=$2`, batchID, id)
	if err != nil {
		return nil, fmt.Errorf("select label: %w", err)
	}
	l, err := pgx.CollectExactlyOneRow(rows, scanLabel)
	if err != nil {
		return nil, notFound("select label", err)
	}
	return &l, nil
}

// UpdateLabelImage records where a label's image is stored.
func (r *Postgres) UpdateLabelImage(ctx context.Context, id, imagePath string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE labels SET image_path=$1 WHERE id=$2`, imagePath, id)
	if err != nil {
		return fmt.Errorf("update label: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListLabels returns a batch's labels ordered by position.
func (r *Postgres) ListLabels(ctx context.Context, batchID string) ([]model.LabelRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+labelColumns+` FROM labels WHERE batch_id=$1 ORDER BY position, id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	return pgx.CollectRows(rows, scanLabel)
}

// DeleteLabels removes every label of a batch and returns them.
func (r *Postgres) DeleteLabels(ctx context.Context, batchID string) ([]model.LabelRecord, error) {
	rows, err := r.pool.Query(ctx, `DELETE FROM labels WHERE batch_id=$1 RETURNING `+labelColumns, batchID)
	if err != nil {
		return nil, fmt.Errorf("delete labels: %w", err)
	}
	labels, err := pgx.CollectRows(rows, scanLabel)
	if err != nil {
		return nil, fmt.Errorf("delete labels: %w", err)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].Position < labels[j].Position })
	return labels, nil
}

func scanLabel(row pgx.CollectableRow) (model.LabelRecord, error) {
	var l model.LabelRecord
	err := row.Scan(&l.ID, &l.BatchID, &l.Position, &l.ProductName, &l.MRP, &l.Quality, &l.Size, &l.NetQuantity,
		&l.ProductCode, &l.DesignColor, &l.MfgMonth, &l.MfgYear, &l.GTIN, &l.Manufacturer, &l.ImagePath, &l.CreatedAt)
	return l, err
}

func scanArtifact(row pgx.CollectableRow) (model.BarcodeArtifact, error) {
	var a model.BarcodeArtifact
	err := row.Scan(&a.ID, &a.BatchID, &a.Filename, &a.Code, &a.Path, &a.CreatedAt)
	return a, err
}

// notFound maps missing rows and dangling batch references to
// storage.ErrNotFound.
func notFound(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
