package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/prelevements/internal/core/domain"
)

const preleveurColumns = `
	r.id, COALESCE(r.sigle, ''), COALESCE(r.raison_sociale, ''), COALESCE(r.civilite, ''),
	COALESCE(r.nom, ''), COALESCE(r.prenom, ''), COALESCE(r.email, ''), COALESCE(r.telephone, ''),
	r.updated_at,
	ARRAY(SELECT pp.point_id FROM point_preleveurs pp WHERE pp.preleveur_id = r.id ORDER BY pp.point_id)`

// PreleveurRepo implements ports.PreleveurRepository with pgx.
type PreleveurRepo struct {
	db *DB
}

// NewPreleveurRepo creates a new PreleveurRepo.
func NewPreleveurRepo(db *DB) *PreleveurRepo {
	return &PreleveurRepo{db: db}
}

// UpsertBatch inserts or updates many preleveurs using pgx.Batch. Point
// links are owned by the points and left untouched.
func (r *PreleveurRepo) UpsertBatch(ctx context.Context, preleveurs []domain.Preleveur) error {
	if len(preleveurs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range preleveurs {
		batch.Queue(`
			INSERT INTO preleveurs (id, sigle, raison_sociale, civilite, nom, prenom, email, telephone, updated_at)
			VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''),
			        NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), now())
			ON CONFLICT (id) DO UPDATE
			SET sigle = EXCLUDED.sigle, raison_sociale = EXCLUDED.raison_sociale,
			    civilite = EXCLUDED.civilite, nom = EXCLUDED.nom, prenom = EXCLUDED.prenom,
			    email = EXCLUDED.email, telephone = EXCLUDED.telephone, updated_at = now()
		`, p.ID, p.Sigle, p.RaisonSociale, p.Civilite, p.Nom, p.Prenom, p.Email, p.Telephone)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range preleveurs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// DeleteExcept removes the preleveurs absent from keep.
func (r *PreleveurRepo) DeleteExcept(ctx context.Context, keep []string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM preleveurs WHERE NOT (id = ANY($1::text[]))`, keep)
	if err != nil {
		return 0, fmt.Errorf("delete stale preleveurs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetByID returns a preleveur by id, or domain.ErrNotFound.
func (r *PreleveurRepo) GetByID(ctx context.Context, id string) (*domain.Preleveur, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+preleveurColumns+` FROM preleveurs r WHERE r.id = $1`, id)
	p, err := scanPreleveur(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns every preleveur, ordered by id.
func (r *PreleveurRepo) List(ctx context.Context) ([]domain.Preleveur, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+preleveurColumns+` FROM preleveurs r ORDER BY r.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	preleveurs := []domain.Preleveur{}
	for rows.Next() {
		p, err := scanPreleveur(rows)
		if err != nil {
			return nil, err
		}
		preleveurs = append(preleveurs, p)
	}
	return preleveurs, rows.Err()
}

func scanPreleveur(row pgx.Row) (domain.Preleveur, error) {
	var p domain.Preleveur
	err := row.Scan(
		&p.ID, &p.Sigle, &p.RaisonSociale, &p.Civilite,
		&p.Nom, &p.Prenom, &p.Email, &p.Telephone,
		&p.UpdatedAt, &p.PointIDs,
	)
	return p, err
}
