package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/prelevements/internal/core/domain"
)

const pointColumns = `
	p.id, COALESCE(p.nom, ''), COALESCE(p.autres_noms, ''), COALESCE(p.type_milieu, ''), p.usages,
	ST_Y(p.location::geometry) AS lat,
	ST_X(p.location::geometry) AS lon,
	COALESCE(p.statut, ''), COALESCE(p.heure_debut, ''), COALESCE(p.heure_fin, ''),
	p.commune_nom, p.commune_code, p.updated_at,
	ARRAY(SELECT pp.preleveur_id FROM point_preleveurs pp WHERE pp.point_id = p.id ORDER BY pp.preleveur_id)`

// PointRepo implements ports.PointRepository with pgx.
type PointRepo struct {
	db *DB
}

// NewPointRepo creates a new PointRepo.
func NewPointRepo(db *DB) *PointRepo {
	return &PointRepo{db: db}
}

// UpsertBatch inserts or updates many points and replaces their preleveur
// links, using pgx.Batch.
func (r *PointRepo) UpsertBatch(ctx context.Context, points []domain.PointPrelevement) error {
	if len(points) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range points {
		var lat, lon *float64
		if p.Location != nil {
			lat, lon = &p.Location.Lat, &p.Location.Lon
		}
		var communeNom, communeCode *string
		if p.Commune != nil {
			communeNom, communeCode = &p.Commune.Nom, &p.Commune.Code
		}
		usages := p.Usages
		if usages == nil {
			usages = []string{}
		}
		batch.Queue(`
			INSERT INTO points_prelevement (id, nom, autres_noms, type_milieu, usages, location,
			                                statut, heure_debut, heure_fin, commune_nom, commune_code, updated_at)
			VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5,
			        CASE WHEN $6::float8 IS NULL OR $7::float8 IS NULL THEN NULL
			             ELSE ST_SetSRID(ST_MakePoint($6, $7), 4326)::geography END,
			        NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), $11, $12, now())
			ON CONFLICT (id) DO UPDATE
			SET nom = EXCLUDED.nom, autres_noms = EXCLUDED.autres_noms,
			    type_milieu = EXCLUDED.type_milieu, usages = EXCLUDED.usages,
			    location = EXCLUDED.location, statut = EXCLUDED.statut,
			    heure_debut = EXCLUDED.heure_debut, heure_fin = EXCLUDED.heure_fin,
			    commune_nom = COALESCE(EXCLUDED.commune_nom, points_prelevement.commune_nom),
			    commune_code = COALESCE(EXCLUDED.commune_code, points_prelevement.commune_code),
			    updated_at = now()
		`, p.ID, p.Nom, p.AutresNoms, p.TypeMilieu, usages, lon, lat,
			p.Statut, p.HeureDebut, p.HeureFin, communeNom, communeCode)

		batch.Queue(`DELETE FROM point_preleveurs WHERE point_id = $1`, p.ID)
		if len(p.PreleveurIDs) > 0 {
			batch.Queue(`
				INSERT INTO point_preleveurs (point_id, preleveur_id)
				SELECT $1, unnest($2::text[])
				ON CONFLICT DO NOTHING
			`, p.ID, p.PreleveurIDs)
		}
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// DeleteExcept removes the points absent from keep. Their preleveur links
// go with them (ON DELETE CASCADE).
func (r *PointRepo) DeleteExcept(ctx context.Context, keep []string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM points_prelevement WHERE NOT (id = ANY($1::text[]))`, keep)
	if err != nil {
		return 0, fmt.Errorf("delete stale points: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetByID returns a point by id, or domain.ErrNotFound.
func (r *PointRepo) GetByID(ctx context.Context, id string) (*domain.PointPrelevement, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+pointColumns+` FROM points_prelevement p WHERE p.id = $1`, id)
	p, err := scanPoint(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns every point, ordered by id.
func (r *PointRepo) List(ctx context.Context) ([]domain.PointPrelevement, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+pointColumns+` FROM points_prelevement p ORDER BY p.id`)
	if err != nil {
		return nil, err
	}
	return collectPoints(rows)
}

// ListByPreleveur returns the points linked to a preleveur.
func (r *PointRepo) ListByPreleveur(ctx context.Context, preleveurID string) ([]domain.PointPrelevement, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+pointColumns+`
		FROM points_prelevement p
		JOIN point_preleveurs l ON l.point_id = p.id
		WHERE l.preleveur_id = $1
		ORDER BY p.id
	`, preleveurID)
	if err != nil {
		return nil, err
	}
	return collectPoints(rows)
}

// FindNearby returns points within radiusMeters using PostGIS ST_DWithin,
// nearest first.
func (r *PointRepo) FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.PointPrelevement, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+pointColumns+`,
		       ST_Distance(p.location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) AS distance
		FROM points_prelevement p
		WHERE p.location IS NOT NULL
		  AND ST_DWithin(p.location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY distance
		LIMIT $4
	`, lon, lat, radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []domain.PointPrelevement{}
	for rows.Next() {
		var dist float64
		p, err := scanPoint(rows, &dist)
		if err != nil {
			return nil, err
		}
		p.Distance = &dist
		points = append(points, p)
	}
	return points, rows.Err()
}

func collectPoints(rows pgx.Rows) ([]domain.PointPrelevement, error) {
	defer rows.Close()
	points := []domain.PointPrelevement{}
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// scanPoint reads the pointColumns projection; extra receives any trailing
// columns.
func scanPoint(row pgx.Row, extra ...any) (domain.PointPrelevement, error) {
	var (
		p                       domain.PointPrelevement
		lat, lon                *float64
		communeNom, communeCode *string
	)
	dest := append([]any{
		&p.ID, &p.Nom, &p.AutresNoms, &p.TypeMilieu, &p.Usages,
		&lat, &lon,
		&p.Statut, &p.HeureDebut, &p.HeureFin,
		&communeNom, &communeCode, &p.UpdatedAt,
		&p.PreleveurIDs,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return p, err
	}
	if lat != nil && lon != nil {
		p.Location = &domain.GeoPoint{Lat: *lat, Lon: *lon}
	}
	if communeNom != nil || communeCode != nil {
		p.Commune = &domain.Commune{}
		if communeNom != nil {
			p.Commune.Nom = *communeNom
		}
		if communeCode != nil {
			p.Commune.Code = *communeCode
		}
	}
	return p, nil
}
