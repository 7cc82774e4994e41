package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/prelevements/internal/core/domain"
	"github.com/samirrijal/prelevements/internal/core/ports"
	"github.com/samirrijal/prelevements/internal/pkg/metrics"
	"github.com/samirrijal/prelevements/internal/pkg/normalize"
)

const (
	importChunkSize   = 500
	importParallelism = 4
)

// ImportResult counts the outcome of one import run.
type ImportResult struct {
	Stored  int `json:"stored"`
	Skipped int `json:"skipped"`
	Deleted int `json:"deleted"`
}

// ImportService copies records from the backend into the local store.
type ImportService struct {
	source     ports.BackendSource
	points     ports.PointRepository
	preleveurs ports.PreleveurRepository
}

// NewImportService creates a new ImportService.
func NewImportService(source ports.BackendSource, points ports.PointRepository, preleveurs ports.PreleveurRepository) *ImportService {
	return &ImportService{source: source, points: points, preleveurs: preleveurs}
}

// ImportPoints fetches, normalises and upserts every point, then deletes
// the points the backend no longer returns. Records that cannot be
// normalised are skipped and counted. An empty fetch deletes nothing.
func (s *ImportService) ImportPoints(ctx context.Context) (ImportResult, error) {
	records, err := s.source.FetchPoints(ctx)
	if err != nil {
		return ImportResult{}, fmt.Errorf("fetch points: %w", err)
	}

	var res ImportResult
	points := make([]domain.PointPrelevement, 0, len(records))
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		p, ok := PointFromRecord(rec)
		if !ok {
			res.Skipped++
			continue
		}
		points = append(points, p)
		ids = append(ids, p.ID)
	}

	if err := upsertChunks(ctx, points, s.points.UpsertBatch); err != nil {
		return res, fmt.Errorf("store points: %w", err)
	}
	res.Stored = len(points)
	if len(ids) > 0 {
		n, err := s.points.DeleteExcept(ctx, ids)
		if err != nil {
			return res, fmt.Errorf("prune points: %w", err)
		}
		res.Deleted = int(n)
	}
	metrics.SyncRecords.WithLabelValues("point", "stored").Add(float64(res.Stored))
	metrics.SyncRecords.WithLabelValues("point", "skipped").Add(float64(res.Skipped))
	metrics.SyncRecords.WithLabelValues("point", "deleted").Add(float64(res.Deleted))
	slog.Info("points imported", "stored", res.Stored, "skipped", res.Skipped, "deleted", res.Deleted)
	return res, nil
}

// ImportPreleveurs fetches, normalises and upserts every preleveur, then
// deletes the ones the backend no longer returns.
func (s *ImportService) ImportPreleveurs(ctx context.Context) (ImportResult, error) {
	records, err := s.source.FetchPreleveurs(ctx)
	if err != nil {
		return ImportResult{}, fmt.Errorf("fetch preleveurs: %w", err)
	}

	var res ImportResult
	preleveurs := make([]domain.Preleveur, 0, len(records))
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		p, ok := PreleveurFromRecord(rec)
		if !ok {
			res.Skipped++
			continue
		}
		preleveurs = append(preleveurs, p)
		ids = append(ids, p.ID)
	}

	if err := upsertChunks(ctx, preleveurs, s.preleveurs.UpsertBatch); err != nil {
		return res, fmt.Errorf("store preleveurs: %w", err)
	}
	res.Stored = len(preleveurs)
	if len(ids) > 0 {
		n, err := s.preleveurs.DeleteExcept(ctx, ids)
		if err != nil {
			return res, fmt.Errorf("prune preleveurs: %w", err)
		}
		res.Deleted = int(n)
	}
	metrics.SyncRecords.WithLabelValues("preleveur", "stored").Add(float64(res.Stored))
	metrics.SyncRecords.WithLabelValues("preleveur", "skipped").Add(float64(res.Skipped))
	metrics.SyncRecords.WithLabelValues("preleveur", "deleted").Add(float64(res.Deleted))
	slog.Info("preleveurs imported", "stored", res.Stored, "skipped", res.Skipped, "deleted", res.Deleted)
	return res, nil
}

// upsertChunks stores items in fixed-size batches, a few at a time.
func upsertChunks[T any](ctx context.Context, items []T, upsert func(context.Context, []T) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(importParallelism)
	for start := 0; start < len(items); start += importChunkSize {
		chunk := items[start:min(start+importChunkSize, len(items))]
		g.Go(func() error { return upsert(ctx, chunk) })
	}
	return g.Wait()
}

// PointFromRecord converts a raw backend record. It reports false when the
// record has no usable id.
func PointFromRecord(raw map[string]any) (domain.PointPrelevement, bool) {
	rec := normalize.EmptyStringToNull(raw)

	id, ok := domain.NormalizePointID(first(rec, "id_point", "id"))
	if !ok {
		return domain.PointPrelevement{}, false
	}
	p := domain.PointPrelevement{
		ID:         id,
		Nom:        str(first(rec, "nom", "name")),
		AutresNoms: str(rec["autresNoms"]),
		TypeMilieu: str(rec["typeMilieu"]),
		Usages:     strList(rec["usages"]),
		Statut:     str(rec["statut"]),
		Location:   location(rec),
	}
	if t, ok := normalize.NormalizeTime(rec["heureDebut"]); ok {
		p.HeureDebut = t
	}
	if t, ok := normalize.NormalizeTime(rec["heureFin"]); ok {
		p.HeureFin = t
	}
	if c, ok := rec["commune"].(map[string]any); ok {
		commune := domain.Commune{Nom: str(c["nom"]), Code: str(c["code"])}
		if commune.Nom != "" || commune.Code != "" {
			p.Commune = &commune
		}
	}
	if ids, ok := rec["preleveurs"].([]any); ok {
		for _, raw := range ids {
			if m, ok := raw.(map[string]any); ok {
				raw = first(m, "id_preleveur", "id")
			}
			if pid, ok := domain.NormalizePointID(raw); ok {
				p.PreleveurIDs = append(p.PreleveurIDs, pid)
			}
		}
	}
	return p, true
}

// PreleveurFromRecord converts a raw backend record. It reports false when
// the record has no usable id.
func PreleveurFromRecord(raw map[string]any) (domain.Preleveur, bool) {
	rec := normalize.EmptyStringToNull(raw)

	id, ok := domain.NormalizePointID(first(rec, "id_preleveur", "id"))
	if !ok {
		return domain.Preleveur{}, false
	}
	return domain.Preleveur{
		ID:            id,
		Sigle:         str(rec["sigle"]),
		RaisonSociale: str(rec["raison_sociale"]),
		Civilite:      str(rec["civilite"]),
		Nom:           str(rec["nom"]),
		Prenom:        str(rec["prenom"]),
		Email:         str(rec["email"]),
		Telephone:     str(rec["telephone"]),
	}, true
}

// location reads a GeoJSON point under "coordinates", or flat
// latitude/longitude fields. Invalid coordinates yield nil.
func location(rec map[string]any) *domain.GeoPoint {
	var latV, lonV any
	switch c := rec["coordinates"].(type) {
	case map[string]any:
		if pair, ok := c["coordinates"].([]any); ok && len(pair) == 2 {
			lonV, latV = pair[0], pair[1]
		}
	case []any:
		if len(c) == 2 {
			lonV, latV = c[0], c[1]
		}
	default:
		latV, lonV = rec["latitude"], rec["longitude"]
	}

	lat, ok := normalize.CoerceNumericValue(latV)
	if !ok {
		return nil
	}
	lon, ok := normalize.CoerceNumericValue(lonV)
	if !ok {
		return nil
	}
	g := domain.GeoPoint{Lat: lat, Lon: lon}
	if !g.Valid() {
		return nil
	}
	return &g
}

func first(rec map[string]any, keys ...string) any {
	for _, k := range keys {
		if v := rec[k]; v != nil {
			return v
		}
	}
	return nil
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func strList(v any) []string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := str(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
