package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/prelevements/internal/core/domain"
	"github.com/samirrijal/prelevements/internal/core/usecases"
)

func TestPreleveurService_List_DisplayNames(t *testing.T) {
	repo := &mockPreleveurRepo{
		listFn: func(ctx context.Context) ([]domain.Preleveur, error) {
			return []domain.Preleveur{
				{ID: "1", Sigle: "CISE", RaisonSociale: "CISE Réunion"},
				{ID: "2", Civilite: "M.", Nom: "Payet", Prenom: "Jean"},
				{ID: "3", Email: "x@example.org"},
			}, nil
		},
	}
	svc := usecases.NewPreleveurService(repo, &mockPointRepo{})

	views, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("expected 3 preleveurs, got %d", len(views))
	}
	if views[0].DisplayName == nil || *views[0].DisplayName != "CISE" {
		t.Errorf("expected sigle as display name, got %v", views[0].DisplayName)
	}
	if views[1].DisplayName == nil || *views[1].DisplayName != "M. Payet Jean" {
		t.Errorf("expected person name, got %v", views[1].DisplayName)
	}
	if views[2].DisplayName != nil {
		t.Errorf("expected no display name, got %q", *views[2].DisplayName)
	}
}

func TestPreleveurService_Points(t *testing.T) {
	repo := &mockPreleveurRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Preleveur, error) {
			if id != "7" {
				return nil, domain.ErrNotFound
			}
			return &domain.Preleveur{ID: id}, nil
		},
	}
	points := &mockPointRepo{
		listByPreleveurFn: func(ctx context.Context, id string) ([]domain.PointPrelevement, error) {
			return []domain.PointPrelevement{{ID: "b", Nom: "Zèbre"}, {ID: "a", Nom: "Anse"}}, nil
		},
	}
	svc := usecases.NewPreleveurService(repo, points)

	got, err := svc.Points(context.Background(), "7")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "a" {
		t.Errorf("expected points sorted by name, got %v", got)
	}

	if _, err := svc.Points(context.Background(), "8"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown preleveur, got %v", err)
	}
}
