package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/prelevements/internal/adapters/http"
	"github.com/samirrijal/prelevements/internal/adapters/geocoding"
	"github.com/samirrijal/prelevements/internal/core/domain"
	"github.com/samirrijal/prelevements/internal/core/selection"
	"github.com/samirrijal/prelevements/internal/core/usecases"
)

// ---- Mock repositories ----

type mockPointRepo struct {
	listFn            func(ctx context.Context) ([]domain.PointPrelevement, error)
	getByIDFn         func(ctx context.Context, id string) (*domain.PointPrelevement, error)
	findNearbyFn      func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.PointPrelevement, error)
	listByPreleveurFn func(ctx context.Context, id string) ([]domain.PointPrelevement, error)
}

func (m *mockPointRepo) UpsertBatch(ctx context.Context, p []domain.PointPrelevement) error {
	return nil
}
func (m *mockPointRepo) GetByID(ctx context.Context, id string) (*domain.PointPrelevement, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}
func (m *mockPointRepo) List(ctx context.Context) ([]domain.PointPrelevement, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return fixturePoints(), nil
}
func (m *mockPointRepo) FindNearby(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.PointPrelevement, error) {
	if m.findNearbyFn != nil {
		return m.findNearbyFn(ctx, lat, lon, radius, limit)
	}
	return nil, nil
}
func (m *mockPointRepo) ListByPreleveur(ctx context.Context, id string) ([]domain.PointPrelevement, error) {
	if m.listByPreleveurFn != nil {
		return m.listByPreleveurFn(ctx, id)
	}
	return nil, nil
}
func (m *mockPointRepo) DeleteExcept(ctx context.Context, keep []string) (int64, error) {
	return 0, nil
}

type mockPreleveurRepo struct {
	listFn    func(ctx context.Context) ([]domain.Preleveur, error)
	getByIDFn func(ctx context.Context, id string) (*domain.Preleveur, error)
}

func (m *mockPreleveurRepo) UpsertBatch(ctx context.Context, p []domain.Preleveur) error {
	return nil
}
func (m *mockPreleveurRepo) GetByID(ctx context.Context, id string) (*domain.Preleveur, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}
func (m *mockPreleveurRepo) List(ctx context.Context) ([]domain.Preleveur, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}
func (m *mockPreleveurRepo) DeleteExcept(ctx context.Context, keep []string) (int64, error) {
	return 0, nil
}

type mockGeocoder struct {
	reverseFn func(ctx context.Context, lat, lon float64) (*domain.Commune, error)
}

func (m *mockGeocoder) Reverse(ctx context.Context, lat, lon float64) (*domain.Commune, error) {
	if m.reverseFn != nil {
		return m.reverseFn(ctx, lat, lon)
	}
	return nil, geocoding.ErrCommuneNotFound
}

func fixturePoints() []domain.PointPrelevement {
	return []domain.PointPrelevement{
		{ID: "1", Nom: "Source Édouard", TypeMilieu: domain.MilieuSouterrain, Usages: []string{domain.UsageEauPotable},
			Location: &domain.GeoPoint{Lat: -21.0, Lon: 55.3}},
		{ID: "2", Nom: "Bras de la Plaine", TypeMilieu: domain.MilieuSurface, Usages: []string{domain.UsageAgriculture},
			Location: &domain.GeoPoint{Lat: -21.001, Lon: 55.3}},
		{ID: "3", TypeMilieu: domain.MilieuSurface},
	}
}

// ---- Test helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	points := usecases.NewPointService(&mockPointRepo{}, nil)
	d := &handler.Dependencies{
		Points:     points,
		Preleveurs: usecases.NewPreleveurService(&mockPreleveurRepo{}, &mockPointRepo{}),
		Stats:      usecases.NewStatsService(points),
		Communes:   &mockGeocoder{},
	}
	for _, o := range opts {
		o(d)
	}
	if d.Sessions == nil {
		d.Sessions = selection.NewRegistry(d.Points, nil, nil, selection.RegistryConfig{})
	}
	return d
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

// ---- Point handler tests ----

func TestListPoints_Success(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/points", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.PointSummary `json:"data"`
		Pagination handler.Pagination    `json:"pagination"`
	}
	if err := json.Unmarshal(readBody(t, resp.Body), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Pagination.Total != 3 {
		t.Fatalf("expected 3 points, got %d", result.Pagination.Total)
	}
	// sorted by display name; unnamed points come first
	if result.Data[0].Label != domain.DefaultPointLabel || result.Data[1].ID != "2" {
		t.Errorf("unexpected order %+v", result.Data)
	}
}

func TestListPoints_Filters(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/points?name=edouard&usages=Industrie,Eau%20potable", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data []domain.PointSummary `json:"data"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if len(result.Data) != 1 || result.Data[0].ID != "1" {
		t.Errorf("expected point 1 only, got %+v", result.Data)
	}
}

func TestListPoints_NameTooLong(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/points?name="+strings.Repeat("a", 201), nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestListPoints_LinkHeader(t *testing.T) {
	points := make([]domain.PointPrelevement, 10)
	for i := range points {
		points[i] = domain.PointPrelevement{ID: fmt.Sprint(i), Nom: fmt.Sprintf("Point %d", i)}
	}
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Points = usecases.NewPointService(&mockPointRepo{
			listFn: func(ctx context.Context) ([]domain.PointPrelevement, error) { return points, nil },
		}, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/points?offset=0&limit=3", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	link := resp.Header.Get("Link")
	for _, rel := range []string{`rel="first"`, `rel="next"`, `rel="last"`} {
		if !strings.Contains(link, rel) {
			t.Errorf("expected %s in Link header, got %s", rel, link)
		}
	}
}

func TestGetPoint_Success(t *testing.T) {
	dist := 1234.5
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Points = usecases.NewPointService(&mockPointRepo{
			getByIDFn: func(ctx context.Context, id string) (*domain.PointPrelevement, error) {
				return &domain.PointPrelevement{ID: id, Nom: "Forage", TypeMilieu: domain.MilieuSouterrain,
					Usages: []string{domain.UsageEauPotable}, Distance: &dist}, nil
			},
		}, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/points/42", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var p handler.PointDetail
	json.NewDecoder(resp.Body).Decode(&p)
	if p.ID != "42" || p.Label != "Forage" {
		t.Errorf("unexpected point %+v", p)
	}
	if p.Color == "" || len(p.UsageChips) != 1 || p.UsageChips[0].Background == "" {
		t.Errorf("expected colours, got %+v", p)
	}
	if !strings.HasSuffix(p.DistanceLabel, " m") {
		t.Errorf("expected distance label, got %q", p.DistanceLabel)
	}
}

func TestGetPoint_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/points/404", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	var apiErr handler.APIError
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "not_found" || apiErr.Message != "point not found" {
		t.Errorf("unexpected error %+v", apiErr)
	}
}

func TestGetPoint_RepositoryFailure(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Points = usecases.NewPointService(&mockPointRepo{
			getByIDFn: func(ctx context.Context, id string) (*domain.PointPrelevement, error) {
				return nil, errors.New("connection refused")
			},
		}, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/points/1", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 500 {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}

func TestNearbyPoints_Success(t *testing.T) {
	var gotRadius float64
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Points = usecases.NewPointService(&mockPointRepo{
			findNearbyFn: func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.PointPrelevement, error) {
				gotRadius = radius
				dist := 12.0
				return []domain.PointPrelevement{{ID: "1", Distance: &dist}}, nil
			},
		}, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/points/nearby?lat=-21.0&lon=55.3&radius=2000", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if gotRadius != 2000 {
		t.Errorf("expected radius 2000, got %v", gotRadius)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=300" {
		t.Errorf("expected Cache-Control header, got %q", cc)
	}

	var points []handler.PointDetail
	json.NewDecoder(resp.Body).Decode(&points)
	if len(points) != 1 || points[0].DistanceLabel != "12 m" {
		t.Errorf("unexpected points %+v", points)
	}
}

func TestNearbyPoints_MissingParams(t *testing.T) {
	app := setupApp(makeDeps())

	for _, target := range []string{
		"/v1/points/nearby",
		"/v1/points/nearby?lat=-21.0",
		"/v1/points/nearby?lat=abc&lon=55.3",
		"/v1/points/nearby?lat=95&lon=55.3",
	} {
		req := httptest.NewRequest("GET", target, nil)
		resp, _ := app.Test(req, -1)
		if resp.StatusCode != 400 {
			t.Errorf("%s: expected 400, got %d", target, resp.StatusCode)
		}
	}
}

func TestNearbyPoints_BadRadius(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/points/nearby?lat=-21.0&lon=55.3&radius=99999", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPointNeighbours(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/points/1/neighbours?radius=500", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var points []handler.PointDetail
	json.NewDecoder(resp.Body).Decode(&points)
	if len(points) != 1 || points[0].ID != "2" || points[0].Distance == nil {
		t.Errorf("expected point 2 with a distance, got %+v", points)
	}

	req = httptest.NewRequest("GET", "/v1/points/404/neighbours", nil)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Errorf("expected 404 for unknown point, got %d", resp.StatusCode)
	}
}

// ---- Preleveur handler tests ----

func TestListPreleveurs_DisplayName(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Preleveurs = usecases.NewPreleveurService(&mockPreleveurRepo{
			listFn: func(ctx context.Context) ([]domain.Preleveur, error) {
				return []domain.Preleveur{
					{ID: "p1", RaisonSociale: "SAPHIR"},
					{ID: "p2"},
				}, nil
			},
		}, &mockPointRepo{})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/preleveurs", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data []domain.PreleveurView `json:"data"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if len(result.Data) != 2 {
		t.Fatalf("expected 2 preleveurs, got %d", len(result.Data))
	}
	if result.Data[0].DisplayName == nil || *result.Data[0].DisplayName != "SAPHIR" {
		t.Errorf("expected SAPHIR, got %v", result.Data[0].DisplayName)
	}
	if result.Data[1].DisplayName != nil {
		t.Errorf("expected null display name, got %q", *result.Data[1].DisplayName)
	}
}

func TestPreleveurPoints(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		points := &mockPointRepo{
			listByPreleveurFn: func(ctx context.Context, id string) ([]domain.PointPrelevement, error) {
				return []domain.PointPrelevement{{ID: "9", Nom: "Zeta"}, {ID: "8", Nom: "Alpha"}}, nil
			},
		}
		d.Preleveurs = usecases.NewPreleveurService(&mockPreleveurRepo{
			getByIDFn: func(ctx context.Context, id string) (*domain.Preleveur, error) {
				return &domain.Preleveur{ID: id}, nil
			},
		}, points)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/preleveurs/p1/points", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var points []handler.PointDetail
	json.NewDecoder(resp.Body).Decode(&points)
	if len(points) != 2 || points[0].ID != "8" {
		t.Errorf("expected points sorted by name, got %+v", points)
	}
}

func TestGetPreleveur_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/preleveurs/missing", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

// ---- Filter options, stats and communes ----

func TestFilterOptions(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/filters/options", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var opts struct {
		Usages []struct {
			Usage      string `json:"usage"`
			Background string `json:"background"`
		} `json:"usages"`
		TypesMilieu []struct {
			TypeMilieu string `json:"typeMilieu"`
			Color      string `json:"color"`
		} `json:"types_milieu"`
	}
	json.NewDecoder(resp.Body).Decode(&opts)
	if len(opts.Usages) != len(domain.Usages()) || opts.Usages[0].Background == "" {
		t.Errorf("unexpected usages %+v", opts.Usages)
	}
	if len(opts.TypesMilieu) != 3 {
		t.Errorf("expected 3 types de milieu, got %d", len(opts.TypesMilieu))
	}
}

func TestStats(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/stats?typeMilieu="+strings.ReplaceAll(domain.MilieuSurface, " ", "%20"), nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var st usecases.Stats
	json.NewDecoder(resp.Body).Decode(&st)
	if st.Total != 3 || st.Matched != 2 {
		t.Errorf("expected 2 of 3, got %d of %d", st.Matched, st.Total)
	}
	if st.ByUsage[domain.UsageNonRenseigne] != 1 {
		t.Errorf("expected one point without usage, got %v", st.ByUsage)
	}
}

func TestReverseCommune(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Communes = &mockGeocoder{reverseFn: func(ctx context.Context, lat, lon float64) (*domain.Commune, error) {
			return &domain.Commune{Nom: "Saint-Leu", Code: "97413"}, nil
		}}
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/communes/reverse?lat=-21.17&lon=55.29", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var c domain.Commune
	json.NewDecoder(resp.Body).Decode(&c)
	if c.Code != "97413" {
		t.Errorf("expected 97413, got %+v", c)
	}
}

func TestReverseCommune_Errors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", geocoding.ErrCommuneNotFound, 404},
		{"upstream failure", &geocoding.UpstreamError{Status: 503}, 502},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deps := makeDeps(func(d *handler.Dependencies) {
				d.Communes = &mockGeocoder{reverseFn: func(ctx context.Context, lat, lon float64) (*domain.Commune, error) {
					return nil, tc.err
				}}
			})
			app := setupApp(deps)

			req := httptest.NewRequest("GET", "/v1/communes/reverse?lat=-21.17&lon=55.29", nil)
			resp, _ := app.Test(req, -1)
			if resp.StatusCode != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.StatusCode)
			}
		})
	}
}

// ---- Session handler tests ----

func createSession(t *testing.T, app *fiber.App, deps *handler.Dependencies) string {
	t.Helper()
	req := httptest.NewRequest("POST", "/v1/sessions", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var snap selection.Snapshot
	json.NewDecoder(resp.Body).Decode(&snap)
	if snap.SessionID == "" {
		t.Fatal("expected a session id")
	}
	if loc := resp.Header.Get("Location"); loc != "/v1/sessions/"+snap.SessionID {
		t.Errorf("unexpected Location %q", loc)
	}
	deps.Sessions.Wait()
	return snap.SessionID
}

func sendJSON(t *testing.T, app *fiber.App, method, target, body string) (int, selection.Snapshot) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	var snap selection.Snapshot
	_ = json.Unmarshal(readBody(t, resp.Body), &snap)
	return resp.StatusCode, snap
}

func TestSession_SelectionAndFilters(t *testing.T) {
	deps := makeDeps()
	app := setupApp(deps)
	id := createSession(t, app, deps)
	base := "/v1/sessions/" + id

	status, snap := sendJSON(t, app, "GET", base, "")
	if status != 200 || snap.List.Loading || snap.List.Total != 3 {
		t.Fatalf("expected loaded session, got %d %+v", status, snap.List)
	}

	// numeric ids are accepted
	status, snap = sendJSON(t, app, "PUT", base+"/selection", `{"point_id": 2}`)
	if status != 200 || snap.SelectedID() != "2" {
		t.Fatalf("select: got %d, selected %q", status, snap.SelectedID())
	}

	status, snap = sendJSON(t, app, "PUT", base+"/filters", `{"typeMilieu": "Eau souterraine"}`)
	if status != 200 || snap.List.Matched != 1 {
		t.Fatalf("filters: got %d, matched %d", status, snap.List.Matched)
	}
	if snap.SelectedID() != "2" {
		t.Errorf("selection must survive filtering, got %q", snap.SelectedID())
	}

	status, snap = sendJSON(t, app, "DELETE", base+"/filters", "")
	if status != 200 || snap.List.Matched != 3 {
		t.Fatalf("clear filters: got %d, matched %d", status, snap.List.Matched)
	}

	status, snap = sendJSON(t, app, "DELETE", base+"/selection", "")
	if status != 200 || snap.Selected != nil {
		t.Fatalf("deselect: got %d, selected %q", status, snap.SelectedID())
	}
}

func TestSession_SelectErrors(t *testing.T) {
	deps := makeDeps()
	app := setupApp(deps)
	id := createSession(t, app, deps)
	base := "/v1/sessions/" + id

	if status, _ := sendJSON(t, app, "PUT", base+"/selection", `{"point_id": "404"}`); status != 404 {
		t.Errorf("unknown point: expected 404, got %d", status)
	}
	if status, _ := sendJSON(t, app, "PUT", base+"/selection", `{"point_id": null}`); status != 400 {
		t.Errorf("null point: expected 400, got %d", status)
	}
	if status, _ := sendJSON(t, app, "PUT", base+"/selection", `not json`); status != 400 {
		t.Errorf("bad body: expected 400, got %d", status)
	}
}

func TestSession_FiltersValidation(t *testing.T) {
	deps := makeDeps()
	app := setupApp(deps)
	id := createSession(t, app, deps)
	base := "/v1/sessions/" + id

	long := strings.Repeat("a", 201)
	if status, _ := sendJSON(t, app, "PUT", base+"/filters", `{"name": "`+long+`"}`); status != 400 {
		t.Errorf("long name: expected 400, got %d", status)
	}
	usages := `["` + strings.Repeat("x", 101) + `"]`
	if status, _ := sendJSON(t, app, "PUT", base+"/filters", `{"usages": `+usages+`}`); status != 400 {
		t.Errorf("long usage: expected 400, got %d", status)
	}
	status, snap := sendJSON(t, app, "PUT", base+"/filters", `{"name": "  ", "usages": []}`)
	if status != 200 || !snap.Filters.IsEmpty() {
		t.Errorf("blank filters: got %d %+v", status, snap.Filters)
	}
}

func TestSession_DeleteAndUnknown(t *testing.T) {
	deps := makeDeps()
	app := setupApp(deps)
	id := createSession(t, app, deps)

	if status, _ := sendJSON(t, app, "DELETE", "/v1/sessions/"+id, ""); status != 204 {
		t.Fatalf("expected 204, got %d", status)
	}
	if status, _ := sendJSON(t, app, "GET", "/v1/sessions/"+id, ""); status != 404 {
		t.Errorf("expected 404 after delete, got %d", status)
	}
	if status, _ := sendJSON(t, app, "PUT", "/v1/sessions/nope/selection", `{"point_id": "1"}`); status != 404 {
		t.Errorf("expected 404 for unknown session, got %d", status)
	}
}

// ---- GraphQL ----

func TestGraphQL_Points(t *testing.T) {
	app := setupApp(makeDeps())

	body := `{"query":"{ points(typeMilieu: \"Eau de surface\") { id label typeMilieu } }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Points []struct {
				ID    string `json:"id"`
				Label string `json:"label"`
			} `json:"points"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors %v", result.Errors)
	}
	if len(result.Data.Points) != 2 || result.Data.Points[1].Label != "Bras de la Plaine" {
		t.Errorf("unexpected points %+v", result.Data.Points)
	}
}

// ---- Health handler tests ----

func TestHealth_Returns200(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if result["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", result["status"])
	}
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func TestReady(t *testing.T) {
	// nil DB → not ready
	app := setupApp(makeDeps())
	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}

	app = setupApp(makeDeps(func(d *handler.Dependencies) {
		d.DB = fakePinger{}
		d.Cache = fakePinger{}
	}))
	req = httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	app = setupApp(makeDeps(func(d *handler.Dependencies) {
		d.DB = fakePinger{}
		d.Cache = fakePinger{err: errors.New("timeout")}
	}))
	req = httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503 when the cache is down, got %d", resp.StatusCode)
	}
}

// ---- X-API-Version header ----

func TestAPIVersionHeader(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	v := resp.Header.Get("X-API-Version")
	if v != "1.0.0" {
		t.Errorf("expected X-API-Version 1.0.0, got %q", v)
	}
}

// TestAccessLogMiddleware verifies structured access logging is emitted.
func TestAccessLogMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(handler.AccessLogMiddleware())
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "test-req-123")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ok") {
		t.Errorf("expected response body to contain 'ok', got %s", string(body))
	}
}
