package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/prelevements/internal/core/domain"
	"github.com/samirrijal/prelevements/internal/core/selection"
	"github.com/samirrijal/prelevements/internal/pkg/normalize"
)

// PointDetail is a point with its display label and colours.
type PointDetail struct {
	domain.PointPrelevement
	Label         string             `json:"label"`
	Color         string             `json:"color,omitempty"`
	UsageChips    []domain.UsageChip `json:"usage_chips,omitempty"`
	DistanceLabel string             `json:"distance_label,omitempty"`
}

func detail(p domain.PointPrelevement) PointDetail {
	s := domain.Summarize(p)
	d := PointDetail{PointPrelevement: p, Label: s.Label, Color: s.Color, UsageChips: s.Usages}
	if p.Distance != nil {
		d.DistanceLabel = normalize.FormatNumber(*p.Distance) + " m"
	}
	return d
}

func details(points []domain.PointPrelevement) []PointDetail {
	out := make([]PointDetail, len(points))
	for i, p := range points {
		out[i] = detail(p)
	}
	return out
}

// filtersFromQuery reads name, typeMilieu and usages (comma separated).
func filtersFromQuery(c *fiber.Ctx) (selection.Filters, error) {
	req := filtersRequest{
		Name:       c.Query("name"),
		TypeMilieu: c.Query("typeMilieu"),
	}
	if raw := c.Query("usages"); raw != "" {
		for _, u := range strings.Split(raw, ",") {
			if u = strings.TrimSpace(u); u != "" {
				req.Usages = append(req.Usages, u)
			}
		}
	}
	if err := validate.Struct(req); err != nil {
		return selection.Filters{}, err
	}
	return req.filters(), nil
}

// paginate applies offset/limit to a slice, the way every list endpoint does.
func paginate[T any](c *fiber.Ctx, items []T) ([]T, Pagination) {
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 100)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	total := len(items)
	page := []T{}
	if offset < total {
		page = items[offset:min(offset+limit, total)]
	}
	return page, Pagination{Offset: offset, Limit: limit, Total: total}
}

// ListPointsHandler returns the filtered points, sorted by display name.
func ListPointsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := filtersFromQuery(c)
		if err != nil {
			return errBadRequest(c, validationMessage(err))
		}

		points, err := deps.Points.List(c.UserContext(), f)
		if err != nil {
			return errFrom(c, err, "points")
		}

		summaries := make([]domain.PointSummary, len(points))
		for i, p := range points {
			summaries[i] = domain.Summarize(p)
		}

		page, pg := paginate(c, summaries)
		pg = pg.withFilters(f)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// GetPointHandler returns a single point.
func GetPointHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "point id is required")
		}

		p, err := deps.Points.GetByID(c.UserContext(), id)
		if err != nil {
			return errFrom(c, err, "point")
		}
		return c.JSON(detail(*p))
	}
}

// NearbyPointsHandler returns points within a radius of a coordinate.
func NearbyPointsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, lon, ok := coordinates(c)
		if !ok {
			return errBadRequest(c, "lat and lon are required and must be valid WGS 84 coordinates")
		}
		radius := c.QueryFloat("radius", 1000)
		if radius <= 0 || radius > 50000 {
			return errBadRequest(c, "radius must be between 1 and 50000 meters")
		}
		limit := c.QueryInt("limit", 50)

		points, err := deps.Points.FindNearby(c.UserContext(), lat, lon, radius, limit)
		if err != nil {
			return errFrom(c, err, "points")
		}

		c.Set("Cache-Control", "public, max-age=300")
		return c.JSON(details(points))
	}
}

// PointNeighboursHandler returns the points around another point.
func PointNeighboursHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		radius := c.QueryFloat("radius", 1000)
		if radius <= 0 || radius > 50000 {
			return errBadRequest(c, "radius must be between 1 and 50000 meters")
		}

		points, err := deps.Points.Neighbours(c.UserContext(), c.Params("id"), radius, c.QueryInt("limit", 20))
		if err != nil {
			return errFrom(c, err, "point")
		}
		return c.JSON(details(points))
	}
}

// ListPreleveursHandler returns every preleveur with its display name.
func ListPreleveursHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		preleveurs, err := deps.Preleveurs.List(c.UserContext())
		if err != nil {
			return errFrom(c, err, "preleveurs")
		}

		page, pg := paginate(c, preleveurs)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// GetPreleveurHandler returns a single preleveur.
func GetPreleveurHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := deps.Preleveurs.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFrom(c, err, "preleveur")
		}
		return c.JSON(p)
	}
}

// PreleveurPointsHandler returns the points of a preleveur.
func PreleveurPointsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		points, err := deps.Preleveurs.Points(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFrom(c, err, "preleveur")
		}
		return c.JSON(details(points))
	}
}

type usageOption struct {
	Usage string `json:"usage"`
	domain.UsageColors
}

type milieuOption struct {
	TypeMilieu string `json:"typeMilieu"`
	Color      string `json:"color"`
}

// FilterOptionsHandler lists the known usages and types de milieu with
// their colours.
func FilterOptionsHandler() fiber.Handler {
	usages := make([]usageOption, 0)
	for _, u := range domain.Usages() {
		usages = append(usages, usageOption{Usage: u, UsageColors: domain.UsageColor(u)})
	}
	milieux := make([]milieuOption, 0)
	for _, m := range domain.TypesMilieu() {
		color, _ := domain.TypeMilieuColor(m)
		milieux = append(milieux, milieuOption{TypeMilieu: m, Color: color})
	}

	return func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "public, max-age=86400")
		return c.JSON(fiber.Map{
			"usages":       usages,
			"types_milieu": milieux,
		})
	}
}

// StatsHandler returns counts over the filtered points.
func StatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := filtersFromQuery(c)
		if err != nil {
			return errBadRequest(c, validationMessage(err))
		}
		st, err := deps.Stats.Compute(c.UserContext(), f)
		if err != nil {
			return errFrom(c, err, "points")
		}
		return c.JSON(st)
	}
}

// ReverseCommuneHandler returns the commune containing a coordinate.
func ReverseCommuneHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, lon, ok := coordinates(c)
		if !ok {
			return errBadRequest(c, "lat and lon are required and must be valid WGS 84 coordinates")
		}

		commune, err := deps.Communes.Reverse(c.UserContext(), lat, lon)
		if err != nil {
			return errFrom(c, err, "commune")
		}

		c.Set("Cache-Control", "public, max-age=86400")
		return c.JSON(commune)
	}
}

// coordinates reads the lat and lon query parameters.
func coordinates(c *fiber.Ctx) (lat, lon float64, ok bool) {
	if c.Query("lat") == "" || c.Query("lon") == "" {
		return 0, 0, false
	}
	lat, okLat := normalize.CoerceNumericValue(c.Query("lat"))
	lon, okLon := normalize.CoerceNumericValue(c.Query("lon"))
	if !okLat || !okLon {
		return 0, 0, false
	}
	return lat, lon, domain.GeoPoint{Lat: lat, Lon: lon}.Valid()
}
