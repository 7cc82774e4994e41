package http

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/samirrijal/prelevements/internal/core/selection"
)

// PaginatedResponse wraps list results with pagination metadata.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// Pagination contains offset-based pagination info. Filters echoes the
// criteria the total was counted under, when the list is filtered.
type Pagination struct {
	Offset  int                `json:"offset"`
	Limit   int                `json:"limit"`
	Total   int                `json:"total"`
	Filters *selection.Filters `json:"filters,omitempty"`
}

// withFilters records f on p unless it matches everything.
func (p Pagination) withFilters(f selection.Filters) Pagination {
	if !f.IsEmpty() {
		f = f.Clone()
		p.Filters = &f
	}
	return p
}

// SetLinkHeaders adds RFC 8288 Link headers for paginated responses. Every
// link keeps the query of the current request (name, typeMilieu, usages)
// and only moves offset and limit.
func SetLinkHeaders(c *fiber.Ctx, p Pagination) {
	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	c.Request().URI().QueryArgs().CopyTo(args)

	base := c.Path()
	link := func(offset int, rel string) string {
		args.SetUint("offset", offset)
		args.SetUint("limit", p.Limit)
		return fmt.Sprintf(`<%s?%s>; rel="%s"`, base, args.String(), rel)
	}

	links := []string{link(0, "first")}
	if p.Offset > 0 {
		links = append(links, link(max(p.Offset-p.Limit, 0), "prev"))
	}
	if p.Offset+p.Limit < p.Total {
		links = append(links, link(p.Offset+p.Limit, "next"))
	}
	links = append(links, link(max(p.Total-p.Limit, 0), "last"))

	c.Set("Link", strings.Join(links, ", "))
}
