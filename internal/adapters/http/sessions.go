package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/prelevements/internal/core/domain"
	"github.com/samirrijal/prelevements/internal/core/selection"
)

type selectRequest struct {
	PointID any `json:"point_id"`
}

// CreateSessionHandler opens a session. Its points load in the background,
// so the returned snapshot is usually still loading.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s := deps.Sessions.Create(c.UserContext())
		withLogAttrs(c, "session_id", s.ID()).Info("session created")
		c.Location("/v1/sessions/" + s.ID())
		return sendSnapshot(c.Status(fiber.StatusCreated), s.Snapshot())
	}
}

// GetSessionHandler returns the current snapshot of a session, or 304 while
// the version named by If-None-Match is still current.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return withSession(deps, func(c *fiber.Ctx, s *selection.Store) error {
		snap := s.Snapshot()
		if notModified(c, snapshotETag(snap)) {
			return nil
		}
		return c.JSON(snap)
	})
}

// DeleteSessionHandler closes a session.
func DeleteSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Delete(c.Params("id")); err != nil {
			return errFrom(c, err, "session")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// SetFiltersHandler replaces the filters of a session.
func SetFiltersHandler(deps *Dependencies) fiber.Handler {
	return withSession(deps, func(c *fiber.Ctx, s *selection.Store) error {
		var req filtersRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid filters body")
		}
		if err := validate.Struct(req); err != nil {
			return errBadRequest(c, validationMessage(err))
		}
		snap, err := s.SetFilters(req.filters())
		if err != nil {
			return errFrom(c, err, "session")
		}
		return sendSnapshot(c, snap)
	})
}

// ClearFiltersHandler resets the filters of a session.
func ClearFiltersHandler(deps *Dependencies) fiber.Handler {
	return withSession(deps, func(c *fiber.Ctx, s *selection.Store) error {
		snap, err := s.ClearFilters()
		if err != nil {
			return errFrom(c, err, "session")
		}
		return sendSnapshot(c, snap)
	})
}

// SelectPointHandler selects a point. The id may be sent as a string or a
// number.
func SelectPointHandler(deps *Dependencies) fiber.Handler {
	return withSession(deps, func(c *fiber.Ctx, s *selection.Store) error {
		var req selectRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid selection body")
		}
		id, ok := domain.NormalizePointID(req.PointID)
		if !ok {
			return errBadRequest(c, "point_id is required")
		}
		snap, err := s.Select(id)
		if err != nil {
			return errFrom(c, err, "point")
		}
		return sendSnapshot(c, snap)
	})
}

// DeselectPointHandler clears the selection, as closing the detail panel does.
func DeselectPointHandler(deps *Dependencies) fiber.Handler {
	return withSession(deps, func(c *fiber.Ctx, s *selection.Store) error {
		snap, err := s.Deselect()
		if err != nil {
			return errFrom(c, err, "session")
		}
		return sendSnapshot(c, snap)
	})
}

// sendSnapshot writes snap with its version as ETag, so a client can
// revalidate with GET afterwards.
func sendSnapshot(c *fiber.Ctx, snap selection.Snapshot) error {
	c.Set(fiber.HeaderETag, snapshotETag(snap))
	return c.JSON(snap)
}

func withSession(deps *Dependencies, h func(*fiber.Ctx, *selection.Store) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := deps.Sessions.Get(c.Params("id"))
		if err != nil {
			return errFrom(c, err, "session")
		}
		withLogAttrs(c, "session_id", s.ID())
		return h(c, s)
	}
}
