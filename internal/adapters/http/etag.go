package http

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/prelevements/internal/core/selection"
)

// snapshotETag is the strong validator of a session snapshot. Versions only
// grow within a session, and the session id is part of the URL.
func snapshotETag(snap selection.Snapshot) string {
	return `"v` + strconv.FormatUint(snap.Version, 10) + `"`
}

// etagMatches implements the weak comparison of If-None-Match: a list of
// tags or "*".
func etagMatches(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, tag := range strings.Split(ifNoneMatch, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" || strings.TrimPrefix(tag, "W/") == want {
			return true
		}
	}
	return false
}

// notModified sets etag on the response and reports whether the request
// already holds it, in which case the response is turned into a 304.
func notModified(c *fiber.Ctx, etag string) bool {
	c.Set(fiber.HeaderETag, etag)
	if !etagMatches(c.Get(fiber.HeaderIfNoneMatch), etag) {
		return false
	}
	c.Status(fiber.StatusNotModified)
	c.Response().ResetBody()
	return true
}

// ETagMiddleware answers conditional GETs. Handlers that know the version of
// what they return (sessions) set a strong ETag themselves; every other 200
// gets a weak one hashed from the body.
func ETagMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}
		if c.Method() != fiber.MethodGet || c.Response().StatusCode() != fiber.StatusOK {
			return nil
		}
		if etag := string(c.Response().Header.Peek(fiber.HeaderETag)); etag != "" {
			notModified(c, etag)
			return nil
		}

		body := c.Response().Body()
		if len(body) == 0 {
			return nil
		}
		h := sha256.Sum256(body)
		notModified(c, `W/"`+hex.EncodeToString(h[:8])+`"`)
		return nil
	}
}
