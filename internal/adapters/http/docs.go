package http

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
)

const defaultOpenAPIPath = "api/openapi.yaml"

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="fr">
<head>
  <meta charset="UTF-8">
  <title>Points de prélèvement · API</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
  <style>body{margin:0;background:#fafafa}</style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/docs/openapi.json',
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [SwaggerUIBundle.presets.apis],
    });
  </script>
</body>
</html>`

// apiDocument is the API description, read and validated once.
type apiDocument struct {
	yaml []byte
	json []byte
}

func loadAPIDocument(path string) (*apiDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := (&openapi3.Loader{IsExternalRefsAllowed: false}).LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	js, err := doc.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return &apiDocument{yaml: raw, json: js}, nil
}

// SetupDocs registers Swagger UI at /docs and the API description at
// /docs/openapi.yaml and /docs/openapi.json. The file at path is loaded on
// first use; an invalid file is reported as 503 rather than served.
func SetupDocs(app *fiber.App, path string) {
	if path == "" {
		path = defaultOpenAPIPath
	}
	load := sync.OnceValues(func() (*apiDocument, error) {
		return loadAPIDocument(path)
	})
	serve := func(contentType string, body func(*apiDocument) []byte) fiber.Handler {
		return func(c *fiber.Ctx) error {
			doc, err := load()
			if os.IsNotExist(err) {
				return errNotFound(c, "API description not found")
			}
			if err != nil {
				LoggerFromCtx(c.UserContext()).Error("api description unusable", "path", path, "error", err)
				return newError(c, fiber.StatusServiceUnavailable, "docs_unavailable", "API description is invalid")
			}
			c.Set(fiber.HeaderContentType, contentType)
			return c.Send(body(doc))
		}
	}

	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(swaggerUIHTML)
	})
	app.Get("/docs/openapi.yaml", serve("application/yaml", func(d *apiDocument) []byte { return d.yaml }))
	app.Get("/docs/openapi.json", serve(fiber.MIMEApplicationJSON, func(d *apiDocument) []byte { return d.json }))
}
