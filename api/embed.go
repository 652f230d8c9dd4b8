// Package api embeds the OpenAPI document describing the local HTTP API.
// The daemon serves it at GET /openapi.yaml so the extension and local
// tooling can discover the surface without a copy of the repo.
package api

import _ "embed"

// OpenAPISpec is the raw OpenAPI 3.1 YAML.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
