// Package api carries the OpenAPI document describing the HTTP surface
package api

import _ "embed"

// OpenAPI is the request schema enforced by the validator middleware
//
//go:embed openapi.yaml
var OpenAPI []byte
