// Package docs is generated by swag init; regenerate with `go generate ./cmd/storesync`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/tenants/{id}/sync": {
            "post": {
                "description": "Runs the requested entity types for one tenant and waits for the results.",
                "consumes": ["application/json"],
                "tags": ["sync"],
                "summary": "Run a manual sync",
                "parameters": [
                    {"type": "integer", "description": "tenant id", "name": "id", "in": "path", "required": true},
                    {"description": "types (customers|orders|products) and force", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/handler.manualSyncRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.apiResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.apiResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.apiResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/handler.apiResponse"}}
                }
            }
        },
        "/api/tenants/{id}/sync/health": {
            "get": {
                "tags": ["sync"],
                "summary": "Sync health over a window",
                "parameters": [
                    {"type": "integer", "description": "tenant id", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "lookback window, e.g. 24h or 7d", "name": "window", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.apiResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.apiResponse"}}
                }
            }
        },
        "/api/tenants/{id}/sync/logs": {
            "get": {
                "tags": ["sync"],
                "summary": "List audit entries",
                "parameters": [
                    {"type": "integer", "description": "tenant id", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "sync type, e.g. orders or webhook:orders/create", "name": "type", "in": "query"},
                    {"type": "boolean", "description": "filter by outcome", "name": "success", "in": "query"},
                    {"type": "integer", "description": "limit", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "offset", "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.apiResponse"}}}
            }
        },
        "/api/tenants/{id}/sync/status": {
            "get": {
                "tags": ["sync"],
                "summary": "Sync status",
                "parameters": [
                    {"type": "integer", "description": "tenant id", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "description": "number of recent audit entries (default 10)", "name": "recent", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.apiResponse"}}}
            }
        },
        "/api/tenants/{id}/sync/stream": {
            "get": {
                "tags": ["sync"],
                "summary": "Live audit stream (websocket)",
                "parameters": [
                    {"type": "integer", "description": "tenant id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {"101": {"description": "Switching Protocols"}}
            }
        },
        "/healthz": {
            "get": {
                "tags": ["health"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}}
            }
        },
        "/readyz": {
            "get": {
                "tags": ["health"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {}}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": {}}}
                }
            }
        },
        "/webhooks/shopify": {
            "post": {
                "description": "Verifies the HMAC signature, applies the payload for the owning tenant and records an audit entry.",
                "consumes": ["application/json"],
                "tags": ["webhooks"],
                "summary": "Receive a platform webhook",
                "parameters": [
                    {"type": "string", "description": "topic, e.g. orders/create", "name": "X-Shopify-Topic", "in": "header", "required": true},
                    {"type": "string", "description": "shop domain", "name": "X-Shopify-Shop-Domain", "in": "header", "required": true},
                    {"type": "string", "description": "base64 HMAC-SHA256 of the raw body", "name": "X-Shopify-Hmac-Sha256", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {}}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {}}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {}}},
                    "429": {"description": "Too Many Requests", "schema": {"type": "object", "additionalProperties": {}}}
                }
            }
        }
    },
    "definitions": {
        "handler.apiResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "data": {},
                "message": {"type": "string"},
                "meta": {"type": "object", "additionalProperties": {}}
            }
        },
        "handler.manualSyncRequest": {
            "type": "object",
            "properties": {
                "force": {"type": "boolean"},
                "types": {"type": "array", "items": {"type": "string"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "storesync API",
	Description:      "Tenant store sync, webhook ingestion and sync audit.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
