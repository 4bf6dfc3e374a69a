// Package docs registers the OpenAPI description served at /swagger.
// Regenerate with: swag init -g cmd/main.go
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
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}}
            }
        },
        "/auth/sign-up": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Create an API user",
                "parameters": [{"description": "Credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.authCredentials"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        },
        "/auth/sign-in": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Obtain a bearer token",
                "parameters": [{"description": "Credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.authCredentials"}}],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}
            }
        },
        "/api/v1/schedule": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["schedule"],
                "summary": "Current inverter schedule",
                "responses": {"200": {"description": "schedule, last_runs"}, "401": {"description": "Unauthorized"}, "502": {"description": "Bad Gateway"}}
            }
        },
        "/api/v1/schedule/run": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["schedule"],
                "summary": "Run the scheduler now",
                "parameters": [{"description": "Mode payload", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.RunRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.RunResult"}},
                    "400": {"description": "Bad Request"},
                    "401": {"description": "Unauthorized"},
                    "409": {"description": "Conflict"},
                    "500": {"description": "Internal Server Error"},
                    "502": {"description": "Bad Gateway"}
                }
            }
        },
        "/api/v1/logs": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["logs"],
                "summary": "List audit events",
                "parameters": [
                    {"type": "string", "name": "from", "in": "query"},
                    {"type": "string", "name": "to", "in": "query"},
                    {"enum": ["SNAPSHOT", "SKIPPED", "WRITE", "ERROR"], "type": "string", "name": "type", "in": "query"},
                    {"type": "string", "name": "run_id", "in": "query"}
                ],
                "responses": {"200": {"description": "count, events"}, "400": {"description": "Bad Request"}, "401": {"description": "Unauthorized"}}
            }
        },
        "/ws": {
            "get": {
                "tags": ["logs"],
                "summary": "Stream audit events",
                "parameters": [
                    {"type": "string", "name": "access_token", "in": "query", "required": true},
                    {"type": "integer", "name": "after", "in": "query"},
                    {"type": "string", "name": "interval", "in": "query"}
                ],
                "responses": {}
            }
        }
    },
    "definitions": {
        "handlers.authCredentials": {
            "type": "object",
            "required": ["password", "username"],
            "properties": {"password": {"type": "string"}, "username": {"type": "string"}}
        },
        "handlers.RunRequest": {
            "type": "object",
            "required": ["mode"],
            "properties": {"mode": {"type": "string", "example": "regular"}}
        },
        "models.Period": {
            "type": "object",
            "properties": {
                "start_minutes": {"type": "integer"},
                "end_minutes": {"type": "integer"},
                "is_charging": {"type": "boolean"},
                "days_mask": {"type": "integer"}
            }
        },
        "service.RunResult": {
            "type": "object",
            "properties": {
                "run_id": {"type": "string"},
                "mode": {"type": "string"},
                "outcome": {"type": "string"},
                "reason": {"type": "string"},
                "soc": {"type": "number"},
                "current": {"type": "array", "items": {"$ref": "#/definitions/models.Period"}},
                "candidates": {"type": "array", "items": {"$ref": "#/definitions/models.Period"}},
                "final": {"type": "array", "items": {"$ref": "#/definitions/models.Period"}},
                "started_at": {"type": "string"},
                "finished_at": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Battery Scheduler API",
	Description:      "Plans and writes the time-of-use charge schedule of a home battery inverter.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
