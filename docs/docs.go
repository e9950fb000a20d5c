// Package docs is generated by swaggo/swag from the handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "Direct Dispatch"
        },
        "license": {
            "name": "MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/dispatch/live-events": {
            "post": {
                "description": "Announces every event live right now to its nearby, interested audience and retires the announced schedule entries.",
                "produces": ["application/json"],
                "tags": ["dispatch"],
                "summary": "Dispatch live events",
                "parameters": [
                    {"type": "string", "description": "Bearer dispatch token", "name": "Authorization", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dispatch.RunResult"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/schedule/events/{eventID}": {
            "post": {
                "description": "Reads the event record and writes its entry in the day schedule, so that the dispatcher announces it once it is live.",
                "produces": ["application/json"],
                "tags": ["schedule"],
                "summary": "Schedule an event",
                "parameters": [
                    {"type": "string", "description": "Event ID", "name": "eventID", "in": "path", "required": true},
                    {"type": "string", "description": "Bearer dispatch token", "name": "Authorization", "in": "header"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/schedule.Entry"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/schedule/{day}": {
            "get": {
                "description": "Returns the pending entries of a UTC day partition with their current liveness. Use \"today\" for the current UTC day.",
                "produces": ["application/json"],
                "tags": ["schedule"],
                "summary": "List a day's schedule",
                "parameters": [
                    {"type": "string", "description": "UTC day (YYYY-MM-DD) or today", "name": "day", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.DaySchedule"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "dispatch.Outcome": {
            "type": "object",
            "properties": {
                "event_id": {"type": "string"},
                "status": {"type": "string"},
                "kind": {"type": "string"},
                "audience": {"type": "integer"},
                "tokens": {"type": "integer"},
                "success": {"type": "integer"},
                "failure": {"type": "integer"},
                "retired": {"type": "boolean"},
                "error": {"type": "string"},
                "duration_ns": {"type": "integer"}
            }
        },
        "dispatch.RunResult": {
            "type": "object",
            "properties": {
                "run_id": {"type": "string"},
                "day": {"type": "string"},
                "started_at": {"type": "string"},
                "scheduled": {"type": "integer"},
                "live": {"type": "integer"},
                "skipped": {"type": "integer"},
                "delivered": {"type": "integer"},
                "no_recipients": {"type": "integer"},
                "failed": {"type": "integer"},
                "malformed": {"type": "array", "items": {"type": "string"}},
                "duration_ns": {"type": "integer"},
                "errors": {"type": "array", "items": {"type": "string"}},
                "outcomes": {"type": "array", "items": {"$ref": "#/definitions/dispatch.Outcome"}}
            }
        },
        "handler.DaySchedule": {
            "type": "object",
            "properties": {
                "day": {"type": "string"},
                "events": {"type": "array", "items": {"$ref": "#/definitions/handler.ScheduledEvent"}},
                "malformed": {"type": "array", "items": {"type": "string"}}
            }
        },
        "handler.ScheduledEvent": {
            "type": "object",
            "properties": {
                "event_id": {"type": "string"},
                "start_timestamp": {"type": "number"},
                "end_timestamp": {"type": "number"},
                "live": {"type": "boolean"}
            }
        },
        "respond.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "code": {"type": "string"},
                        "message": {"type": "string"},
                        "detail": {"type": "string"}
                    }
                }
            }
        },
        "schedule.Entry": {
            "type": "object",
            "properties": {
                "day": {"type": "string"},
                "event_id": {"type": "string"},
                "start_timestamp": {"type": "number"},
                "end_timestamp": {"type": "number"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8000",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Direct Dispatch API",
	Description:      "Announces live events to nearby users whose interests match, one batched push per event.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
