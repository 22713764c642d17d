package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Attendance API",
        "description": "Attendance tracking engine: role-scoped views, self check-in, overrides and auto-absence backfill.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Attendance", "description": "Per course, per day attendance records"},
        {"name": "Roster", "description": "Read-only students and courses"},
        {"name": "Authentication", "description": "Caller identity"}
    ],
    "paths": {
        "/auth/token": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Issue a development access token",
                "description": "Only registered outside production.",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/IssueTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "Token issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid role or missing student binding", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current caller identity",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance": {
            "get": {
                "tags": ["Attendance"],
                "summary": "List visible attendance records",
                "description": "Administrative roles see one course on one day. Students and parents see the bound student's history.",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "course", "type": "string"},
                    {"in": "query", "name": "date", "type": "string", "format": "date"},
                    {"in": "query", "name": "search", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid date", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/summary": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Present, absent and late counts over the visible set",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "course", "type": "string"},
                    {"in": "query", "name": "date", "type": "string", "format": "date"},
                    {"in": "query", "name": "search", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/status": {
            "put": {
                "tags": ["Attendance"],
                "summary": "Set a student's status for a course day",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/SetStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "Record written", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "UNAUTHORIZED_TRANSITION", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "REFERENTIAL_ERROR", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/self": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Mark today's attendance for the bound student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/MarkOwnRequest"}}
                ],
                "responses": {
                    "201": {"description": "Record created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "UNAUTHORIZED_TRANSITION", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "ALREADY_MARKED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/seed": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Create default present records for a course day",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/SeedRequest"}}
                ],
                "responses": {
                    "200": {"description": "Seed result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/backfill": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Convert unmarked past slots into absences",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": false, "schema": {"$ref": "#/definitions/BackfillRequest"}}
                ],
                "responses": {
                    "200": {"description": "Backfill result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "reference_now later than the current time", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Administrative role required", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/courses/stats": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Per-course attendance breakdown",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "from", "type": "string", "format": "date"},
                    {"in": "query", "name": "to", "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/export": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Download the visible attendance sheet",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "pdf"], "required": true},
                    {"in": "query", "name": "course", "type": "string"},
                    {"in": "query", "name": "date", "type": "string", "format": "date"},
                    {"in": "query", "name": "search", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Attendance sheet", "schema": {"type": "file"}},
                    "403": {"description": "Exports disabled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/roster/courses": {
            "get": {
                "tags": ["Roster"],
                "summary": "List courses",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/roster/students": {
            "get": {
                "tags": ["Roster"],
                "summary": "List students",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "IssueTokenRequest": {
            "type": "object",
            "required": ["role"],
            "properties": {
                "user_id": {"type": "string"},
                "role": {"type": "string", "enum": ["SUPERADMIN", "ADMIN", "TEACHER", "STUDENT", "PARENT"]},
                "student_id": {"type": "string"},
                "full_name": {"type": "string"}
            }
        },
        "SetStatusRequest": {
            "type": "object",
            "required": ["student_id", "course_id", "date", "status"],
            "properties": {
                "student_id": {"type": "string"},
                "course_id": {"type": "string"},
                "date": {"type": "string", "format": "date"},
                "status": {"type": "string", "enum": ["present", "absent", "late"]}
            }
        },
        "MarkOwnRequest": {
            "type": "object",
            "required": ["course_id", "status"],
            "properties": {
                "student_id": {"type": "string"},
                "course_id": {"type": "string"},
                "status": {"type": "string", "enum": ["present", "late"]}
            }
        },
        "SeedRequest": {
            "type": "object",
            "required": ["course_id", "date"],
            "properties": {
                "course_id": {"type": "string"},
                "date": {"type": "string", "format": "date"}
            }
        },
        "BackfillRequest": {
            "type": "object",
            "properties": {
                "course_id": {"type": "string"},
                "reference_now": {"type": "string", "format": "date-time"}
            }
        },
        "AttendanceRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "student_id": {"type": "string"},
                "course_id": {"type": "string"},
                "date": {"type": "string", "format": "date-time"},
                "status": {"type": "string", "enum": ["present", "absent", "late"]},
                "source": {"type": "string", "enum": ["seed", "self", "admin", "backfill"]},
                "student_name": {"type": "string"},
                "course_name": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "reason": {"type": "string"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
