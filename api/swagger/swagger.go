package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Room Reservation API",
        "description": "Meeting room booking, user directory and notice board.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Authentication", "description": "Login, token refresh and password"},
        {"name": "Users", "description": "User directory and bulk import"},
        {"name": "Rooms", "description": "Room catalog and availability"},
        {"name": "Reservations", "description": "Bookings, check-in and exports"},
        {"name": "Calendar", "description": "Google Calendar linking"},
        {"name": "Board", "description": "Notices, reports and comments"}
    ],
    "paths": {
        "/users/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "security": [],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {"description": "Too many attempts", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/users/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Rotate refresh token",
                "security": [],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/users/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Revoke refresh token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/users/password": {
            "patch": {
                "tags": ["Authentication"],
                "summary": "Change password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangePasswordRequest"}}
                ],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/users/me": {
            "get": {"tags": ["Authentication"], "summary": "Current user", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List users",
                "parameters": [
                    {"name": "user_type", "in": "query", "type": "string"},
                    {"name": "department_id", "in": "query", "type": "integer"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Users"],
                "summary": "Create user (admin)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateUserRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/users/{id}": {
            "get": {"tags": ["Users"], "summary": "Get user", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}},
            "patch": {"tags": ["Users"], "summary": "Update user", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["Users"], "summary": "Deactivate user (admin)", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"204": {"description": "No Content"}}}
        },
        "/users/bulk": {
            "post": {
                "tags": ["Users"],
                "summary": "Import users from CSV (admin)",
                "consumes": ["multipart/form-data"],
                "produces": ["text/csv"],
                "parameters": [{"name": "user_input", "in": "formData", "required": true, "type": "file"}],
                "responses": {"201": {"description": "Result CSV"}, "400": {"description": "Result CSV, nothing created"}}
            },
            "delete": {
                "tags": ["Users"],
                "summary": "Deactivate users by number (admin)",
                "consumes": ["text/plain"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/users/types": {"get": {"tags": ["Users"], "summary": "List user types", "responses": {"200": {"description": "OK"}}}},
        "/users/departments": {"get": {"tags": ["Users"], "summary": "List departments", "responses": {"200": {"description": "OK"}}}},
        "/rooms": {
            "get": {"tags": ["Rooms"], "summary": "List rooms", "parameters": [{"name": "search", "in": "query", "type": "string"}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Rooms"], "summary": "Create room (admin)", "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RoomRequest"}}], "responses": {"201": {"description": "Created"}}}
        },
        "/rooms/{id}": {
            "get": {"tags": ["Rooms"], "summary": "Get room", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}},
            "patch": {"tags": ["Rooms"], "summary": "Update room (admin)", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}, {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RoomRequest"}}], "responses": {"200": {"description": "OK"}}},
            "put": {"tags": ["Rooms"], "summary": "Update room (admin)", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}, {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RoomRequest"}}], "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["Rooms"], "summary": "Delete room (admin)", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"204": {"description": "No Content"}}}
        },
        "/rooms/{id}/images": {
            "post": {"tags": ["Rooms"], "summary": "Upload room image (admin)", "consumes": ["multipart/form-data"], "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}, {"name": "image", "in": "formData", "required": true, "type": "file"}], "responses": {"201": {"description": "Created"}}}
        },
        "/rooms/{id}/images/{imageId}": {
            "delete": {"tags": ["Rooms"], "summary": "Delete room image (admin)", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}, {"name": "imageId", "in": "path", "required": true, "type": "string"}], "responses": {"204": {"description": "No Content"}}}
        },
        "/rooms/{id}/availability": {
            "get": {"tags": ["Rooms"], "summary": "Daily availability timeline", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}, {"name": "date", "in": "query", "required": true, "type": "string", "format": "date"}], "responses": {"200": {"description": "OK"}}}
        },
        "/reservations": {
            "get": {
                "tags": ["Reservations"],
                "summary": "List reservations",
                "parameters": [
                    {"name": "date", "in": "query", "type": "string", "format": "date"},
                    {"name": "room", "in": "query", "type": "string"},
                    {"name": "booker", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["RESERVED", "BLOCKED", "CANCELLED"]},
                    {"name": "include_cancelled", "in": "query", "type": "boolean"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Reservations"],
                "summary": "Book a room",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateReservationRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Time slot already taken", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reservations/{id}": {
            "get": {"tags": ["Reservations"], "summary": "Get reservation", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}},
            "patch": {"tags": ["Reservations"], "summary": "Update reservation", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}},
            "delete": {"tags": ["Reservations"], "summary": "Cancel reservation", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"204": {"description": "No Content"}}}
        },
        "/reservations/{id}/authenticate-location": {
            "post": {
                "tags": ["Reservations"],
                "summary": "Check in at the room",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "latitude", "in": "query", "required": true, "type": "number"},
                    {"name": "longitude", "in": "query", "required": true, "type": "number"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Outside the time window or too far away"}}
            }
        },
        "/my-reservations": {"get": {"tags": ["Reservations"], "summary": "List my reservations", "responses": {"200": {"description": "OK"}}}},
        "/my-reservations/{id}": {"delete": {"tags": ["Reservations"], "summary": "Cancel my reservation", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"204": {"description": "No Content"}}}},
        "/reservations/export": {
            "post": {"tags": ["Reservations"], "summary": "Export reservations (admin)", "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}], "responses": {"201": {"description": "Created"}}}
        },
        "/exports/{token}": {
            "get": {"tags": ["Reservations"], "summary": "Download an export", "security": [], "produces": ["application/octet-stream"], "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "File"}, "403": {"description": "Invalid or expired link"}}}
        },
        "/calendar/oauth/url": {"get": {"tags": ["Calendar"], "summary": "Google consent URL", "responses": {"200": {"description": "OK"}}}},
        "/calendar/oauth/callback": {"get": {"tags": ["Calendar"], "summary": "OAuth callback", "security": [], "parameters": [{"name": "state", "in": "query", "required": true, "type": "string"}, {"name": "code", "in": "query", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}},
        "/calendar/account": {"delete": {"tags": ["Calendar"], "summary": "Unlink Google calendar", "responses": {"204": {"description": "No Content"}}}},
        "/notices": {
            "get": {"tags": ["Board"], "summary": "List notices", "parameters": [{"name": "active", "in": "query", "type": "boolean"}, {"name": "popup", "in": "query", "type": "boolean"}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Board"], "summary": "Create notice (admin)", "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/NoticeRequest"}}], "responses": {"201": {"description": "Created"}}}
        },
        "/notices/{id}": {
            "get": {"tags": ["Board"], "summary": "Get notice", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}},
            "put": {"tags": ["Board"], "summary": "Replace notice (admin)", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}, {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/NoticeRequest"}}], "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["Board"], "summary": "Delete notice (admin)", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"204": {"description": "No Content"}}}
        },
        "/reports": {
            "get": {"tags": ["Board"], "summary": "List reports", "parameters": [{"name": "category", "in": "query", "type": "string", "enum": ["IMPROVEMENT", "INQUIRY"]}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Board"], "summary": "File report", "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReportRequest"}}], "responses": {"201": {"description": "Created"}}}
        },
        "/reports/{id}": {
            "get": {"tags": ["Board"], "summary": "Get report", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}},
            "put": {"tags": ["Board"], "summary": "Edit report", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}, {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReportRequest"}}], "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["Board"], "summary": "Delete report", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"204": {"description": "No Content"}}}
        },
        "/reports/{id}/comments": {
            "get": {"tags": ["Board"], "summary": "List report comments", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Board"], "summary": "Comment on a report", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}, {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CommentRequest"}}], "responses": {"201": {"description": "Created"}}}
        },
        "/comments/{id}": {
            "put": {"tags": ["Board"], "summary": "Edit comment", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}, {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CommentRequest"}}], "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["Board"], "summary": "Delete comment", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"204": {"description": "No Content"}}}
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["user_no", "password"],
            "properties": {"user_no": {"type": "string", "maxLength": 45}, "password": {"type": "string"}}
        },
        "RefreshTokenRequest": {
            "type": "object",
            "required": ["refresh_token"],
            "properties": {"refresh_token": {"type": "string"}}
        },
        "ChangePasswordRequest": {
            "type": "object",
            "required": ["current_password", "new_password"],
            "properties": {"current_password": {"type": "string"}, "new_password": {"type": "string", "minLength": 8, "maxLength": 128}}
        },
        "CreateUserRequest": {
            "type": "object",
            "required": ["user_no", "name", "email", "user_type", "password"],
            "properties": {
                "user_no": {"type": "string", "maxLength": 45},
                "name": {"type": "string", "maxLength": 45},
                "email": {"type": "string", "format": "email"},
                "user_type": {"type": "string", "enum": ["ADMIN", "FACULTY", "POSTGRADUATE", "UNDERGRADUATE"]},
                "department_id": {"type": "integer"},
                "password": {"type": "string", "minLength": 8}
            }
        },
        "RoomRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string", "maxLength": 60},
                "description": {"type": "string"},
                "amenities": {"type": "array", "items": {"type": "string"}},
                "notification": {"type": "string", "maxLength": 1000}
            }
        },
        "CreateReservationRequest": {
            "type": "object",
            "required": ["room_id", "date", "start_at", "end_at"],
            "properties": {
                "room_id": {"type": "string"},
                "date": {"type": "string", "format": "date"},
                "start_at": {"type": "string", "example": "10:00"},
                "end_at": {"type": "string", "example": "11:00"},
                "companions": {"type": "array", "items": {"type": "string"}, "description": "User numbers"},
                "reason": {"type": "string", "maxLength": 255},
                "status": {"type": "string", "enum": ["RESERVED", "BLOCKED"]}
            }
        },
        "ExportRequest": {
            "type": "object",
            "required": ["format"],
            "properties": {
                "format": {"type": "string", "enum": ["csv", "xlsx", "pdf"]},
                "from": {"type": "string", "format": "date"},
                "to": {"type": "string", "format": "date"},
                "room_id": {"type": "string"},
                "include_cancelled": {"type": "boolean"}
            }
        },
        "NoticeRequest": {
            "type": "object",
            "required": ["title", "content", "start", "end"],
            "properties": {
                "popup": {"type": "boolean"},
                "start": {"type": "string", "format": "date-time"},
                "end": {"type": "string", "format": "date-time"},
                "title": {"type": "string", "maxLength": 63},
                "content": {"type": "string"}
            }
        },
        "ReportRequest": {
            "type": "object",
            "required": ["category", "title", "content"],
            "properties": {
                "category": {"type": "string", "enum": ["IMPROVEMENT", "INQUIRY"]},
                "title": {"type": "string", "maxLength": 64},
                "content": {"type": "string"}
            }
        },
        "CommentRequest": {
            "type": "object",
            "required": ["content"],
            "properties": {"content": {"type": "string", "maxLength": 300}}
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
                "status": {"type": "integer"}
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
