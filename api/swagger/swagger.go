package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Campus Records API",
        "description": "Submission, review and statistics for student achievement records",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Records", "description": "Owner submission, editing and withdrawal"},
        {"name": "Review", "description": "Tutor and admin decisions"},
        {"name": "Statistics", "description": "Aggregates over approved records"},
        {"name": "Admin", "description": "Housekeeping deletes"},
        {"name": "Categories", "description": "Non-CGPA course categories"}
    ],
    "parameters": {
        "kind": {
            "name": "kind", "in": "path", "required": true, "type": "string",
            "enum": ["course-enrollment", "project", "hackathon-event", "publication", "extracurricular-activity", "non-cgpa-course", "education-profile"]
        },
        "id": {"name": "id", "in": "path", "required": true, "type": "string"},
        "page": {"name": "page", "in": "query", "type": "integer"},
        "limit": {"name": "limit", "in": "query", "type": "integer"}
    },
    "paths": {
        "/{kind}/add": {
            "post": {
                "tags": ["Records"],
                "summary": "Submit a record for verification",
                "parameters": [
                    {"$ref": "#/parameters/kind"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/{kind}/update/{id}": {
            "put": {
                "tags": ["Records"],
                "summary": "Edit a pending record",
                "parameters": [
                    {"$ref": "#/parameters/kind"},
                    {"$ref": "#/parameters/id"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not owner"},
                    "409": {"description": "Already decided"}
                }
            }
        },
        "/{kind}/delete/{id}": {
            "delete": {
                "tags": ["Records"],
                "summary": "Withdraw a pending record",
                "parameters": [{"$ref": "#/parameters/kind"}, {"$ref": "#/parameters/id"}],
                "responses": {"204": {"description": "Deleted"}, "409": {"description": "Already decided"}}
            }
        },
        "/{kind}/approve/{id}": {
            "put": {
                "tags": ["Review"],
                "summary": "Approve a pending record",
                "parameters": [
                    {"$ref": "#/parameters/kind"},
                    {"$ref": "#/parameters/id"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/DecideRecordRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Already decided"}}
            }
        },
        "/{kind}/reject/{id}": {
            "put": {
                "tags": ["Review"],
                "summary": "Reject a pending record",
                "parameters": [
                    {"$ref": "#/parameters/kind"},
                    {"$ref": "#/parameters/id"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/DecideRecordRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Already decided"}}
            }
        },
        "/{kind}/my-records": {
            "get": {
                "tags": ["Records"],
                "summary": "List the caller's records of a kind",
                "parameters": [{"$ref": "#/parameters/kind"}, {"$ref": "#/parameters/page"}, {"$ref": "#/parameters/limit"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/{kind}/pending": {
            "get": {
                "tags": ["Review"],
                "summary": "List pending records awaiting review",
                "parameters": [{"$ref": "#/parameters/kind"}, {"$ref": "#/parameters/page"}, {"$ref": "#/parameters/limit"}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Not a reviewer"}}
            }
        },
        "/{kind}/records/{id}": {
            "get": {
                "tags": ["Records"],
                "summary": "Fetch a single record",
                "parameters": [{"$ref": "#/parameters/kind"}, {"$ref": "#/parameters/id"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            }
        },
        "/{kind}/statistics": {
            "get": {
                "tags": ["Statistics"],
                "summary": "Statistics for a student's records",
                "parameters": [{"$ref": "#/parameters/kind"}, {"name": "ownerId", "in": "query", "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/{kind}/top": {
            "get": {
                "tags": ["Statistics"],
                "summary": "Leaderboard over approved records",
                "parameters": [
                    {"$ref": "#/parameters/kind"},
                    {"name": "metric", "in": "query", "type": "string"},
                    {"$ref": "#/parameters/limit"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/{kind}/level/{level}": {
            "get": {
                "tags": ["Statistics"],
                "summary": "Approved records at a level",
                "parameters": [{"$ref": "#/parameters/kind"}, {"name": "level", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/{kind}/export": {
            "get": {
                "tags": ["Review"],
                "summary": "Download approved records",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [{"$ref": "#/parameters/kind"}, {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}],
                "responses": {"200": {"description": "File"}}
            }
        },
        "/{kind}/admin/delete/{id}": {
            "delete": {
                "tags": ["Admin"],
                "summary": "Delete any record",
                "parameters": [{"$ref": "#/parameters/kind"}, {"$ref": "#/parameters/id"}],
                "responses": {"204": {"description": "Deleted"}, "403": {"description": "Not an admin"}}
            }
        },
        "/{kind}/admin/bulk-delete": {
            "post": {
                "tags": ["Admin"],
                "summary": "Delete a batch of records",
                "parameters": [
                    {"$ref": "#/parameters/kind"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkDeleteRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/records/mine": {
            "get": {
                "tags": ["Records"],
                "summary": "List the caller's records across kinds",
                "parameters": [{"$ref": "#/parameters/page"}, {"$ref": "#/parameters/limit"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/records/pending": {
            "get": {
                "tags": ["Review"],
                "summary": "List pending records across kinds",
                "parameters": [{"$ref": "#/parameters/page"}, {"$ref": "#/parameters/limit"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/categories": {
            "get": {
                "tags": ["Categories"],
                "summary": "List categories",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Categories"],
                "summary": "Create category",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateCategoryRequest"}}],
                "responses": {"201": {"description": "Created"}}
            }
        }
    },
    "definitions": {
        "DecideRecordRequest": {
            "type": "object",
            "properties": {"comments": {"type": "string"}}
        },
        "BulkDeleteRequest": {
            "type": "object",
            "properties": {"ids": {"type": "array", "items": {"type": "string"}}},
            "required": ["ids"]
        },
        "CreateCategoryRequest": {
            "type": "object",
            "properties": {"name": {"type": "string"}, "description": {"type": "string"}},
            "required": ["name"]
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
                "code": {"type": "string", "enum": ["VALIDATION_ERROR", "NOT_OWNER", "NOT_AUTHORIZED", "INVALID_STATE", "NOT_FOUND", "UNAUTHORIZED", "INTERNAL_ERROR"]},
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
