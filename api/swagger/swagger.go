package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Campus Outpass API",
        "description": "Exit-pass lifecycle, gate verification and kiosk activation for campus societies",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Passes", "description": "Individual pass request lifecycle"},
        {"name": "Bulk Requests", "description": "EB-sponsored batch submissions"},
        {"name": "Gate", "description": "Guard-side token verification and check-in"},
        {"name": "Kiosk", "description": "Student self-service activation"},
        {"name": "Flags", "description": "Eligibility flag management"}
    ],
    "paths": {
        "/passes": {
            "post": {
                "tags": ["Passes"],
                "summary": "Submit an individual pass request",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error"},
                    "403": {"description": "Student is hard-flagged"}
                }
            },
            "get": {
                "tags": ["Passes"],
                "summary": "List pass requests",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/passes/pending": {
            "get": {
                "tags": ["Passes"],
                "summary": "List the approval queue for a level",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/passes/{id}": {
            "get": {
                "tags": ["Passes"],
                "summary": "Fetch one pass request",
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/passes/{id}/decision": {
            "post": {
                "tags": ["Passes"],
                "summary": "Apply an approver decision",
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Request is not awaiting this level"}
                }
            }
        },
        "/bulk-requests": {
            "post": {
                "tags": ["Bulk Requests"],
                "summary": "Submit a bulk pass request",
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Validation error or flagged student in batch"}
                }
            }
        },
        "/bulk-requests/selectable": {
            "get": {
                "tags": ["Bulk Requests"],
                "summary": "List students selectable for a bulk request",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/bulk-requests/{id}": {
            "get": {
                "tags": ["Bulk Requests"],
                "summary": "Fetch a bulk request with its fan-out rows",
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/bulk-requests/{id}/decision": {
            "post": {
                "tags": ["Bulk Requests"],
                "summary": "Apply one decision to a whole batch",
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Batch already moved on"}
                }
            }
        },
        "/bulk-requests/{id}/sheet": {
            "get": {
                "tags": ["Bulk Requests"],
                "summary": "Download the printable gate-pass sheet",
                "produces": ["application/pdf", "text/csv"],
                "responses": {
                    "200": {"description": "Sheet file"},
                    "409": {"description": "Batch not approved"}
                }
            }
        },
        "/gate/verify": {
            "post": {
                "tags": ["Gate"],
                "summary": "Verify a pass token at the gate",
                "responses": {
                    "200": {"description": "Subject snapshot"},
                    "401": {"description": "Invalid or expired token"},
                    "409": {"description": "Not approved or already returned"}
                }
            }
        },
        "/gate/check-in": {
            "post": {
                "tags": ["Gate"],
                "summary": "Record a return at the gate",
                "responses": {
                    "200": {"description": "Check-in summary with lateness"},
                    "409": {"description": "Not yet exited or already returned"}
                }
            }
        },
        "/kiosk/activate": {
            "post": {
                "tags": ["Kiosk"],
                "summary": "Resolve a kiosk self-service scan",
                "responses": {
                    "200": {"description": "EXIT or RETURN action"},
                    "404": {"description": "No eligible pass request"}
                }
            }
        },
        "/users/{id}/flag": {
            "post": {
                "tags": ["Flags"],
                "summary": "Flag a student",
                "responses": {
                    "204": {"description": "Flag applied"},
                    "403": {"description": "Hard flags require faculty authority"}
                }
            },
            "delete": {
                "tags": ["Flags"],
                "summary": "Remove a student's flag",
                "responses": {
                    "204": {"description": "Flag cleared"}
                }
            }
        }
    },
    "definitions": {
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
