// Package docs holds the Swagger document served under /swagger. It is kept
// in step with the handler annotations; `go generate ./cmd/briefingd`
// rewrites it with swag.
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
        "/api/agents": {
            "get": {
                "produces": ["application/json"],
                "tags": ["agents"],
                "summary": "List active agents",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/api/agents/{topic}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["agents"],
                "summary": "Get one agent",
                "parameters": [
                    {"type": "string", "description": "agent topic", "name": "topic", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/api/agents/{topic}/generate": {
            "get": {
                "description": "Serves a briefing younger than 30 minutes unless force=true.",
                "produces": ["application/json"],
                "tags": ["briefings"],
                "summary": "Generate or fetch the latest briefing",
                "parameters": [
                    {"type": "string", "description": "agent topic", "name": "topic", "in": "path", "required": true},
                    {"type": "boolean", "description": "skip the cache", "name": "force", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.generateResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/api/agents/{topic}/history": {
            "get": {
                "produces": ["application/json"],
                "tags": ["briefings"],
                "summary": "Recent briefings for an agent",
                "parameters": [
                    {"type": "string", "description": "agent topic", "name": "topic", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/api/agents/{topic}/retry-ens": {
            "post": {
                "produces": ["application/json"],
                "tags": ["agents"],
                "summary": "Retry ENS registration for an agent",
                "parameters": [
                    {"type": "string", "description": "agent topic", "name": "topic", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.createAgentResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.ensErrorResponse"}}
                }
            }
        },
        "/api/create-agent": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["agents"],
                "summary": "Create an agent with wallet and ENS subdomain",
                "parameters": [
                    {"description": "agent", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.createAgentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.createAgentResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.ensErrorResponse"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/readyz": {
            "get": {
                "tags": ["health"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        }
    },
    "definitions": {
        "handler.agentSummary": {
            "type": "object",
            "properties": {
                "displayName": {"type": "string"},
                "ensSubdomain": {"type": "string"},
                "topic": {"type": "string"}
            }
        },
        "handler.blockchainView": {
            "type": "object",
            "properties": {
                "ens_subdomain": {"type": "string"},
                "transaction_hash": {"type": "string"},
                "wallet_address": {"type": "string"}
            }
        },
        "handler.briefingView": {
            "type": "object",
            "properties": {
                "aiInsights": {"type": "array", "items": {"type": "object"}},
                "audioUrl": {"type": "string"},
                "createdAt": {"type": "string"},
                "duration": {"type": "integer"},
                "id": {"type": "string"},
                "marketCount": {"type": "integer"},
                "marketStats": {"type": "object"},
                "script": {"type": "string"}
            }
        },
        "handler.createAgentRequest": {
            "type": "object",
            "properties": {
                "description": {"type": "string"},
                "display_name": {"type": "string"},
                "tag_id": {"type": "string"},
                "topic": {"type": "string"},
                "voice_id": {"type": "string"}
            }
        },
        "handler.createAgentResponse": {
            "type": "object",
            "properties": {
                "agent": {"$ref": "#/definitions/handler.createdAgentView"},
                "blockchain": {"$ref": "#/definitions/handler.blockchainView"},
                "message": {"type": "string"},
                "success": {"type": "boolean"}
            }
        },
        "handler.createdAgentView": {
            "type": "object",
            "properties": {
                "created_at": {"type": "string"},
                "description": {"type": "string"},
                "display_name": {"type": "string"},
                "ens_registered_at": {"type": "string"},
                "ens_subdomain": {"type": "string"},
                "ens_transaction_hash": {"type": "string"},
                "id": {"type": "string"},
                "tag_id": {"type": "string"},
                "topic": {"type": "string"},
                "wallet_address": {"type": "string"}
            }
        },
        "handler.ensErrorResponse": {
            "type": "object",
            "properties": {
                "agent_id": {"type": "string"},
                "error": {"type": "string"},
                "success": {"type": "boolean"}
            }
        },
        "handler.errorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "success": {"type": "boolean"}
            }
        },
        "handler.generateResponse": {
            "type": "object",
            "properties": {
                "agent": {"$ref": "#/definitions/handler.agentSummary"},
                "briefing": {"$ref": "#/definitions/handler.briefingView"},
                "cached": {"type": "boolean"},
                "success": {"type": "boolean"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:3001",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "oddly.news Briefing API",
	Description:      "Prediction-market audio briefings and agent provisioning.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
