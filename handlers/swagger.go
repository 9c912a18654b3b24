package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>prepvoice — Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document covering the public surface. Kept by hand; update
// alongside handler registration.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "prepvoice", "version": "v0.1.0" },
  "paths": {
    "/auth/signup": {
      "post": { "summary": "Register a new account", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"name":{"type":"string"},"email":{"type":"string"},"password":{"type":"string"}}}}}}, "responses": { "201": { "description": "account created, tokens returned" }, "409": { "description": "email already registered" } } }
    },
    "/auth/signin": {
      "post": { "summary": "Sign in with email and password", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"},"password":{"type":"string"}}}}}}, "responses": { "200": { "description": "tokens returned" }, "401": { "description": "invalid credentials" } } }
    },
    "/auth/sso": {
      "post": { "summary": "Sign in with an OIDC id token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"idToken":{"type":"string"}}}}}}, "responses": { "200": { "description": "tokens returned" }, "401": { "description": "invalid id token" } } }
    },
    "/auth/refresh": {
      "post": { "summary": "Refresh access token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refreshToken":{"type":"string"}}}}}}, "responses": { "200": { "description": "new access token" }, "401": { "description": "invalid refresh" } } }
    },
    "/auth/logout": {
      "post": { "summary": "Logout and invalidate refresh token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refreshToken":{"type":"string"}}}}}}, "responses": { "200": { "description": "logged out" } } }
    },
    "/auth/me": {
      "get": { "summary": "Current user", "responses": { "200": { "description": "user document" }, "401": { "description": "missing or invalid token" } } }
    },
    "/api/v1/interviews": {
      "get": { "summary": "List the caller's interviews", "responses": { "200": { "description": "interviews, newest first" } } }
    },
    "/api/v1/interviews/latest": {
      "get": { "summary": "Finalized interviews from other users", "parameters": [ { "name": "limit", "in": "query", "schema": {"type":"integer"} } ], "responses": { "200": { "description": "interviews, newest first" } } }
    },
    "/api/v1/interviews/generate": {
      "post": { "summary": "Generate an interview with LLM-written questions", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"role":{"type":"string"},"type":{"type":"string"},"level":{"type":"string"},"techstack":{"type":"array","items":{"type":"string"}},"amount":{"type":"integer"}}}}}}, "responses": { "201": { "description": "interview created" } } }
    },
    "/api/v1/interviews/{id}/feedback": {
      "get": { "summary": "Feedback for one interview", "responses": { "200": { "description": "feedback document" }, "404": { "description": "no feedback yet" } } },
      "post": { "summary": "Score a transcript and store feedback", "responses": { "201": { "description": "feedback created" } } }
    },
    "/api/v1/interviews/{id}/call": {
      "post": { "summary": "Start a voice interview call", "responses": { "201": { "description": "call session created" }, "502": { "description": "voice gateway unavailable" } } }
    },
    "/api/v1/calls/{id}": {
      "get": { "summary": "Call session snapshot", "responses": { "200": { "description": "status, speaking flag, transcript" }, "404": { "description": "unknown call" } } },
      "delete": { "summary": "Stop a running call", "responses": { "200": { "description": "stopping" } } }
    },
    "/api/v1/calls/{id}/events": {
      "get": { "summary": "WebSocket stream of call lifecycle events", "responses": { "101": { "description": "switching protocols" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
