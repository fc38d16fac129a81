package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# oddly.news briefing service

Generates spoken market briefings from Polymarket odds and news context, and
provisions agents with an HD wallet and an ENS subdomain.

## Auth

Write routes under /api/ require "Authorization: Bearer <admin token>" when an
admin token is configured. Reads and health endpoints are public.

## Routes

- GET /healthz
- GET /readyz
- GET /metrics
- GET /swagger/index.html
- GET /api/agents
- GET /api/agents/:topic
- GET /api/agents/:topic/generate?force=true
- GET /api/agents/:topic/history
- POST /api/agents/:topic/retry-ens
- POST /api/create-agent
`)
	})
}
