package handler

import (
	"net/http"

	"event-booking-api/internal/middleware"
	"event-booking-api/pkg/response"

	"github.com/gin-gonic/gin"
)

type RouteRegistrar interface {
	RegisterRoutes(r *gin.Engine)
}

// NewRouter 建立 gin engine 並掛上共用 middleware
func NewRouter(registrars ...RouteRegistrar) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Tracing(), middleware.RequestLogger())

	for _, registrar := range registrars {
		registrar.RegisterRoutes(r)
	}

	r.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, "Route not found")
	})

	return r
}
