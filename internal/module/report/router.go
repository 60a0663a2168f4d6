package report

import (
	"github.com/gin-gonic/gin"
)

type Router struct{}

func (rt Router) Register(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	{
		v1.GET("/report", HandlerGetReport) // GET /api/v1/report?partition=xxx
	}
}
