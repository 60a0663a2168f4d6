package report

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"slurmtools/internal/pkg/client/slurmctl"
	"slurmtools/internal/pkg/common/response"
	"slurmtools/internal/pkg/report"
)

type reportQuery struct {
	Partition string `form:"partition"`
}

// HandlerGetReport returns the queue utilization and node inventory
// aggregation as JSON.
func HandlerGetReport(c *gin.Context) {
	cli := slurmctl.Default()
	if cli == nil {
		c.JSON(http.StatusInternalServerError, response.Response{Detail: "slurmctl client not initialized"})
		return
	}

	var q reportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, response.Response{Detail: "invalid query parameters"})
		return
	}

	jobs, err := cli.GetJobs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Response{Detail: err.Error()})
		return
	}
	nodes, err := cli.GetNodes(c.Request.Context(), q.Partition)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Response{Detail: err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.Response{Data: report.Build(jobs, nodes)})
}
