package handler

import (
	"fmt"
	"net/http"
	"time"

	"auditor-service/internal/middleware"
	"auditor-service/internal/service"
	"auditor-service/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reportService service.ReportService
}

func NewReportHandler(reportService service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func (h *ReportHandler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/api/reports")
	{
		reports.GET("/documents", middleware.RequireAuth(), h.ExportDocuments)
	}
}

// ExportDocuments streams an XLSX export of all documents with their verdicts
// @Summary      Export documents report
// @Description  Generates an XLSX file with every stored document header and its verdict
// @Tags         reports
// @Security     BearerAuth
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success      200  {file}    file
// @Failure      500  {object}  response.Response
// @Router       /api/reports/documents [get]
func (h *ReportHandler) ExportDocuments(c *gin.Context) {
	buf, err := h.reportService.ExportDocuments(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	filename := fmt.Sprintf("documents-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}
