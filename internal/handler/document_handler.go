package handler

import (
	"errors"
	"io"
	"net/http"

	"auditor-service/internal/middleware"
	"auditor-service/internal/model"
	"auditor-service/internal/nfe"
	"auditor-service/internal/repository"
	"auditor-service/internal/service"
	"auditor-service/pkg/pagination"
	"auditor-service/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type DocumentHandler struct {
	ingestService service.IngestService
	validationSvc service.ValidationService
	documentRepo  repository.DocumentRepository
	auditRepo     repository.AuditRepository
}

func NewDocumentHandler(
	ingestService service.IngestService,
	validationSvc service.ValidationService,
	documentRepo repository.DocumentRepository,
	auditRepo repository.AuditRepository,
) *DocumentHandler {
	return &DocumentHandler{
		ingestService: ingestService,
		validationSvc: validationSvc,
		documentRepo:  documentRepo,
		auditRepo:     auditRepo,
	}
}

func (h *DocumentHandler) RegisterRoutes(router *gin.RouterGroup) {
	docs := router.Group("/api/documents")
	{
		docs.POST("/upload", middleware.RequireAuth(), h.UploadDocuments)
		docs.GET("", middleware.RequireAuth(), h.ListDocuments)
		docs.GET("/:accessKey", middleware.RequireAuth(), h.GetDocument)
		docs.GET("/:accessKey/verdict", middleware.RequireAuth(), h.GetVerdict)
	}

	router.GET("/api/schema", middleware.RequireAuth(), h.GetSchema)
	router.GET("/api/audits", middleware.RequireAuth(), h.ListAudits)
}

// fileUploadResult pairs one uploaded file with its ingest outcome.
type fileUploadResult struct {
	Filename string                `json:"filename"`
	Result   *service.IngestResult `json:"result,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// UploadDocuments ingests one or more fiscal document XML files
// @Summary      Upload fiscal documents
// @Description  Parses, persists and validates the uploaded XML files; returns a per-file ingest report
// @Tags         documents
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        files  formData  file  true  "XML files (single document, batch envelope or signed envelope)"
// @Success      200    {object}  response.Response{data=[]handler.fileUploadResult}
// @Failure      400    {object}  response.Response
// @Router       /api/documents/upload [post]
func (h *DocumentHandler) UploadDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid multipart form: "+err.Error()))
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "No files provided; use the 'files' form field"))
		return
	}

	results := make([]fileUploadResult, 0, len(files))
	for _, fh := range files {
		entry := fileUploadResult{Filename: fh.Filename}

		src, err := fh.Open()
		if err != nil {
			entry.Error = "open: " + err.Error()
			results = append(results, entry)
			continue
		}
		data, err := io.ReadAll(src)
		_ = src.Close()
		if err != nil {
			entry.Error = "read: " + err.Error()
			results = append(results, entry)
			continue
		}

		ingest, err := h.ingestService.ProcessXML(c.Request.Context(), data, fh.Filename)
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Result = ingest
		}
		results = append(results, entry)
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, results))
}

// ListDocuments returns a paginated list of stored document headers
// @Summary      List documents
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Failure      500    {object}  response.Response
// @Router       /api/documents [get]
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	params := pagination.Parse(c)

	docs, total, err := h.documentRepo.List(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, "documents", docs, total, params.Page, params.Limit))
}

// GetDocument returns one stored document with its items
// @Summary      Get document by access key
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        accessKey  path      string  true  "44-digit access key"
// @Success      200        {object}  response.Response{data=object}
// @Failure      404        {object}  response.Response
// @Router       /api/documents/{accessKey} [get]
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	accessKey := c.Param("accessKey")
	if !nfe.VerifyAccessKey(accessKey) {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid access key"))
		return
	}

	doc, err := h.documentRepo.FindByAccessKey(c.Request.Context(), accessKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Document not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	items, err := h.documentRepo.ListItems(c.Request.Context(), accessKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"document": doc,
		"items":    items,
	}))
}

// GetVerdict runs the consistency checks for one stored document
// @Summary      Get document verdict
// @Description  Runs the duplicate, required-field and reconciliation checks and returns the aggregated verdict
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        accessKey  path      string  true  "44-digit access key"
// @Success      200        {object}  response.Response{data=service.Verdict}
// @Failure      404        {object}  response.Response
// @Router       /api/documents/{accessKey}/verdict [get]
func (h *DocumentHandler) GetVerdict(c *gin.Context) {
	accessKey := c.Param("accessKey")

	set, err := h.validationSvc.ValidateAll(c.Request.Context(), accessKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Document not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, h.validationSvc.Aggregate(set)))
}

// GetSchema exposes the storage structure for reporting consumers
// @Summary      Get storage schema
// @Tags         schema
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=object}
// @Router       /api/schema [get]
func (h *DocumentHandler) GetSchema(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, model.SchemaInfo()))
}

// ListAudits returns stored audit results, newest first
// @Summary      List audit results
// @Tags         audits
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Failure      500    {object}  response.Response
// @Router       /api/audits [get]
func (h *DocumentHandler) ListAudits(c *gin.Context) {
	params := pagination.Parse(c)

	audits, total, err := h.auditRepo.List(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, "audits", audits, total, params.Page, params.Limit))
}
