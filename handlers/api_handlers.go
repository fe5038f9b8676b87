package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"grouping-server-go/config"
	"grouping-server-go/db"
	"grouping-server-go/export"
	"grouping-server-go/grouping"
	"grouping-server-go/models"
	"grouping-server-go/roster"
)

// APIHandler holds the dependencies for API handlers, like the Redis service
type APIHandler struct {
	RedisService   *db.RedisService
	Defaults       grouping.Options
	ArtifactTTL    time.Duration
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(service *db.RedisService, cfg config.Config, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{
		RedisService:   service,
		Defaults:       cfg.Grouping,
		ArtifactTTL:    cfg.ArtifactTTL,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Logger:         logger,
	}
}

// --- Class Handlers ---

// GetAllClasses handles GET /api/classes
func (h *APIHandler) GetAllClasses(c *gin.Context) {
	classes, err := h.RedisService.GetAllClasses(c.Request.Context())
	if err != nil {
		h.Logger.Error("failed to list classes", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve classes"})
		return
	}
	c.JSON(http.StatusOK, classes)
}

// GetClassByID handles GET /api/classes/:classId
func (h *APIHandler) GetClassByID(c *gin.Context) {
	classID := c.Param("classId")

	clazz, err := h.RedisService.GetClassByID(c.Request.Context(), classID)
	if err != nil {
		h.Logger.Error("failed to get class", "classId", classID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve class details"})
		return
	}
	if clazz == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Class not found"})
		return
	}

	c.JSON(http.StatusOK, clazz)
}

// AddClass handles POST /api/classes
func (h *APIHandler) AddClass(c *gin.Context) {
	var newClass models.Clazz
	if err := c.ShouldBindJSON(&newClass); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if newClass.ID == "" || newClass.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Class ID and Name are required"})
		return
	}

	if err := h.RedisService.AddClass(c.Request.Context(), newClass); err != nil {
		h.Logger.Error("failed to add class", "classId", newClass.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add class"})
		return
	}

	c.JSON(http.StatusCreated, newClass)
}

// --- Student Handlers ---

// GetStudentsByClass handles GET /api/classes/:classId/students
func (h *APIHandler) GetStudentsByClass(c *gin.Context) {
	classID := c.Param("classId")
	if !h.requireClass(c, classID) {
		return
	}

	entries, err := h.RedisService.GetRoster(c.Request.Context(), classID)
	if err != nil {
		h.Logger.Error("failed to get roster", "classId", classID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve students for the class"})
		return
	}

	c.JSON(http.StatusOK, entries)
}

// AddStudent handles POST /api/classes/:classId/students
func (h *APIHandler) AddStudent(c *gin.Context) {
	classID := c.Param("classId")

	var entry models.RosterEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := h.RedisService.AddStudent(c.Request.Context(), classID, entry); err != nil {
		h.Logger.Error("failed to add student", "classId", classID, "error", err)
		respondError(c, "Failed to add student", err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// requireClass writes a 404 or 500 and returns false unless the class exists.
func (h *APIHandler) requireClass(c *gin.Context, classID string) bool {
	exists, err := h.RedisService.ClassExists(c.Request.Context(), classID)
	if err != nil {
		h.Logger.Error("failed to check class", "classId", classID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify class"})
		return false
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Class not found"})
		return false
	}
	return true
}

// --- Import Handler ---

// ImportStudents handles POST /api/import/students
func (h *APIHandler) ImportStudents(c *gin.Context) {
	file, header, ok := h.formFile(c)
	if !ok {
		return
	}
	defer file.Close()

	classID := c.PostForm("classId")
	if classID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'classId' in form data"})
		return
	}
	replace, _ := strconv.ParseBool(c.PostForm("replace"))

	h.Logger.Info("received roster upload", "file", header.Filename, "classId", classID)

	importedCount, err := h.RedisService.ImportRoster(c.Request.Context(), classID, header.Filename, file, replace)
	if err != nil {
		h.Logger.Error("failed to import roster", "file", header.Filename, "classId", classID, "error", err)
		respondError(c, "Failed to import students", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Import successful",
		"importedCount": importedCount,
		"classId":       classID,
	})
}

func (h *APIHandler) formFile(c *gin.Context) (multipart.File, *multipart.FileHeader, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("Uploaded file exceeds %d bytes", h.MaxUploadBytes)})
			return nil, nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error retrieving uploaded file: " + err.Error()})
		return nil, nil, false
	}
	return file, header, true
}

// --- Grouping Handlers ---

// GroupClass handles POST /api/classes/:classId/groupings. The body is an
// optional JSON options object.
func (h *APIHandler) GroupClass(c *gin.Context) {
	classID := c.Param("classId")

	var req groupingRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	opts, err := req.options(h.Defaults)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.requireClass(c, classID) {
		return
	}
	entries, err := h.RedisService.GetRoster(c.Request.Context(), classID)
	if err != nil {
		h.Logger.Error("failed to get roster", "classId", classID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve students for the class"})
		return
	}

	h.group(c, &models.Run{ClassID: classID, Source: classID}, entries, opts)
}

// GroupUpload handles POST /api/groupings: a roster file plus form options.
func (h *APIHandler) GroupUpload(c *gin.Context) {
	file, header, ok := h.formFile(c)
	if !ok {
		return
	}
	defer file.Close()

	var req groupingRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid options: " + err.Error()})
		return
	}
	opts, err := req.options(h.Defaults)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entries, err := roster.Parse(header.Filename, file)
	if err != nil {
		h.Logger.Warn("failed to parse roster upload", "file", header.Filename, "error", err)
		respondError(c, "Failed to read roster", err)
		return
	}

	h.group(c, &models.Run{Source: header.Filename}, entries, opts)
}

func (h *APIHandler) group(c *gin.Context, run *models.Run, entries []models.RosterEntry, opts grouping.Options) {
	res, err := grouping.BuildGroups(entries, opts)
	if err != nil {
		h.Logger.Warn("grouping failed", "source", run.Source, "options", opts.String(), "error", err)
		respondError(c, "Failed to build groups", err)
		return
	}
	if len(res.Dropped) > 0 {
		h.Logger.Warn("students with unknown sex labels left out", "source", run.Source, "count", len(res.Dropped))
	}

	run.ID = uuid.NewString()
	run.CreatedAt = time.Now().UTC()
	run.Groups = res.Groups
	run.Dropped = res.Dropped
	run.Mixed = opts.Mixed
	run.MaxSpread = opts.MaxSpread
	run.GroupSize = opts.GroupSize

	if err := h.RedisService.SaveRun(c.Request.Context(), run, h.ArtifactTTL); err != nil {
		h.Logger.Error("failed to store grouping run", "runId", run.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store grouping run"})
		return
	}

	h.Logger.Info("built groups", "runId", run.ID, "source", run.Source, "students", len(entries), "groups", len(run.Groups), "options", opts.String())
	c.JSON(http.StatusCreated, runResponse(run))
}

func runResponse(run *models.Run) gin.H {
	base := "/api/groupings/" + run.ID + "/download?format="
	return gin.H{
		"run":          run,
		"droppedCount": len(run.Dropped),
		"download": gin.H{
			"csv":  base + "csv",
			"xlsx": base + "xlsx",
		},
	}
}

// GetRun handles GET /api/groupings/:runId
func (h *APIHandler) GetRun(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, runResponse(run))
}

// DownloadRun handles GET /api/groupings/:runId/download?format=csv|xlsx
func (h *APIHandler) DownloadRun(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")

	var (
		write       func(io.Writer, []models.Group) error
		contentType string
	)
	switch format {
	case "csv":
		write, contentType = export.WriteCSV, export.ContentTypeCSV
	case "xlsx":
		write, contentType = export.WriteExcel, export.ContentTypeXLSX
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown format, use csv or xlsx"})
		return
	}

	run, ok := h.loadRun(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, run.Groups); err != nil {
		h.Logger.Error("failed to export run", "runId", run.ID, "format", format, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export groups"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(run.Source, format)))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (h *APIHandler) loadRun(c *gin.Context) (*models.Run, bool) {
	runID := c.Param("runId")

	run, err := h.RedisService.GetRun(c.Request.Context(), runID)
	if err != nil {
		h.Logger.Error("failed to load run", "runId", runID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load grouping run"})
		return nil, false
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Grouping run not found or expired"})
		return nil, false
	}
	return run, true
}

// --- Ping Handler ---

// Ping handles GET /api/ping and checks Redis on the way.
func (h *APIHandler) Ping(c *gin.Context) {
	if err := h.RedisService.Ping(c.Request.Context()); err != nil {
		h.Logger.Error("redis ping failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Redis unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Pong!"})
}
