// backend-go/internal/api/handlers/analysis_handler.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/aurafarma/backend-go/internal/analysis"
	"github.com/aurafarma/backend-go/internal/domain"
	"github.com/aurafarma/backend-go/internal/ingest"
	"github.com/aurafarma/backend-go/internal/repository/postgres"
	"github.com/aurafarma/backend-go/internal/review"
	"github.com/aurafarma/backend-go/internal/service"
	"github.com/aurafarma/backend-go/internal/storage"
)

type AnalysisHandler struct {
	svc         *service.AnalysisService
	uploadDir   string
	objectStore storage.ObjectStorage
}

// NewAnalysisHandler wires the review API. objectStore may be nil; when
// set, uploaded spreadsheets are archived there.
func NewAnalysisHandler(svc *service.AnalysisService, uploadDir string, objectStore storage.ObjectStorage) *AnalysisHandler {
	return &AnalysisHandler{svc: svc, uploadDir: uploadDir, objectStore: objectStore}
}

// respondError maps domain errors onto HTTP statuses. The cool-down and
// confirmation cases are expected UI flow, not failures, so they are not
// logged as errors.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, review.ErrCooldownActive):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, review.ErrConfirmationRequired):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "confirmation_required": true})
	case errors.Is(err, analysis.ErrItemValidated), errors.Is(err, service.ErrAuditIncomplete):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoSession),
		errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, postgres.ErrSnapshotNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, review.ErrExemptItem),
		errors.Is(err, review.ErrNotValidated),
		errors.Is(err, service.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Msg("api: request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// Analyze accepts a consumption spreadsheet and runs a fresh analysis.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a spreadsheet file is required"})
		return
	}

	referenceMonth := strings.TrimSpace(c.PostForm("reference_month"))
	excludeColdChain := c.PostForm("exclude_cold_chain") != "false"

	filePath := filepath.Join(h.uploadDir, file.Filename)
	if err := c.SaveUploadedFile(file, filePath); err != nil {
		log.Error().Err(err).Str("filename", file.Filename).Msg("failed to save uploaded file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save uploaded file"})
		return
	}

	items, err := ingest.ParseFile(filePath)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("could not parse spreadsheet: %v", err)})
		return
	}
	if len(items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "spreadsheet has no data rows"})
		return
	}

	h.archiveUpload(c, filePath, file.Filename)

	result, err := h.svc.Run(c.Request.Context(), items, referenceMonth, excludeColdChain)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *AnalysisHandler) archiveUpload(c *gin.Context, filePath, filename string) {
	if h.objectStore == nil {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		log.Warn().Err(err).Str("path", filePath).Msg("api: could not read upload for archiving")
		return
	}
	key := fmt.Sprintf("uploads/%s/%s", time.Now().UTC().Format("2006-01"), filename)
	if err := h.objectStore.UploadObject(c.Request.Context(), key, data, "application/octet-stream"); err != nil {
		log.Warn().Err(err).Str("object", key).Msg("api: upload archive failed")
	}
}

// Current returns the loaded analysis run.
func (h *AnalysisHandler) Current(c *gin.Context) {
	result, err := h.svc.Current()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Items returns a filtered, paginated item list.
func (h *AnalysisHandler) Items(c *gin.Context) {
	filter := domain.ItemFilter{
		Search:      c.Query("search"),
		PendingOnly: c.Query("pending") == "true",
		Page:        parsePositiveIntWithDefault(c.Query("page"), 1),
		PageSize:    parsePositiveIntWithDefault(c.Query("page_size"), 50),
		Fields:      map[domain.FilterField][]string{},
	}

	for _, field := range []domain.FilterField{
		domain.FieldStatus, domain.FieldForm, domain.FieldType,
		domain.FieldPetitorio, domain.FieldSituation,
		domain.FieldRateMode, domain.FieldExpiryRisk,
	} {
		if values, ok := c.GetQueryArray(string(field)); ok {
			filter.Fields[field] = values
		}
	}

	page, err := h.svc.Items(filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Item returns one analyzed item.
func (h *AnalysisHandler) Item(c *gin.Context) {
	item, err := h.svc.Item(c.Param("itemID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Focus marks an item as displayed, arming its validation cool-down.
func (h *AnalysisHandler) Focus(c *gin.Context) {
	id := c.Param("itemID")
	if err := h.svc.Focus(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cooldown_remaining_ms": h.svc.CooldownRemaining(id).Milliseconds(),
	})
}

type modeRequest struct {
	Mode domain.RateMode `json:"mode" binding:"required"`
}

// SwitchMode toggles an item's consumption-rate variant.
func (h *AnalysisHandler) SwitchMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode is required"})
		return
	}

	item, err := h.svc.SwitchMode(c.Request.Context(), c.Param("itemID"), req.Mode)
	if err != nil {
		if !req.Mode.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

type quantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// SetQuantity overrides the order quantity for a pending item.
func (h *AnalysisHandler) SetQuantity(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity is required"})
		return
	}

	item, err := h.svc.SetManualQuantity(c.Request.Context(), c.Param("itemID"), *req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Validate confirms an item's audited quantity.
func (h *AnalysisHandler) Validate(c *gin.Context) {
	if err := h.svc.ValidateItem(c.Request.Context(), c.Param("itemID")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"validated": true})
}

type unlockRequest struct {
	Confirmed bool `json:"confirmed"`
}

// Unlock returns a validated item to pending.
func (h *AnalysisHandler) Unlock(c *gin.Context) {
	var req unlockRequest
	_ = c.ShouldBindJSON(&req)

	item, err := h.svc.UnlockItem(c.Request.Context(), c.Param("itemID"), req.Confirmed)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Review reports audit progress and the suggested next pending item.
func (h *AnalysisHandler) Review(c *gin.Context) {
	status, err := h.svc.Review(c.Query("after"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Report streams the requirement CSV. Blocked until the audit completes.
func (h *AnalysisHandler) Report(c *gin.Context) {
	report, objectName, err := h.svc.ExportReport(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	filename := filepath.Base(objectName)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", report)
}

// Save persists the session snapshot.
func (h *AnalysisHandler) Save(c *gin.Context) {
	if err := h.svc.Save(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": true})
}

// Runs lists saved analysis runs.
func (h *AnalysisHandler) Runs(c *gin.Context) {
	limit := parsePositiveIntWithDefault(c.Query("limit"), 50)
	runs, err := h.svc.Runs(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, runs)
}

// LoadRun resumes a saved run.
func (h *AnalysisHandler) LoadRun(c *gin.Context) {
	result, err := h.svc.LoadRun(c.Request.Context(), c.Param("runID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// LoadLatest resumes the most recently saved run.
func (h *AnalysisHandler) LoadLatest(c *gin.Context) {
	result, err := h.svc.LoadLatest(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AdditionalItems lists the session's manual line items.
func (h *AnalysisHandler) AdditionalItems(c *gin.Context) {
	items, err := h.svc.AdditionalItems()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// AddAdditionalItem appends a manual line item.
func (h *AnalysisHandler) AddAdditionalItem(c *gin.Context) {
	var item domain.AdditionalItem
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid additional item payload"})
		return
	}

	added, err := h.svc.AddAdditionalItem(c.Request.Context(), item)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, added)
}

func parsePositiveIntWithDefault(value string, fallback int) int {
	if fallback <= 0 {
		fallback = 50
	}
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && v > 0 {
		return v
	}
	return fallback
}
