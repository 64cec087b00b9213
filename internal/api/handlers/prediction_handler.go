package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/inventory-advisor/internal/advisor"
	"github.com/andresuchdata/inventory-advisor/internal/domain"
	"github.com/andresuchdata/inventory-advisor/internal/ingest"
	"github.com/andresuchdata/inventory-advisor/internal/repository"
	"github.com/andresuchdata/inventory-advisor/internal/service"
)

const defaultMaxUploadBytes = 32 << 20

type PredictionOptions struct {
	MaxUploadBytes      int64
	DefaultLeadTimeDays int
}

type PredictionHandler struct {
	service *service.PredictionService
	opts    PredictionOptions
}

func NewPredictionHandler(service *service.PredictionService, opts PredictionOptions) *PredictionHandler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.DefaultLeadTimeDays <= 0 {
		opts.DefaultLeadTimeDays = advisor.DefaultLeadTimeDays
	}
	return &PredictionHandler{service: service, opts: opts}
}

// Predict accepts either a JSON body with sales, products and config, or a
// multipart form carrying a sales file and a products file.
func (h *PredictionHandler) Predict(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes)

	var (
		req  domain.PredictionRequest
		meta domain.RunMeta
		err  error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req, meta, err = h.readUpload(c)
	} else {
		req, err = advisor.DecodeRequest(c.Request.Body)
	}
	if err != nil {
		h.inputError(c, err)
		return
	}

	run, err := h.service.Predict(c.Request.Context(), req, meta)
	if err != nil {
		log.Error().Err(err).Msg("prediction failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "failed to generate predictions",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Predictions generated successfully",
		"data":    run.Response,
		"runId":   run.ID,
	})
}

func (h *PredictionHandler) readUpload(c *gin.Context) (domain.PredictionRequest, domain.RunMeta, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return domain.PredictionRequest{}, domain.RunMeta{}, err
	}

	files := uploadedFiles(form)
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Filename
	}

	salesIdx, productsIdx, err := ingest.ClassifyFiles(names)
	if err != nil {
		return domain.PredictionRequest{}, domain.RunMeta{}, err
	}

	sales, err := readUploadedFile(files[salesIdx])
	if err != nil {
		return domain.PredictionRequest{}, domain.RunMeta{}, err
	}
	products, err := readUploadedFile(files[productsIdx])
	if err != nil {
		return domain.PredictionRequest{}, domain.RunMeta{}, err
	}

	leadTime := h.opts.DefaultLeadTimeDays
	if v, err := strconv.Atoi(strings.TrimSpace(c.PostForm("leadTimeDays"))); err == nil && v >= 0 {
		leadTime = v
	}

	meta := domain.RunMeta{
		SalesSource:    files[salesIdx].Filename,
		ProductsSource: files[productsIdx].Filename,
	}
	return ingest.BuildRequest(sales, products, leadTime), meta, nil
}

// uploadedFiles returns the files of the "files" field, or every uploaded
// file ordered by field name when that field is absent.
func uploadedFiles(form *multipart.Form) []*multipart.FileHeader {
	if files := form.File["files"]; len(files) > 0 {
		return files
	}

	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var files []*multipart.FileHeader
	for _, field := range fields {
		files = append(files, form.File[field]...)
	}
	return files
}

func readUploadedFile(fh *multipart.FileHeader) ([]map[string]any, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ingest.ReadRecords(f, fh.Filename)
}

func (h *PredictionHandler) inputError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
	}

	log.Warn().Err(err).Msg("rejected prediction input")
	c.JSON(status, gin.H{
		"success": false,
		"error":   "invalid prediction input",
		"details": err.Error(),
	})
}

// ListRuns returns stored runs, newest first
func (h *PredictionHandler) ListRuns(c *gin.Context) {
	limit := parsePositiveIntWithDefault(c.Query("limit"), 20)

	runs, err := h.service.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.historyError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": runs})
}

// GetRun returns one stored run with its predictions
func (h *PredictionHandler) GetRun(c *gin.Context) {
	run, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.historyError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": run})
}

// FlushCache drops every cached prediction response
func (h *PredictionHandler) FlushCache(c *gin.Context) {
	if err := h.service.FlushCache(c.Request.Context()); err != nil {
		log.Error().Err(err).Msg("failed to flush prediction cache")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to flush prediction cache"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *PredictionHandler) historyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrRunNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "prediction run not found"})
	case errors.Is(err, service.ErrHistoryDisabled):
		c.JSON(http.StatusNotImplemented, gin.H{"success": false, "error": err.Error()})
	default:
		log.Error().Err(err).Msg("failed to fetch prediction history")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to fetch predictions"})
	}
}

func parsePositiveIntWithDefault(value string, fallback int) int {
	if fallback <= 0 {
		fallback = 20
	}
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && v > 0 {
		return v
	}
	return fallback
}
