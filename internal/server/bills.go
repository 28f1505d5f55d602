package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	billdomain "github.com/smallbiznis/billflow/internal/bill/domain"
	billservice "github.com/smallbiznis/billflow/internal/bill/service"
	billquerydomain "github.com/smallbiznis/billflow/internal/billquery/domain"
	"github.com/smallbiznis/billflow/pkg/db/pagination"
)

const (
	defaultWaitTimeout = 5 * time.Second
	maxWaitTimeout     = 30 * time.Second
)

type commandResponse struct {
	BillID  string   `json:"bill_id"`
	Version int64    `json:"version"`
	Applied bool     `json:"applied"`
	Events  []string `json:"events"`
}

func newCommandResponse(res billservice.Result) commandResponse {
	events := make([]string, 0, len(res.Events))
	for _, ev := range res.Events {
		events = append(events, ev.EventType())
	}
	return commandResponse{
		BillID:  res.BillID,
		Version: res.Version,
		Applied: res.Applied,
		Events:  events,
	}
}

type createBillRequest struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Total    decimal.Decimal `json:"total"`
	Metadata map[string]any  `json:"metadata"`
}

func (s *Server) CreateBill(c *gin.Context) {
	var req createBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	res, err := s.dispatcher.Dispatch(c.Request.Context(), billdomain.CreateBill{
		ID:       strings.TrimSpace(req.ID),
		Title:    strings.TrimSpace(req.Title),
		Total:    req.Total,
		Metadata: req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusCreated
	if !res.Applied {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"data": newCommandResponse(res)})
}

func (s *Server) UploadBillFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "invalid_file", "multipart field \"file\" is required"))
		return
	}
	if fh.Size > maxUploadBytes {
		AbortWithError(c, newValidationError("file", "invalid_file", "file is too large"))
		return
	}

	f, err := fh.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	res, err := s.dispatcher.AttachUpload(c.Request.Context(), billservice.UploadRequest{
		BillID:      strings.TrimSpace(c.Param("id")),
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newCommandResponse(res)})
}

type ocrResultRequest struct {
	ExtractedText    string           `json:"extracted_text"`
	ExtractedTotal   *decimal.Decimal `json:"extracted_total"`
	ExtractedTitle   string           `json:"extracted_title"`
	Confidence       float64          `json:"confidence"`
	ProcessingTimeMs int64            `json:"processing_time_ms"`
}

func (s *Server) ApplyOcrResult(c *gin.Context) {
	var req ocrResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	res, err := s.dispatcher.Dispatch(c.Request.Context(), billdomain.ApplyOcrResult{
		BillID:           strings.TrimSpace(c.Param("id")),
		ExtractedText:    req.ExtractedText,
		ExtractedTotal:   req.ExtractedTotal,
		ExtractedTitle:   strings.TrimSpace(req.ExtractedTitle),
		Confidence:       req.Confidence,
		ProcessingTimeMs: req.ProcessingTimeMs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newCommandResponse(res)})
}

type approvalRequest struct {
	ApproverID string `json:"approver_id"`
	Decision   string `json:"decision"`
	Reason     string `json:"reason"`
}

func (s *Server) ApproveBill(c *gin.Context) {
	var req approvalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	res, err := s.dispatcher.Dispatch(c.Request.Context(), billdomain.ApproveBill{
		BillID:     strings.TrimSpace(c.Param("id")),
		ApproverID: strings.TrimSpace(req.ApproverID),
		Decision:   billdomain.Decision(strings.ToUpper(strings.TrimSpace(req.Decision))),
		Reason:     strings.TrimSpace(req.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newCommandResponse(res)})
}

func (s *Server) ListBills(c *gin.Context) {
	var query struct {
		Status      string `form:"status"`
		Title       string `form:"title"`
		MinTotal    string `form:"min_total"`
		MaxTotal    string `form:"max_total"`
		CreatedFrom string `form:"created_from"`
		CreatedTo   string `form:"created_to"`
		SortBy      string `form:"sort_by"`
		Order       string `form:"order"`
		pagination.Pagination
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	minTotal, err := parseOptionalDecimal(query.MinTotal)
	if err != nil {
		AbortWithError(c, newValidationError("min_total", "invalid_min_total", "invalid min_total"))
		return
	}
	maxTotal, err := parseOptionalDecimal(query.MaxTotal)
	if err != nil {
		AbortWithError(c, newValidationError("max_total", "invalid_max_total", "invalid max_total"))
		return
	}
	createdFrom, err := parseOptionalTime(query.CreatedFrom)
	if err != nil {
		AbortWithError(c, newValidationError("created_from", "invalid_created_from", "created_from must be RFC3339"))
		return
	}
	createdTo, err := parseOptionalTime(query.CreatedTo)
	if err != nil {
		AbortWithError(c, newValidationError("created_to", "invalid_created_to", "created_to must be RFC3339"))
		return
	}

	var descending bool
	switch strings.ToLower(strings.TrimSpace(query.Order)) {
	case "", "asc":
	case "desc":
		descending = true
	default:
		AbortWithError(c, newValidationError("order", "invalid_order", "order must be asc or desc"))
		return
	}

	resp, err := s.bills.List(c.Request.Context(), billquerydomain.ListRequest{
		Status:        strings.ToUpper(strings.TrimSpace(query.Status)),
		TitleContains: strings.TrimSpace(query.Title),
		MinTotal:      minTotal,
		MaxTotal:      maxTotal,
		CreatedFrom:   createdFrom,
		CreatedTo:     createdTo,
		SortBy:        strings.TrimSpace(query.SortBy),
		Descending:    descending,
		Pagination:    query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetBill returns the projected bill. With min_version it waits, up to
// wait_timeout, for the projection to reach that version.
func (s *Server) GetBill(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	raw := strings.TrimSpace(c.Query("min_version"))
	if raw == "" {
		view, err := s.bills.GetByID(c.Request.Context(), id)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": view})
		return
	}

	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		AbortWithError(c, newValidationError("min_version", "invalid_version", "min_version must be an integer"))
		return
	}
	timeout, err := parseWaitTimeout(c.Query("wait_timeout"))
	if err != nil {
		AbortWithError(c, newValidationError("wait_timeout", "invalid_wait_timeout", "wait_timeout must be a duration"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	view, err := s.bills.WaitForVersion(ctx, id, version)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrProjectionLagging
		}
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}

func parseOptionalDecimal(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseOptionalTime(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseWaitTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultWaitTimeout, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, ErrInvalidRequest
	}
	if d > maxWaitTimeout {
		d = maxWaitTimeout
	}
	return d, nil
}
