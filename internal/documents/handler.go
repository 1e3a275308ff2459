package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docseal/signature-backend/internal/domain"
	"docseal/signature-backend/internal/ledger"
)

const (
	mimePDF  = "application/pdf"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimePEM  = "application/x-pem-file"
	mimeCSV  = "text/csv"

	// multipartOverhead allows for boundaries and form fields around the file.
	multipartOverhead = 1 << 20
)

type Handler struct {
	service        Service
	logger         *zap.Logger
	maxUploadBytes int64
}

func NewHandler(service Service, logger *zap.Logger, maxUploadBytes int64) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger, maxUploadBytes: maxUploadBytes}
}

// RegisterRoutes mounts the document, signature, attestation and key routes.
// Key generation is only mounted when adminGuard is non-nil.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, adminGuard gin.HandlerFunc) {
	docs := rg.Group("/documents")
	{
		docs.POST("/sign", h.Sign)
		docs.POST("/verify", h.Verify)
		docs.POST("/extract-attestation", h.ExtractAttestation)
		docs.POST("/generate-receipt", h.GenerateReceipt)
		docs.GET("/download/:filename", h.Download)
	}

	sigs := rg.Group("/signatures")
	{
		sigs.GET("", h.ListSignatures)
		sigs.GET("/export", h.ExportSignatures)
		sigs.POST("/verify", h.VerifySignature)
	}

	rg.POST("/attestations/verify", h.VerifyAttestation)

	keys := rg.Group("/keys")
	{
		keys.GET("/public", h.PublicKey)
		if adminGuard != nil {
			keys.POST("/generate", adminGuard, h.GenerateKeys)
		}
	}
}

func (h *Handler) Sign(c *gin.Context) {
	filename, doc, err := h.readUpload(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	res, err := h.service.Sign(c.Request.Context(), SignRequest{
		Filename:        filename,
		Document:        doc,
		TransactionID:   c.PostForm("transaction_id"),
		CustomerName:    c.PostForm("customer_name"),
		TransactionDate: c.PostForm("transaction_date"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	if c.Query("format") == "pdf" {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.SignedFile))
		c.Header("X-Transaction-ID", res.TransactionID)
		c.Header("X-Document-Hash", string(res.Fingerprint))
		c.Data(http.StatusOK, mimePDF, res.Document)
		return
	}
	h.ok(c, http.StatusOK, res)
}

func (h *Handler) Verify(c *gin.Context) {
	_, doc, err := h.readUpload(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	verdict, err := h.service.Verify(c.Request.Context(), doc)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "verification": verdict})
}

func (h *Handler) ExtractAttestation(c *gin.Context) {
	_, doc, err := h.readUpload(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	att, err := h.service.ExtractAttestation(c.Request.Context(), doc)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "attestation": att})
}

func (h *Handler) GenerateReceipt(c *gin.Context) {
	var req ReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}
	doc, err := h.service.GenerateReceipt(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	name := "receipt.pdf"
	if req.TransactionID != "" {
		name = safeName("receipt_"+req.TransactionID+".pdf", name)
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, mimePDF, doc)
}

func (h *Handler) Download(c *gin.Context) {
	name := c.Param("filename")
	rc, err := h.service.Download(c.Request.Context(), name)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, mimePDF, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name),
	})
}

type verifySignatureRequest struct {
	DocumentHash string `json:"document_hash" binding:"required"`
	Signature    string `json:"signature" binding:"required"`
}

func (h *Handler) VerifySignature(c *gin.Context) {
	var req verifySignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fmt.Errorf("%w: document_hash and signature are required", domain.ErrInvalidInput))
		return
	}
	check, err := h.service.VerifyByValue(c.Request.Context(), req.DocumentHash, req.Signature)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, check)
}

type verifyAttestationRequest struct {
	QRData string `json:"qr_data" binding:"required"`
}

func (h *Handler) VerifyAttestation(c *gin.Context) {
	var req verifyAttestationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fmt.Errorf("%w: qr_data is required", domain.ErrInvalidInput))
		return
	}
	verdict, err := h.service.VerifyAttestationPayload(c.Request.Context(), req.QRData)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, verdict)
}

func (h *Handler) ListSignatures(c *gin.Context) {
	filter := ledger.ListFilter{
		TransactionID: c.Query("transaction_id"),
		Fingerprint:   c.Query("document_hash"),
	}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			h.fail(c, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrInvalidInput))
			return
		}
		filter.Limit = n
	}
	recs, err := h.service.ListSignatures(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	if recs == nil {
		recs = []ledger.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "signatures": recs, "count": len(recs)})
}

func (h *Handler) ExportSignatures(c *gin.Context) {
	format := c.Query("format")
	if format == "" {
		format = ledger.FormatXLSX
	}
	var buf bytes.Buffer
	if err := h.service.ExportSignatures(c.Request.Context(), &buf, format); err != nil {
		h.fail(c, err)
		return
	}
	mime := mimeXLSX
	if format == ledger.FormatCSV {
		mime = mimeCSV
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="signatures.%s"`, format))
	c.Data(http.StatusOK, mime, buf.Bytes())
}

func (h *Handler) PublicKey(c *gin.Context) {
	pem, err := h.service.PublicKey(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, mimePEM, pem)
}

func (h *Handler) GenerateKeys(c *gin.Context) {
	info, err := h.service.GenerateKeys(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, info)
}

// readUpload reads the multipart "file" field, enforcing the upload limit.
func (h *Handler) readUpload(c *gin.Context) (string, []byte, error) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, fmt.Errorf("%w: upload exceeds %d bytes", domain.ErrDocumentTooLarge, h.maxUploadBytes)
		}
		return "", nil, fmt.Errorf("%w: file is required", domain.ErrInvalidInput)
	}
	if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
		return "", nil, fmt.Errorf("%w: %d bytes, limit is %d", domain.ErrDocumentTooLarge, fh.Size, h.maxUploadBytes)
	}

	f, err := fh.Open()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return fh.Filename, data, nil
}

// ok writes payload's fields alongside "success": true.
func (h *Handler) ok(c *gin.Context, status int, payload any) {
	body := gin.H{}
	raw, err := json.Marshal(payload)
	if err == nil {
		err = json.Unmarshal(raw, &body)
	}
	if err != nil {
		h.fail(c, fmt.Errorf("failed to encode response: %w", err))
		return
	}
	body["success"] = true
	c.JSON(status, body)
}

func (h *Handler) fail(c *gin.Context, err error) {
	kind, status := classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("error_kind", string(kind)),
			zap.Error(err),
		)
		msg = publicMessage(kind)
	} else {
		h.logger.Debug("Request rejected",
			zap.String("path", c.FullPath()),
			zap.String("error_kind", string(kind)),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"success":    false,
		"error_kind": kind,
		"error":      msg,
	})
}

var statusByKind = map[domain.Kind]int{
	domain.KindInvalidInput:         http.StatusBadRequest,
	domain.KindContentExtraction:    http.StatusUnprocessableEntity,
	domain.KindAttestationNotFound:  http.StatusUnprocessableEntity,
	domain.KindAttestationMalformed: http.StatusUnprocessableEntity,
	domain.KindDocumentTooLarge:     http.StatusRequestEntityTooLarge,
	domain.KindNotFound:             http.StatusNotFound,
	domain.KindForbidden:            http.StatusForbidden,
	domain.KindTimeout:              http.StatusGatewayTimeout,
	domain.KindKeyLoad:              http.StatusInternalServerError,
	domain.KindSigning:              http.StatusInternalServerError,
	domain.KindVerificationIO:       http.StatusInternalServerError,
	domain.KindInternal:             http.StatusInternalServerError,
}

func classify(err error) (domain.Kind, int) {
	kind := domain.KindOf(err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = domain.KindTimeout
	}
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	return kind, status
}

func publicMessage(kind domain.Kind) string {
	switch kind {
	case domain.KindKeyLoad:
		return domain.ErrKeyLoad.Error()
	case domain.KindSigning:
		return domain.ErrSigning.Error()
	case domain.KindVerificationIO:
		return domain.ErrVerificationIO.Error()
	default:
		return "internal server error"
	}
}
