package rest

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-doc-ledger/internal/app/core/domain"
)

// 錯誤分類標籤
const (
	labelTransaction = "Transaction Error"
	labelPayload     = "Payload Error"
	labelAccount     = "Account Error"
	labelPlatform    = "Platform Error"
)

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// resolveError 錯誤對應 HTTP 狀態碼與回應內容
func resolveError(err error) (int, errorResponse) {
	var (
		payloadErr  *domain.PayloadError
		accountErr  *domain.AccountError
		notFoundErr domain.AccountNotFoundError
		httpErr     *echo.HTTPError
	)
	switch {
	case errors.As(err, &payloadErr):
		return http.StatusBadRequest, errorResponse{Message: payloadErr.Message, Error: labelPayload}
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusBadRequest, errorResponse{Message: "Insufficient balance in account", Error: labelTransaction}
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, errorResponse{Message: "Account not found: " + notFoundErr.AccountNumber, Error: labelTransaction}
	case errors.As(err, &accountErr):
		return http.StatusBadRequest, errorResponse{Message: accountErr.Message, Error: labelAccount}
	case errors.As(err, &httpErr):
		label := labelPlatform
		switch httpErr.Code {
		case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
			label = labelPayload
		}
		msg, ok := httpErr.Message.(string)
		if !ok {
			msg = http.StatusText(httpErr.Code)
		}
		return httpErr.Code, errorResponse{Message: msg, Error: label}
	default:
		return http.StatusInternalServerError, errorResponse{Message: "Unable to process request", Error: labelPlatform}
	}
}

// handleError 取代 echo 預設的錯誤處理，統一回應格式
func (h *Handler) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, body := resolveError(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Error(err))
	}
	if err := c.JSON(code, body); err != nil {
		h.logger.Warn("write error response", zap.Error(err))
	}
}
