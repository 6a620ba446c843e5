// Package rest 以 echo 提供帳戶與交易的 HTTP API
package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-doc-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-doc-ledger/internal/app/core/usecase"
)

// Handler HTTP 入口
type Handler struct {
	coordinator *usecase.Coordinator
	accounts    *usecase.AccountService
	logger      *zap.Logger
}

// NewHandler 建立 Handler
func NewHandler(coordinator *usecase.Coordinator, accounts *usecase.AccountService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		coordinator: coordinator,
		accounts:    accounts,
		logger:      logger.Named("rest"),
	}
}

// NewServer 建立已註冊路由與 middleware 的 echo 實例
func NewServer(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = h.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			h.logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	h.Register(e)
	return e
}

// Register 註冊路由
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/account", h.ListAccounts)
	e.POST("/account", h.CreateAccount)
	e.GET("/account/:account_number", h.GetAccount)
	e.DELETE("/account/:account_number", h.DeleteAccount)
	e.POST("/transaction", h.PostTransaction)
}

type messageResponse struct {
	Message string `json:"message"`
}

type accountRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type accountResponse struct {
	AccountNumber string    `json:"account_number"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Balance       string    `json:"balance"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toAccountResponse(a domain.Account) accountResponse {
	return accountResponse{
		AccountNumber: a.AccountNumber,
		Name:          a.Name,
		Phone:         a.Phone,
		Balance:       domain.FormatAmount(a.Balance),
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// transactionRequest amount 可以是數字或字串
type transactionRequest struct {
	Amount                 json.Number `json:"amount"`
	SenderAccountNumber    string      `json:"sender_account_number"`
	RecipientAccountNumber string      `json:"recipient_account_number"`
	TransactionType        string      `json:"transaction_type"`
}

type transactionResponse struct {
	Message    string `json:"message"`
	DocumentID string `json:"document_id"`
}

func (h *Handler) ListAccounts(c echo.Context) error {
	accounts, err := h.accounts.List(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) CreateAccount(c echo.Context) error {
	var req accountRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	account, err := h.accounts.Create(c.Request().Context(), req.Name, req.Phone)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toAccountResponse(account))
}

func (h *Handler) GetAccount(c echo.Context) error {
	account, err := h.accounts.Find(c.Request().Context(), c.Param("account_number"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAccountResponse(account))
}

func (h *Handler) DeleteAccount(c echo.Context) error {
	if _, err := h.accounts.Delete(c.Request().Context(), c.Param("account_number")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Successfully deleted account"})
}

func (h *Handler) PostTransaction(c echo.Context) error {
	var req transactionRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	op, err := domain.NewMoneyOperation(req.TransactionType, req.Amount.String(), req.SenderAccountNumber, req.RecipientAccountNumber)
	if err != nil {
		return err
	}

	outcome, err := h.coordinator.Execute(c.Request().Context(), op)
	if err != nil {
		return err
	}
	switch outcome.Kind {
	case domain.OutcomeSucceeded:
		return c.JSON(http.StatusOK, transactionResponse{Message: outcome.Message, DocumentID: outcome.Receipt})
	case domain.OutcomeAccountNotFound:
		msg := "Recipient account not found"
		if op.Kind == domain.OperationTransfer && outcome.Account == op.Source {
			msg = "Sender account not found"
		}
		return c.JSON(http.StatusNotFound, errorResponse{Message: msg, Error: labelTransaction})
	default:
		return outcome.Err()
	}
}
