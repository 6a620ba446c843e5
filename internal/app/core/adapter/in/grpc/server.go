package grpc

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-doc-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-doc-ledger/internal/app/core/usecase"
)

// GrpcServer 以 structpb.Struct 作為訊息格式的帳本服務
type GrpcServer struct {
	coordinator *usecase.Coordinator
	accounts    *usecase.AccountService
	logger      *zap.Logger
}

func NewGrpcServer(coordinator *usecase.Coordinator, accounts *usecase.AccountService, logger *zap.Logger) *GrpcServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GrpcServer{
		coordinator: coordinator,
		accounts:    accounts,
		logger:      logger.Named("grpc"),
	}
}

// PostTransaction 執行一筆 CREDIT / DEBIT / TRANSFER
//
// 請求欄位: transaction_type, amount (字串或數字), recipient_account_number, sender_account_number
// 回應欄位: message, document_id
func (s *GrpcServer) PostTransaction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	op, err := domain.NewMoneyOperation(
		stringField(fields, "transaction_type"),
		amountField(fields, "amount"),
		stringField(fields, "sender_account_number"),
		stringField(fields, "recipient_account_number"),
	)
	if err != nil {
		return nil, toStatus(err)
	}

	outcome, err := s.coordinator.Execute(ctx, op)
	if err != nil {
		s.logger.Error("post transaction failed", zap.Error(err))
		return nil, toStatus(err)
	}
	switch outcome.Kind {
	case domain.OutcomeSucceeded:
		return structpb.NewStruct(map[string]any{
			"message":     outcome.Message,
			"document_id": outcome.Receipt,
		})
	case domain.OutcomeAccountNotFound:
		msg := "Recipient account not found"
		if op.Kind == domain.OperationTransfer && outcome.Account == op.Source {
			msg = "Sender account not found"
		}
		return nil, status.Error(codes.NotFound, msg)
	default:
		return nil, toStatus(outcome.Err())
	}
}

// GetBalance 查詢帳戶餘額
//
// 請求欄位: account_number
// 回應欄位: account_number, balance (固定兩位小數字串)
func (s *GrpcServer) GetBalance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	number := stringField(req.GetFields(), "account_number")
	if number == "" {
		return nil, status.Error(codes.InvalidArgument, "account_number cannot be empty")
	}
	account, err := s.accounts.Find(ctx, number)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		"account_number": account.AccountNumber,
		"balance":        domain.FormatAmount(account.Balance),
	})
}

func stringField(fields map[string]*structpb.Value, name string) string {
	return fields[name].GetStringValue()
}

// amountField 數字以最短十進位表示轉成字串，交給 decimal 解析
func amountField(fields map[string]*structpb.Value, name string) string {
	v := fields[name]
	if _, ok := v.GetKind().(*structpb.Value_NumberValue); ok {
		return strconv.FormatFloat(v.GetNumberValue(), 'f', -1, 64)
	}
	return v.GetStringValue()
}

// toStatus 錯誤對應 gRPC 狀態碼
func toStatus(err error) error {
	var (
		payloadErr  *domain.PayloadError
		accountErr  *domain.AccountError
		notFoundErr domain.AccountNotFoundError
	)
	switch {
	case errors.As(err, &payloadErr):
		return status.Error(codes.InvalidArgument, payloadErr.Message)
	case errors.Is(err, domain.ErrInsufficientBalance):
		return status.Error(codes.FailedPrecondition, "Insufficient balance in account")
	case errors.As(err, &notFoundErr):
		return status.Error(codes.NotFound, notFoundErr.Error())
	case errors.As(err, &accountErr):
		return status.Error(codes.FailedPrecondition, accountErr.Message)
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "Unable to process request")
	}
}
