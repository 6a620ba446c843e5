package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-doc-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-doc-ledger/internal/app/core/usecase"
)

func startServer(t *testing.T) (*Client, *usecase.AccountService) {
	t.Helper()
	store, err := memory.NewStore()
	require.NoError(t, err)
	accounts := usecase.NewAccountService(store, nil)

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterLedgerServiceServer(s, NewGrpcServer(usecase.NewCoordinator(store, nil), accounts, nil))
	go func() {
		_ = s.Serve(lis)
	}()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn), accounts
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestPostTransactionAndGetBalance(t *testing.T) {
	client, accounts := startServer(t)
	ctx := context.Background()
	alice, err := accounts.Create(ctx, "Alice", "0912345678")
	require.NoError(t, err)

	resp, err := client.PostTransaction(ctx, mustStruct(t, map[string]any{
		"transaction_type":         "CREDIT",
		"amount":                   150.25,
		"recipient_account_number": alice.AccountNumber,
	}))
	require.NoError(t, err)
	assert.Equal(t, "Successfully credited 150.25 to "+alice.AccountNumber, resp.GetFields()["message"].GetStringValue())
	assert.NotEmpty(t, resp.GetFields()["document_id"].GetStringValue())

	bal, err := client.GetBalance(ctx, mustStruct(t, map[string]any{"account_number": alice.AccountNumber}))
	require.NoError(t, err)
	assert.Equal(t, "150.25", bal.GetFields()["balance"].GetStringValue())
}

func TestPostTransactionStatusCodes(t *testing.T) {
	client, accounts := startServer(t)
	ctx := context.Background()
	alice, err := accounts.Create(ctx, "Alice", "0912345678")
	require.NoError(t, err)

	tests := []struct {
		name    string
		req     map[string]any
		code    codes.Code
		message string
	}{
		{
			name:    "insufficient balance",
			req:     map[string]any{"transaction_type": "DEBIT", "amount": "1.00", "recipient_account_number": alice.AccountNumber},
			code:    codes.FailedPrecondition,
			message: "Insufficient balance in account",
		},
		{
			name:    "recipient missing",
			req:     map[string]any{"transaction_type": "CREDIT", "amount": "1.00", "recipient_account_number": "nonexistent"},
			code:    codes.NotFound,
			message: "Recipient account not found",
		},
		{
			name:    "sender missing",
			req:     map[string]any{"transaction_type": "TRANSFER", "amount": "1.00", "sender_account_number": "ghost", "recipient_account_number": alice.AccountNumber},
			code:    codes.NotFound,
			message: "Sender account not found",
		},
		{
			name:    "invalid amount",
			req:     map[string]any{"transaction_type": "CREDIT", "amount": 0, "recipient_account_number": alice.AccountNumber},
			code:    codes.InvalidArgument,
			message: "Invalid transaction amount",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.PostTransaction(ctx, mustStruct(t, tt.req))
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, st.Code())
			assert.Equal(t, tt.message, st.Message())
		})
	}
}

func TestGetBalanceNotFound(t *testing.T) {
	client, _ := startServer(t)

	_, err := client.GetBalance(context.Background(), mustStruct(t, map[string]any{"account_number": "nonexistent"}))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.GetBalance(context.Background(), mustStruct(t, map[string]any{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
