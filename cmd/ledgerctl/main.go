// ledgerctl 透過 gRPC 操作帳本服務
//
//	ledgerctl [-addr host:port] tx -type CREDIT -amount 10.00 -to 0123456789
//	ledgerctl [-addr host:port] tx -type TRANSFER -amount 5 -from 0123456789 -to 9876543210
//	ledgerctl [-addr host:port] balance -account 0123456789
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	grpc_adapter "github.com/JoeShih716/go-doc-ledger/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-doc-ledger/pkg/grpc"
	"github.com/JoeShih716/go-doc-ledger/pkg/logger"
)

func main() {
	addr := flag.String("addr", "localhost:50051", "ledger gRPC address")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	verbose := flag.Bool("v", false, "log every call")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	zl, _, err := logger.New(logger.Config{Level: level, Development: true})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = zl.Sync() }()

	pool := grpc.NewPool(
		grpc.WithInterceptor(grpc.RequestIDInterceptor()),
		grpc.WithInterceptor(grpc.LoggingInterceptor(zl)),
	)
	defer pool.Close()

	conn, err := pool.Get(*addr)
	if err != nil {
		zl.Fatal("connect", zap.Error(err))
	}
	client := grpc_adapter.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var resp *structpb.Struct
	switch cmd, args := flag.Arg(0), flag.Args()[1:]; cmd {
	case "tx":
		resp, err = postTransaction(ctx, client, args)
	case "balance":
		resp, err = getBalance(ctx, client, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		if st, ok := status.FromError(err); ok {
			fmt.Fprintf(os.Stderr, "%s: %s\n", st.Code(), st.Message())
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}

	out, err := protojson.MarshalOptions{Multiline: true}.Marshal(resp)
	if err != nil {
		zl.Fatal("encode response", zap.Error(err))
	}
	fmt.Println(string(out))
}

func postTransaction(ctx context.Context, client *grpc_adapter.Client, args []string) (*structpb.Struct, error) {
	fs := flag.NewFlagSet("tx", flag.ExitOnError)
	kind := fs.String("type", "CREDIT", "CREDIT | DEBIT | TRANSFER")
	amount := fs.String("amount", "", "amount, at most 2 decimal places")
	to := fs.String("to", "", "recipient account number (the account for CREDIT/DEBIT)")
	from := fs.String("from", "", "sender account number, TRANSFER only")
	_ = fs.Parse(args)

	req, err := structpb.NewStruct(map[string]any{
		"transaction_type":         *kind,
		"amount":                   *amount,
		"recipient_account_number": *to,
		"sender_account_number":    *from,
	})
	if err != nil {
		return nil, err
	}
	return client.PostTransaction(ctx, req)
}

func getBalance(ctx context.Context, client *grpc_adapter.Client, args []string) (*structpb.Struct, error) {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	account := fs.String("account", "", "account number")
	_ = fs.Parse(args)

	req, err := structpb.NewStruct(map[string]any{"account_number": *account})
	if err != nil {
		return nil, err
	}
	return client.GetBalance(ctx, req)
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-addr host:port] [-timeout 5s] [-v] <tx|balance> [flags]\n", os.Args[0])
	flag.PrintDefaults()
}
