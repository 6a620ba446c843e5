// Package ledger 定義帳本儲存層 (Document Ledger) 的最小介面。
//
// 帳本以「交易閉包」的方式使用：呼叫端把一段 讀取→計算→寫入 的邏輯包成函式交給
// Session.RunTransaction，由實作負責在樂觀並行控制 (OCC) 衝突時重新執行整個閉包，
// 直到成功 Commit 或遇到不可重試的錯誤。
package ledger

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrConflict 樂觀鎖版本衝突，整筆交易需要重跑
	ErrConflict = errors.New("ledger: occ version conflict")

	// ErrRetriesExhausted 重試次數用盡仍然衝突
	ErrRetriesExhausted = errors.New("ledger: retry budget exhausted")

	// ErrDuplicateKey INSERT 違反唯一鍵
	ErrDuplicateKey = errors.New("ledger: duplicate unique key")

	// ErrTxClosed 交易閉包結束後仍嘗試執行語句
	ErrTxClosed = errors.New("ledger: transaction already closed")
)

// Error 包裝儲存層的底層錯誤 (連線、逾時、重試用盡...)，保留發生的階段
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Tx 是交易閉包內可用的語句執行器，只在閉包執行期間有效
type Tx interface {
	// Execute 執行一條帶參數的語句，參數一律以 ? 綁定
	Execute(ctx context.Context, statement string, params ...any) (Rows, error)
}

// Session 是帳本連線的抽象，整個程序共用同一個實例
type Session interface {
	// RunTransaction 在單一交易中執行 fn。
	// 遇到 ErrConflict 時整個 fn 會重新執行，所以 fn 不能有交易以外的副作用。
	// fn 回傳的其他錯誤會讓交易放棄並原封不動地回傳。
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Run 是 Session.RunTransaction 的泛型版本，回傳最後一次成功 Commit 的閉包結果
//
// 參數:
//
//	ctx: 上下文
//	s: 帳本 Session
//	fn: 交易閉包
//
// 回傳:
//
//	T: 閉包結果
//	error: 閉包錯誤或儲存層錯誤
func Run[T any](ctx context.Context, s Session, fn func(ctx context.Context, tx Tx) (T, error)) (T, error) {
	var result T
	err := s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		v, err := fn(ctx, tx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
