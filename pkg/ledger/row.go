package ledger

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FieldDocumentID 寫入語句回傳列中的文件 ID 欄位
const FieldDocumentID = "documentId"

// ExtractError 儲存層回傳的資料缺欄位或型別不符
type ExtractError struct {
	Field  string
	Reason string
}

func (e *ExtractError) Error() string {
	if e.Field == "" {
		return "ledger extract: " + e.Reason
	}
	return fmt.Sprintf("ledger extract %q: %s", e.Field, e.Reason)
}

// Row 是一筆文件 (或文件的投影)
type Row map[string]any

// Rows 語句結果
type Rows []Row

// First 回傳第一筆，沒有資料時 ok 為 false
func (rs Rows) First() (Row, bool) {
	if len(rs) == 0 {
		return nil, false
	}
	return rs[0], true
}

// DocumentID 取出寫入結果的文件 ID
func (r Row) DocumentID() (string, error) {
	id, err := r.String(FieldDocumentID)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", &ExtractError{Field: FieldDocumentID, Reason: "empty value"}
	}
	return id, nil
}

func (r Row) lookup(field string) (any, error) {
	v, ok := r[field]
	if !ok || v == nil {
		return nil, &ExtractError{Field: field, Reason: "missing"}
	}
	return v, nil
}

// String 取出字串欄位
func (r Row) String(field string) (string, error) {
	v, err := r.lookup(field)
	if err != nil {
		return "", err
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", &ExtractError{Field: field, Reason: fmt.Sprintf("unexpected type %T", v)}
	}
}

// Decimal 取出金額欄位。
// 不同儲存實作回傳的型別不一樣 (decimal、WAL 還原後的字串、driver 的 numeric)，這裡統一轉成 decimal。
func (r Row) Decimal(field string) (decimal.Decimal, error) {
	v, err := r.lookup(field)
	if err != nil {
		return decimal.Zero, err
	}
	return toDecimal(field, v)
}

func toDecimal(field string, v any) (decimal.Decimal, error) {
	switch d := v.(type) {
	case decimal.Decimal:
		return d, nil
	case *decimal.Decimal:
		if d == nil {
			return decimal.Zero, &ExtractError{Field: field, Reason: "nil decimal"}
		}
		return *d, nil
	case string:
		return parseDecimal(field, d)
	case []byte:
		return parseDecimal(field, string(d))
	case int64:
		return decimal.NewFromInt(d), nil
	case int:
		return decimal.NewFromInt(int64(d)), nil
	case driver.Valuer:
		raw, err := d.Value()
		if err != nil {
			return decimal.Zero, &ExtractError{Field: field, Reason: err.Error()}
		}
		if _, nested := raw.(driver.Valuer); nested || raw == nil {
			return decimal.Zero, &ExtractError{Field: field, Reason: fmt.Sprintf("unexpected type %T", v)}
		}
		return toDecimal(field, raw)
	default:
		return decimal.Zero, &ExtractError{Field: field, Reason: fmt.Sprintf("unexpected type %T", v)}
	}
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ExtractError{Field: field, Reason: err.Error()}
	}
	return d, nil
}

// Time 取出時間欄位
func (r Row) Time(field string) (time.Time, error) {
	v, err := r.lookup(field)
	if err != nil {
		return time.Time{}, err
	}
	var s string
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return time.Time{}, &ExtractError{Field: field, Reason: fmt.Sprintf("unexpected type %T", v)}
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, &ExtractError{Field: field, Reason: err.Error()}
	}
	return parsed, nil
}
