// Package sqlstore 把帳本語句轉成關聯式資料庫上的 SQL。
//
// 每張表都必須有 document_id (主鍵) 與 version 兩個欄位，其餘欄位對應文件欄位。
// 寫入一律以 version 做樂觀鎖：
//
//	UPDATE t SET ..., version = version + 1 WHERE document_id = ? AND version = ?
//
// 影響 0 筆即視為衝突 (ledger.ErrConflict)，由 Session 重跑整個交易閉包。
package sqlstore

import (
	"context"
	"database/sql/driver"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-doc-ledger/pkg/ledger"
)

// 每張表固定的欄位
const (
	ColumnDocumentID = "document_id"
	ColumnVersion    = "version"
)

// Conn 交易內的 SQL 執行器，由各資料庫 adapter 實作
type Conn interface {
	// Query 回傳每一列 欄位名 → 值
	Query(ctx context.Context, query string, args ...any) ([]map[string]any, error)
	// Exec 回傳影響筆數
	Exec(ctx context.Context, query string, args ...any) (int64, error)
}

// Dialect 各資料庫的語法差異
type Dialect struct {
	Name string
	// Bind 第 n 個參數 (從 1 開始) 的佔位符
	Bind func(n int) string
	// Quote 識別字加上引號
	Quote func(ident string) string
}

var (
	MySQL = Dialect{
		Name:  "mysql",
		Bind:  func(int) string { return "?" },
		Quote: func(ident string) string { return "`" + ident + "`" },
	}
	Postgres = Dialect{
		Name:  "postgres",
		Bind:  func(n int) string { return "$" + strconv.Itoa(n) },
		Quote: func(ident string) string { return `"` + ident + `"` },
	}
)

// Tx 以 Conn 實作 ledger.Tx
type Tx struct {
	conn    Conn
	dialect Dialect
	newID   func() (string, error)
}

// NewTx 包裝一個已開啟的資料庫交易
func NewTx(conn Conn, dialect Dialect) *Tx {
	return &Tx{conn: conn, dialect: dialect, newID: newDocumentID}
}

// newDocumentID 使用 UUIDv7，document_id 排序即為插入順序
func newDocumentID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Execute 實作 ledger.Tx
func (t *Tx) Execute(ctx context.Context, statement string, params ...any) (ledger.Rows, error) {
	st, err := ledger.Parse(statement)
	if err != nil {
		return nil, err
	}
	if err := st.CheckParams(params); err != nil {
		return nil, err
	}

	switch st.Kind {
	case ledger.KindSelect:
		return t.selectRows(ctx, st, params)
	case ledger.KindInsert:
		return t.insert(ctx, st, params[0])
	case ledger.KindUpdate:
		return t.update(ctx, st, params)
	default:
		return t.remove(ctx, st, params)
	}
}

// query 組 SQL 並收集參數
type query struct {
	d    Dialect
	sb   strings.Builder
	args []any
}

func (q *query) write(parts ...string) *query {
	for _, p := range parts {
		q.sb.WriteString(p)
	}
	return q
}

func (q *query) bind(v any) string {
	q.args = append(q.args, v)
	return q.d.Bind(len(q.args))
}

func (q *query) String() string {
	return q.sb.String()
}

func (t *Tx) newQuery() *query {
	return &query{d: t.dialect}
}

func (t *Tx) where(q *query, st ledger.Statement, params []any) {
	if st.Key == "" {
		return
	}
	q.write(" WHERE ", t.dialect.Quote(st.Key), " = ", q.bind(params[len(params)-1]))
}

func (t *Tx) selectRows(ctx context.Context, st ledger.Statement, params []any) (ledger.Rows, error) {
	q := t.newQuery().write("SELECT ")
	if st.Fields == nil {
		q.write("*")
	} else {
		cols := make([]string, len(st.Fields))
		for i, f := range st.Fields {
			cols[i] = t.dialect.Quote(f)
		}
		q.write(strings.Join(cols, ", "))
	}
	q.write(" FROM ", t.dialect.Quote(st.Table))
	t.where(q, st, params)
	q.write(" ORDER BY ", t.dialect.Quote(ColumnDocumentID))

	result, err := t.conn.Query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, err
	}
	rows := make(ledger.Rows, 0, len(result))
	for _, r := range result {
		row := make(ledger.Row, len(r))
		for k, v := range r {
			if st.Fields == nil && (k == ColumnDocumentID || k == ColumnVersion) {
				continue
			}
			row[k] = normalize(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (t *Tx) insert(ctx context.Context, st ledger.Statement, param any) (ledger.Rows, error) {
	var doc map[string]any
	switch v := param.(type) {
	case map[string]any:
		doc = v
	case ledger.Row:
		doc = v
	default:
		return nil, fmt.Errorf("ledger: INSERT into %s expects a document, got %T", st.Table, param)
	}
	id, err := t.newID()
	if err != nil {
		return nil, &ledger.Error{Op: "insert", Err: err}
	}

	fields := slices.Sorted(maps.Keys(doc))
	cols := []string{t.dialect.Quote(ColumnDocumentID), t.dialect.Quote(ColumnVersion)}
	q := t.newQuery()
	vals := []string{q.bind(id), "1"}
	for _, f := range fields {
		if f == ColumnDocumentID || f == ColumnVersion {
			return nil, fmt.Errorf("ledger: field %q is reserved", f)
		}
		cols = append(cols, t.dialect.Quote(f))
		vals = append(vals, q.bind(doc[f]))
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.dialect.Quote(st.Table), strings.Join(cols, ", "), strings.Join(vals, ", "))

	if _, err := t.conn.Exec(ctx, stmt, q.args...); err != nil {
		return nil, err
	}
	return ledger.Rows{{ledger.FieldDocumentID: id}}, nil
}

type target struct {
	id      string
	version int64
}

// targets 找出 WHERE 命中的文件與其版本
func (t *Tx) targets(ctx context.Context, st ledger.Statement, params []any) ([]target, error) {
	q := t.newQuery().write("SELECT ", t.dialect.Quote(ColumnDocumentID), ", ", t.dialect.Quote(ColumnVersion),
		" FROM ", t.dialect.Quote(st.Table))
	t.where(q, st, params)
	q.write(" ORDER BY ", t.dialect.Quote(ColumnDocumentID))

	result, err := t.conn.Query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, err
	}
	out := make([]target, 0, len(result))
	for _, r := range result {
		row := ledger.Row{ledger.FieldDocumentID: normalize(r[ColumnDocumentID])}
		id, err := row.DocumentID()
		if err != nil {
			return nil, err
		}
		version, err := toInt64(normalize(r[ColumnVersion]))
		if err != nil {
			return nil, &ledger.ExtractError{Field: ColumnVersion, Reason: err.Error()}
		}
		out = append(out, target{id: id, version: version})
	}
	return out, nil
}

func (t *Tx) update(ctx context.Context, st ledger.Statement, params []any) (ledger.Rows, error) {
	docs, err := t.targets(ctx, st, params)
	if err != nil {
		return nil, err
	}
	rows := make(ledger.Rows, 0, len(docs))
	for _, doc := range docs {
		q := t.newQuery().write("UPDATE ", t.dialect.Quote(st.Table), " SET ")
		for i, f := range st.Assign {
			q.write(t.dialect.Quote(f), " = ", q.bind(params[i]), ", ")
		}
		version := t.dialect.Quote(ColumnVersion)
		q.write(version, " = ", version, " + 1")
		q.write(" WHERE ", t.dialect.Quote(ColumnDocumentID), " = ", q.bind(doc.id),
			" AND ", version, " = ", q.bind(doc.version))

		if err := t.execOne(ctx, q); err != nil {
			return nil, err
		}
		rows = append(rows, ledger.Row{ledger.FieldDocumentID: doc.id})
	}
	return rows, nil
}

func (t *Tx) remove(ctx context.Context, st ledger.Statement, params []any) (ledger.Rows, error) {
	docs, err := t.targets(ctx, st, params)
	if err != nil {
		return nil, err
	}
	rows := make(ledger.Rows, 0, len(docs))
	for _, doc := range docs {
		q := t.newQuery().write("DELETE FROM ", t.dialect.Quote(st.Table))
		q.write(" WHERE ", t.dialect.Quote(ColumnDocumentID), " = ", q.bind(doc.id),
			" AND ", t.dialect.Quote(ColumnVersion), " = ", q.bind(doc.version))

		if err := t.execOne(ctx, q); err != nil {
			return nil, err
		}
		rows = append(rows, ledger.Row{ledger.FieldDocumentID: doc.id})
	}
	return rows, nil
}

// execOne 版本不符 (影響 0 筆) 即為衝突
func (t *Tx) execOne(ctx context.Context, q *query) error {
	n, err := t.conn.Exec(ctx, q.String(), q.args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrConflict
	}
	return nil
}

// normalize driver 回傳的 []byte 與 driver.Valuer (如 pgtype.Numeric) 轉成一般值
func normalize(v any) any {
	if valuer, ok := v.(driver.Valuer); ok {
		raw, err := valuer.Value()
		if err == nil {
			v = raw
		}
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
