package memory

import (
	"context"
	"fmt"
	"maps"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-doc-ledger/pkg/ledger"
)

type docKey struct {
	table string
	id    string
}

// predicate WHERE 條件，field 為空代表整張表
type predicate struct {
	table string
	field string
	value any
}

// matches 參數與欄位以字串形式比較，WAL 還原後的型別不一定和寫入時相同
func (p predicate) matches(data map[string]any) bool {
	if p.field == "" {
		return true
	}
	v, ok := data[p.field]
	if !ok || v == nil {
		return false
	}
	return fmt.Sprint(v) == fmt.Sprint(p.value)
}

// scan 一次讀取的條件與當時看到的已提交版本，Commit 時重新比對
type scan struct {
	pred predicate
	seen map[string]uint64
}

// pendingWrite 尚未提交的寫入，data 為 nil 代表刪除
type pendingWrite struct {
	data map[string]any
}

// tx 單次嘗試的交易狀態，重試時整個重建
type tx struct {
	store   *Store
	scans   []scan
	pending map[docKey]*pendingWrite
	// order 寫入順序
	order  []docKey
	closed bool
}

func newTx(s *Store) *tx {
	return &tx{
		store:   s,
		pending: make(map[docKey]*pendingWrite),
	}
}

func (t *tx) close() {
	t.closed = true
}

// Execute 實作 ledger.Tx
func (t *tx) Execute(ctx context.Context, statement string, params ...any) (ledger.Rows, error) {
	if t.closed {
		return nil, ledger.ErrTxClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, &ledger.Error{Op: "execute", Err: err}
	}
	st, err := ledger.Parse(statement)
	if err != nil {
		return nil, err
	}
	if err := st.CheckParams(params); err != nil {
		return nil, err
	}

	switch st.Kind {
	case ledger.KindSelect:
		return t.selectRows(st, params), nil
	case ledger.KindInsert:
		return t.insert(st, params[0])
	case ledger.KindUpdate:
		return t.update(st, params), nil
	default:
		return t.remove(st, params), nil
	}
}

func whereOf(st ledger.Statement, params []any) predicate {
	p := predicate{table: st.Table, field: st.Key}
	if st.Key != "" {
		p.value = params[len(params)-1]
	}
	return p
}

// view 讀取目前交易看到的文件：已提交資料疊上本交易的寫入
// 已提交部分的版本會記進 scans
func (t *tx) view(p predicate) []document {
	committed := t.store.snapshot(p.table)

	seen := make(map[string]uint64)
	out := make([]document, 0, len(committed))
	for _, doc := range committed {
		if p.matches(doc.Data) {
			seen[doc.ID] = doc.Version
		}
		if w, ok := t.pending[docKey{p.table, doc.ID}]; ok {
			if w.data == nil {
				continue
			}
			doc.Data = w.data
		}
		if p.matches(doc.Data) {
			out = append(out, doc)
		}
	}
	t.scans = append(t.scans, scan{pred: p, seen: seen})

	// 本交易新增的文件排在最後
	for _, k := range t.order {
		if k.table != p.table {
			continue
		}
		w := t.pending[k]
		if w.data == nil || containsDoc(committed, k.id) {
			continue
		}
		if p.matches(w.data) {
			out = append(out, document{ID: k.id, Data: w.data})
		}
	}
	return out
}

func containsDoc(docs []document, id string) bool {
	for _, d := range docs {
		if d.ID == id {
			return true
		}
	}
	return false
}

func (t *tx) write(table, id string, data map[string]any) {
	k := docKey{table, id}
	if _, ok := t.pending[k]; !ok {
		t.order = append(t.order, k)
	}
	t.pending[k] = &pendingWrite{data: data}
}

func (t *tx) selectRows(st ledger.Statement, params []any) ledger.Rows {
	docs := t.view(whereOf(st, params))
	rows := make(ledger.Rows, 0, len(docs))
	for _, doc := range docs {
		if st.Fields == nil {
			rows = append(rows, ledger.Row(maps.Clone(doc.Data)))
			continue
		}
		row := make(ledger.Row, len(st.Fields))
		for _, f := range st.Fields {
			if v, ok := doc.Data[f]; ok {
				row[f] = v
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func (t *tx) insert(st ledger.Statement, param any) (ledger.Rows, error) {
	var data map[string]any
	switch v := param.(type) {
	case map[string]any:
		data = maps.Clone(v)
	case ledger.Row:
		data = maps.Clone(map[string]any(v))
	default:
		return nil, fmt.Errorf("ledger: INSERT into %s expects a document, got %T", st.Table, param)
	}
	// 唯一鍵的讀取也記進 scans，並行插入同一個值時 Commit 會衝突
	for _, field := range t.store.unique[st.Table] {
		v, ok := data[field]
		if !ok || v == nil {
			continue
		}
		if len(t.view(predicate{table: st.Table, field: field, value: v})) > 0 {
			return nil, &ledger.Error{
				Op:  "insert",
				Err: fmt.Errorf("%w: %s.%s = %v", ledger.ErrDuplicateKey, st.Table, field, v),
			}
		}
	}
	id := uuid.NewString()
	t.write(st.Table, id, data)
	return ledger.Rows{{ledger.FieldDocumentID: id}}, nil
}

func (t *tx) update(st ledger.Statement, params []any) ledger.Rows {
	docs := t.view(whereOf(st, params))
	rows := make(ledger.Rows, 0, len(docs))
	for _, doc := range docs {
		data := maps.Clone(doc.Data)
		for i, f := range st.Assign {
			data[f] = params[i]
		}
		t.write(st.Table, doc.ID, data)
		rows = append(rows, ledger.Row{ledger.FieldDocumentID: doc.ID})
	}
	return rows
}

func (t *tx) remove(st ledger.Statement, params []any) ledger.Rows {
	docs := t.view(whereOf(st, params))
	rows := make(ledger.Rows, 0, len(docs))
	for _, doc := range docs {
		t.write(st.Table, doc.ID, nil)
		rows = append(rows, ledger.Row{ledger.FieldDocumentID: doc.ID})
	}
	return rows
}
