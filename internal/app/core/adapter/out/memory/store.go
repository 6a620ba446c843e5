package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-doc-ledger/pkg/ledger"
	"github.com/JoeShih716/go-doc-ledger/pkg/wal"
)

// document 一筆已提交的文件
type document struct {
	ID      string
	Version uint64
	// Seq 插入順序，SELECT 依此排序
	Seq  uint64
	Data map[string]any
}

// record WAL 紀錄，Data 為 nil 代表刪除
type record struct {
	Table      string         `json:"table"`
	DocumentID string         `json:"documentId"`
	Version    uint64         `json:"version"`
	Seq        uint64         `json:"seq"`
	Data       map[string]any `json:"data,omitempty"`
}

// commitEntry 一筆交易在 WAL 中的一行，重放時整筆套用
type commitEntry struct {
	Records []record `json:"records"`
}

// Store 是記憶體中的文件帳本，以樂觀並行控制 (OCC) 隔離交易
//
// 結構:
//
//	tables: 表名 → 文件 ID → 文件
//	mu: 讀取時 RLock，Commit 時 Lock
//	wal: 可選的 Write-Ahead Log，Commit 先寫 WAL 再套用
type Store struct {
	mu     sync.RWMutex
	tables map[string]map[string]*document
	seq    uint64

	// unique 表名 → 不可重複的欄位
	unique map[string][]string

	wal    *wal.WAL
	retry  ledger.RetryPolicy
	logger *zap.Logger
}

// Option Store 設定
type Option func(*Store)

// WithWAL 啟用 WAL，NewStore 時會先從 WAL 恢復狀態
func WithWAL(w *wal.WAL) Option {
	return func(s *Store) {
		s.wal = w
	}
}

// WithRetryPolicy 設定 OCC 衝突的重試策略
func WithRetryPolicy(p ledger.RetryPolicy) Option {
	return func(s *Store) {
		s.retry = p
	}
}

// WithUniqueKey 讓 table 的 field 不可重複，INSERT 重複值回傳 ledger.ErrDuplicateKey
func WithUniqueKey(table, field string) Option {
	return func(s *Store) {
		s.unique[table] = append(s.unique[table], field)
	}
}

// WithLogger 設定 logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore 建立記憶體帳本
//
// 參數:
//
//	opts: WAL、重試策略、logger
//
// 回傳:
//
//	*Store: 帳本實例
//	error: WAL 恢復失敗
func NewStore(opts ...Option) (*Store, error) {
	s := &Store{
		tables: make(map[string]map[string]*document),
		unique: make(map[string][]string),
		retry:  ledger.DefaultRetryPolicy(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("memory")

	if s.wal != nil {
		if err := s.recoverFromWAL(); err != nil {
			return nil, fmt.Errorf("memory: recover from wal: %w", err)
		}
	}
	return s, nil
}

// recoverFromWAL 依序重放 WAL，只有 NewStore 呼叫，不需要 Lock
func (s *Store) recoverFromWAL() error {
	err := s.wal.Replay(func(raw json.RawMessage) error {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var e commitEntry
		if err := dec.Decode(&e); err != nil {
			return err
		}
		for _, r := range e.Records {
			s.apply(r)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("recovered from wal", zap.Int("commits", s.wal.Count()))
	return nil
}

// apply 把一筆紀錄套用到記憶體，呼叫端負責 Lock
func (s *Store) apply(r record) {
	docs, ok := s.tables[r.Table]
	if !ok {
		docs = make(map[string]*document)
		s.tables[r.Table] = docs
	}
	if r.Seq > s.seq {
		s.seq = r.Seq
	}
	if r.Data == nil {
		delete(docs, r.DocumentID)
		return
	}
	docs[r.DocumentID] = &document{
		ID:      r.DocumentID,
		Version: r.Version,
		Seq:     r.Seq,
		Data:    normalize(r.Data),
	}
}

// RunTransaction 實作 ledger.Session
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return s.retry.Do(ctx, func(ctx context.Context) error {
		t := newTx(s)
		defer t.close()

		if err := fn(ctx, t); err != nil {
			return err
		}
		return s.commit(ctx, t)
	})
}

// commit 驗證讀取集後寫入
func (s *Store) commit(ctx context.Context, t *tx) error {
	if err := ctx.Err(); err != nil {
		return &ledger.Error{Op: "commit", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sc := range t.scans {
		if !sameVersions(sc.seen, s.match(sc.pred)) {
			s.logger.Debug("occ conflict", zap.String("table", sc.pred.table), zap.String("key", sc.pred.field))
			return ledger.ErrConflict
		}
	}
	if len(t.order) == 0 {
		return nil
	}

	records := make([]record, 0, len(t.order))
	seq := s.seq
	for _, k := range t.order {
		w := t.pending[k]
		r := record{Table: k.table, DocumentID: k.id, Data: w.data}
		if cur, ok := s.tables[k.table][k.id]; ok {
			r.Version = cur.Version + 1
			r.Seq = cur.Seq
		} else {
			if w.data == nil {
				// 同一筆交易內新增又刪除
				continue
			}
			seq++
			r.Version = 1
			r.Seq = seq
		}
		records = append(records, r)
	}

	if s.wal != nil && len(records) > 0 {
		if err := s.wal.Append(commitEntry{Records: records}); err != nil {
			return &ledger.Error{Op: "commit", Err: err}
		}
	}
	for _, r := range records {
		s.apply(r)
	}
	return nil
}

// match 在已提交資料中找出符合條件的文件版本，呼叫端負責 Lock
func (s *Store) match(p predicate) map[string]uint64 {
	seen := make(map[string]uint64)
	for id, doc := range s.tables[p.table] {
		if p.matches(doc.Data) {
			seen[id] = doc.Version
		}
	}
	return seen
}

// snapshot 讀取一張表目前已提交的文件 (淺複製)，依插入順序排序
func (s *Store) snapshot(table string) []document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]document, 0, len(s.tables[table]))
	for _, doc := range s.tables[table] {
		docs = append(docs, document{ID: doc.ID, Version: doc.Version, Seq: doc.Seq, Data: doc.Data})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Seq < docs[j].Seq })
	return docs
}

// Len 回傳表中的文件數
func (s *Store) Len(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[table])
}

// Close 關閉 WAL
func (s *Store) Close() error {
	if s.wal == nil {
		return nil
	}
	return s.wal.Close()
}

func sameVersions(a, b map[string]uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for id, v := range a {
		if w, ok := b[id]; !ok || w != v {
			return false
		}
	}
	return true
}

// normalize 把 WAL 還原出的 json.Number 轉成字串，金額欄位一律以字串保存
func normalize(data map[string]any) map[string]any {
	for k, v := range data {
		if n, ok := v.(json.Number); ok {
			data[k] = n.String()
		}
	}
	return data
}
