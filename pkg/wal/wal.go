package wal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

// rw------- 只有擁有者可讀寫
const FileModePrivate fs.FileMode = 0600

// WAL 是以 JSON Lines 格式追加寫入的 Write-Ahead Log
//
// 每次 Append 為一行，一行就是一個完整的 entry。
// 只寫了一半的最後一行 (程序在寫入中途中止) 在 Replay 時會被截掉。
type WAL struct {
	file *os.File
	mu   sync.Mutex
	// 檔案中完整 entry 的結尾位置
	size int64
	// 已寫入的 entry 數 (含重放)
	count int
}

// Open 開啟或建立一個 WAL 檔案
// O_RDWR 讀寫模式
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func Open(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModePrivate)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return &WAL{file: file, size: info.Size()}, nil
}

// Append 把 entry 編碼成一行，以單次 Write 寫入後 fsync。
// 寫入失敗時把檔案截回寫入前的長度，不留下半筆 entry。
func (w *WAL) Append(entry any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(entry); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Write(buf.Bytes()); err != nil {
		return w.rollback(err)
	}
	if err := w.file.Sync(); err != nil {
		return w.rollback(err)
	}
	w.size += int64(buf.Len())
	w.count++
	return nil
}

// rollback 截掉上一個完整 entry 之後的內容，呼叫端負責 Lock
func (w *WAL) rollback(cause error) error {
	if err := w.file.Truncate(w.size); err != nil {
		return errors.Join(cause, fmt.Errorf("wal: truncate to %d: %w", w.size, err))
	}
	return cause
}

// Count 回傳目前檔案內的 entry 數
func (w *WAL) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close 關閉檔案
func (w *WAL) Close() error {
	return w.file.Close()
}

// Replay 從頭逐行讀取 entry
// callback 每次只拿到一筆原始 JSON，避免一次將所有資料載入記憶體。
// 最後一行若不完整 (沒有換行或無法解析) 視為寫入中斷，截掉後正常結束；
// 中間行損毀則回傳錯誤。
func (w *WAL) Replay(callback func(raw json.RawMessage) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// 確保從頭讀取
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	var (
		offset int64
		count  int
	)
	reader := bufio.NewReader(w.file)
	for {
		line, err := reader.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			if len(line) > 0 {
				return w.truncateTail(offset, count)
			}
			break
		}
		if err != nil {
			return err
		}

		raw := json.RawMessage(bytes.TrimSpace(line))
		if !json.Valid(raw) {
			if _, peek := reader.Peek(1); errors.Is(peek, io.EOF) {
				return w.truncateTail(offset, count)
			}
			return fmt.Errorf("wal: corrupted entry at offset %d", offset)
		}
		if err := callback(raw); err != nil {
			return err
		}
		offset += int64(len(line))
		count++
	}
	w.size = offset
	w.count = count
	return nil
}

// truncateTail 丟掉 offset 之後不完整的 entry，呼叫端負責 Lock
func (w *WAL) truncateTail(offset int64, count int) error {
	if err := w.file.Truncate(offset); err != nil {
		return fmt.Errorf("wal: truncate torn tail: %w", err)
	}
	w.size = offset
	w.count = count
	return nil
}
