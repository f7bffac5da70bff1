package wal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// FileMode 帳務資料只允許擁有者讀寫 (rw-------)
const FileMode os.FileMode = 0o600

// maxRecordSize 單筆紀錄上限，超過時 Replay 回傳錯誤
const maxRecordSize = 1 << 20

// ErrBroken 寫入失敗且無法回復到上一筆完整紀錄，之後的寫入一律拒絕
var ErrBroken = errors.New("wal is broken")

// logFile 是 WAL 需要的檔案操作，*os.File 即符合
type logFile interface {
	io.ReadWriteSeeker
	Sync() error
	Truncate(size int64) error
	Close() error
}

// WAL 以 JSON Lines 追加寫入的 Write-Ahead Log，每筆紀錄一行
type WAL struct {
	mu     sync.Mutex
	file   logFile
	path   string
	broken error
}

// NewWAL 開啟或建立 WAL 檔案 (O_APPEND: 每次寫入都接在檔尾)
func NewWAL(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileMode)
	if err != nil {
		return nil, fmt.Errorf("open wal %s: %w", path, err)
	}
	return &WAL{file: file, path: path}, nil
}

// Path 回傳檔案路徑
func (w *WAL) Path() string {
	return w.path
}

// Write 將 v 編碼為一行 JSON 並 fsync，回傳 nil 代表已落盤
//
// 寫入或 fsync 失敗時檔案會截回寫入前的長度，回傳錯誤代表這筆紀錄不存在。
// 截斷也失敗時 WAL 標記為損壞。
func (w *WAL) Write(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode wal record: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.broken != nil {
		return w.broken
	}

	offset, err := w.file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("seek wal end: %w", err)
	}
	if _, err := w.file.Write(line); err != nil {
		return w.rollback(offset, fmt.Errorf("append wal record: %w", err))
	}
	if err := w.file.Sync(); err != nil {
		return w.rollback(offset, fmt.Errorf("sync wal: %w", err))
	}
	return nil
}

// rollback 把檔案截回 offset，呼叫端需持有鎖
func (w *WAL) rollback(offset int64, cause error) error {
	if err := w.file.Truncate(offset); err != nil {
		w.broken = fmt.Errorf("%w: truncate to %d: %v (after %v)", ErrBroken, offset, err, cause)
		return w.broken
	}
	if err := w.file.Sync(); err != nil {
		w.broken = fmt.Errorf("%w: sync after truncate: %v (after %v)", ErrBroken, err, cause)
		return w.broken
	}
	return cause
}

// Close 關閉檔案
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// ReadAll 從頭依序把每筆紀錄的原始 JSON 交給 callback
//
// 寫入途中當機會留下不完整的最後一行；這種殘行不會交給 callback，
// 檔案會被截斷到最後一筆完整紀錄，之後的寫入接在其後。
// 中間行損壞則回傳錯誤，不做任何修改。
func (w *WAL) ReadAll(callback func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	reader := bufio.NewReaderSize(w.file, 64*1024)
	var offset int64
	for lineNo := 1; ; lineNo++ {
		line, err := reader.ReadBytes('\n')
		complete := err == nil
		if err != nil && err != io.EOF {
			return err
		}
		if len(line) > maxRecordSize {
			return fmt.Errorf("wal %s line %d: record exceeds %d bytes", w.path, lineNo, maxRecordSize)
		}

		trimmed := bytes.TrimSpace(line)
		switch {
		case len(trimmed) == 0:
		case !complete || !json.Valid(trimmed):
			if complete {
				if _, peekErr := reader.Peek(1); peekErr != io.EOF {
					return fmt.Errorf("wal %s line %d: corrupted record", w.path, lineNo)
				}
			}
			// 殘行
			return w.file.Truncate(offset)
		default:
			if err := callback(trimmed); err != nil {
				return err
			}
		}

		offset += int64(len(line))
		if !complete {
			return nil
		}
	}
}
