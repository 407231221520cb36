// Package journal appends records to a JSON Lines file shared between
// processes. Every write and read holds an advisory lock on path + ".lock".
package journal

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/gofrs/flock"
	"github.com/oarkflow/json"
)

type Journal[T any] struct {
	path         string
	file         *os.File
	fileLock     *flock.Flock
	mu           sync.Mutex
	syncOnAppend bool
}

// Open creates the file when missing. When syncOnAppend is set every append
// is flushed to disk before returning.
func Open[T any](path string, syncOnAppend bool) (*Journal[T], error) {
	if path == "" {
		return nil, errors.New("journal path is empty")
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Journal[T]{
		path:         path,
		file:         f,
		fileLock:     flock.New(path + ".lock"),
		syncOnAppend: syncOnAppend,
	}, nil
}

func (j *Journal[T]) Path() string {
	return j.path
}

func (j *Journal[T]) Append(records ...T) error {
	if len(records) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.fileLock.Lock(); err != nil {
		return err
	}
	defer func() {
		_ = j.fileLock.Unlock()
	}()
	if _, err := j.file.Write(buf.Bytes()); err != nil {
		return err
	}
	if j.syncOnAppend {
		return j.file.Sync()
	}
	return nil
}

// Tail returns up to the last n records, oldest first. n <= 0 returns all of
// them. Lines that fail to decode are skipped so a torn final write does not
// hide the rest of the journal.
func (j *Journal[T]) Tail(n int) ([]T, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.fileLock.RLock(); err != nil {
		return nil, err
	}
	defer func() {
		_ = j.fileLock.Unlock()
	}()
	f, err := os.Open(j.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeLines[T](f, n)
}

func decodeLines[T any](r io.Reader, n int) ([]T, error) {
	var records []T
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var record T
		if err := json.Unmarshal(line, &record); err != nil {
			continue
		}
		records = append(records, record)
		if n > 0 && len(records) > n {
			records = records[1:]
		}
	}
	return records, scanner.Err()
}

func (j *Journal[T]) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}
