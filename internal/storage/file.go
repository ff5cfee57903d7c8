package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "github.com/rndlabs/daily-stoic-waku/pkg/logx"
)

// ringSize bounds how many records the file store keeps in memory for
// RecentBroadcasts.
const ringSize = 256

// fileStore appends JSON Lines to a single file and serves recent reads
// from an in-memory tail loaded at open.
type fileStore struct {
	log logx.Logger

	mu   sync.Mutex
	f    *os.File
	enc  *json.Encoder
	tail []BroadcastRecord
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("journal.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	tail, err := loadTail(path, log)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	if err := terminateLastLine(path, f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &fileStore{log: log, f: f, enc: json.NewEncoder(f), tail: tail}, nil
}

// loadTail replays the journal, keeping the last ringSize records.
// Corrupt lines (e.g. a torn final write) are skipped.
func loadTail(path string, log logx.Logger) ([]BroadcastRecord, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var tail []BroadcastRecord
	skipped := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec BroadcastRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			skipped++
			continue
		}
		tail = append(tail, rec)
		if len(tail) > ringSize {
			tail = tail[len(tail)-ringSize:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if skipped > 0 {
		log.Warn("journal: skipped corrupt lines", logx.String("path", path), logx.Int("count", skipped))
	}
	return tail, nil
}

// terminateLastLine appends a newline if a previous run left a torn record,
// so the next append starts on its own line.
func terminateLastLine(path string, w *os.File) error {
	r, err := os.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	fi, err := r.Stat()
	if err != nil || fi.Size() == 0 {
		return err
	}
	last := make([]byte, 1)
	if _, err := r.ReadAt(last, fi.Size()-1); err != nil {
		return err
	}
	if last[0] != '\n' {
		_, err = w.Write([]byte{'\n'})
	}
	return err
}

func (s *fileStore) AppendBroadcast(ctx context.Context, rec BroadcastRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return ErrDisabled
	}
	if err := s.enc.Encode(rec); err != nil {
		return err
	}
	s.tail = append(s.tail, rec)
	if len(s.tail) > ringSize {
		s.tail = s.tail[len(s.tail)-ringSize:]
	}
	return nil
}

func (s *fileStore) RecentBroadcasts(ctx context.Context, limit int) ([]BroadcastRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultRecent
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := min(limit, len(s.tail))
	out := make([]BroadcastRecord, 0, n)
	for i := len(s.tail) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.tail[i])
	}
	return out, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
