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

	logx "framed/pkg/logx"
)

// fileStore keeps samples in <prefix>.samples.jsonl (append-only JSON Lines).
// When the file holds twice the retention limit it is rewritten with the newest Keep
// samples (tmp file + rename).
type fileStore struct {
	log  logx.Logger
	keep int
	path string

	mu    sync.Mutex
	f     *os.File
	lines int
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	samplesPath := filepath.Join(dir, base) + ".samples.jsonl"

	lines, err := countLines(samplesPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	f, err := os.OpenFile(samplesPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, keep: cfg.keep(), path: samplesPath, f: f, lines: lines}, nil
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

func (s *fileStore) AppendSample(ctx context.Context, smp Sample) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return ErrClosed
	}
	if err := json.NewEncoder(s.f).Encode(smp); err != nil {
		return err
	}
	s.lines++
	if s.lines >= 2*s.keep {
		if err := s.compactLocked(); err != nil {
			s.log.Warn("samples compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) RecentSamples(ctx context.Context, limit int) ([]Sample, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil, ErrClosed
	}
	if limit <= 0 || limit > s.keep {
		limit = s.keep
	}
	return readTail(s.path, limit)
}

func (s *fileStore) compactLocked() error {
	keep, err := readTail(s.path, s.keep)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	for _, smp := range keep {
		if err := enc.Encode(smp); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := s.f.Close(); err != nil {
		return err
	}
	s.f = nil
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	nf, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	s.f = nf
	s.lines = len(keep)
	s.log.Debug("samples compacted", logx.Int("kept", len(keep)))
	return nil
}

// readTail returns the last n decodable samples, oldest first.
func readTail(path string, n int) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([]Sample, 0, n)
	start := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var smp Sample
		if err := json.Unmarshal(sc.Bytes(), &smp); err != nil {
			continue
		}
		if len(ring) < n {
			ring = append(ring, smp)
			continue
		}
		ring[start] = smp
		start = (start + 1) % n
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	out := make([]Sample, 0, len(ring))
	out = append(out, ring[start:]...)
	out = append(out, ring[:start]...)
	return out, nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n++
	}
	return n, sc.Err()
}
