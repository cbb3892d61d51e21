package gather

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// progressTracker records which symbols of an import run have been
// handled, so a run interrupted halfway resumes where it stopped. Entries
// live in <dir>/.import-<key>, one "done SYM" or "empty SYM" per line.
type progressTracker struct {
	mu      sync.Mutex
	handled map[string]string // symbol -> "done" | "empty"
	writer  *bufio.Writer
	file    *os.File
	path    string
}

// newProgressTracker opens the progress file for key under dir and loads
// any entries left by an earlier, unfinished run.
func newProgressTracker(dir, key string) (*progressTracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating progress dir: %w", err)
	}

	pt := &progressTracker{
		handled: make(map[string]string),
		path:    filepath.Join(dir, ".import-"+key),
	}

	data, err := os.ReadFile(pt.path)
	if err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			status, sym, ok := strings.Cut(strings.TrimSpace(line), " ")
			if !ok || sym == "" {
				continue
			}
			pt.handled[sym] = status
		}
	}

	if err := pt.open(); err != nil {
		return nil, err
	}
	return pt, nil
}

func (p *progressTracker) open() error {
	f, err := os.OpenFile(p.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", filepath.Base(p.path), err)
	}
	p.file = f
	p.writer = bufio.NewWriter(f)
	return nil
}

// Handled reports whether symbol was already imported or found empty.
func (p *progressTracker) Handled(symbol string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.handled[symbol]
	return ok
}

// MarkDone records symbol as imported.
func (p *progressTracker) MarkDone(symbol string) error { return p.mark("done", symbol) }

// MarkEmpty records symbol as returning no bars.
func (p *progressTracker) MarkEmpty(symbol string) error { return p.mark("empty", symbol) }

func (p *progressTracker) mark(status, symbol string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.handled[symbol]; ok {
		return nil
	}
	p.handled[symbol] = status
	if _, err := p.writer.WriteString(status + " " + symbol + "\n"); err != nil {
		return fmt.Errorf("writing progress: %w", err)
	}
	return p.writer.Flush()
}

// Finish closes the tracker and removes the progress file.
func (p *progressTracker) Finish() error {
	if err := p.Close(); err != nil {
		return err
	}
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Close flushes and closes the progress file.
func (p *progressTracker) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer != nil {
		p.writer.Flush()
	}
	if p.file != nil {
		err := p.file.Close()
		p.file = nil
		return err
	}
	return nil
}
