// Package ledger is the durable record of the last executed direction per
// symbol. It is the only state consulted across restarts and the gate that
// prevents duplicate or rapidly oscillating executions.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rennengfeng/Ma-Trade-BOT/internal/signal"
)

// Entry holds what the ledger remembers about one symbol.
type Entry struct {
	Direction  signal.Direction `json:"direction"`
	ExecutedAt time.Time        `json:"executed_at"`
	OrderID    string           `json:"order_id,omitempty"`
}

// Ledger tracks the last confirmed execution per symbol and persists every
// mutation to a JSON file so restarts resume from the same position state.
// A zero path disables persistence (useful for replay and tests).
type Ledger struct {
	mu          sync.Mutex
	path        string
	minInterval time.Duration
	entries     map[string]Entry
}

// Option configures Ledger construction parameters.
type Option func(*Ledger)

// WithMinInterval suppresses executions within d of the previous one for the
// same symbol, regardless of direction. Zero disables the guard.
func WithMinInterval(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.minInterval = d
		}
	}
}

// Open loads the ledger from path, creating an empty one when the file does
// not exist yet.
func Open(path string, opts ...Option) (*Ledger, error) {
	l := &Ledger{path: path, entries: make(map[string]Entry)}
	for _, opt := range opts {
		opt(l)
	}
	if path == "" {
		return l, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if len(data) == 0 {
		return l, nil
	}
	if err := json.Unmarshal(data, &l.entries); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	return l, nil
}

// MayExecute reports whether an order for (symbol, dir) is allowed now.
// Suppression reasons: a repeated direction without an intervening opposite
// execution, or an execution inside the minimum re-trigger interval.
func (l *Ledger) MayExecute(symbol string, dir signal.Direction, now time.Time) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[symbol]
	if !ok {
		return true, ""
	}
	if entry.Direction == dir {
		return false, fmt.Sprintf("last executed direction already %s", dir)
	}
	if l.minInterval > 0 && now.Sub(entry.ExecutedAt) < l.minInterval {
		return false, fmt.Sprintf("inside %s re-trigger interval", l.minInterval)
	}
	return true, ""
}

// Record stores a confirmed execution. Callers must only invoke it after the
// venue has acknowledged the order; a failed submission never reaches here.
func (l *Ledger) Record(symbol string, dir signal.Direction, now time.Time, orderID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[symbol] = Entry{Direction: dir, ExecutedAt: now, OrderID: orderID}
	return l.persistLocked()
}

// Remove drops all state for a deconfigured symbol.
func (l *Ledger) Remove(symbol string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, symbol)
	return l.persistLocked()
}

// Last returns the recorded entry for symbol, if any.
func (l *Ledger) Last(symbol string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[symbol]
	return entry, ok
}

// Snapshot returns a copy of every entry keyed by symbol.
func (l *Ledger) Snapshot() map[string]Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]Entry, len(l.entries))
	for sym, entry := range l.entries {
		out[sym] = entry
	}
	return out
}

// persistLocked writes the whole map atomically via a temp file rename.
func (l *Ledger) persistLocked() error {
	if l.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("ledger dir: %w", err)
	}
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
