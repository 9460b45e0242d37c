// Package datalog provides the shared append-only log that characterization
// routines write state markers and motor frames into.
//
// Every record is an [Entry]: a key, a timestamp, and either a string or a
// numeric value. Backends:
//
//   - [Memory]: in-process buffer, used by tests and plotting
//   - [SQLiteWriter] / [SQLiteReader]: batched SQLite persistence
//   - [Store]: per-run directories holding metadata.json and entries.csv
//
// [Tee] fans one stream out to several backends.
package datalog

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

type Kind string

const (
	KindString Kind = "string"
	KindDouble Kind = "double"
)

type Entry struct {
	Key       string
	Kind      Kind
	Unit      string
	Timestamp time.Duration
	Str       string
	Num       float64
}

func String(key, value string, ts time.Duration) Entry {
	return Entry{Key: key, Kind: KindString, Timestamp: ts, Str: value}
}

func Double(key string, value float64, unit string, ts time.Duration) Entry {
	return Entry{Key: key, Kind: KindDouble, Unit: unit, Timestamp: ts, Num: value}
}

// Value renders the entry's payload as text.
func (e Entry) Value() string {
	if e.Kind == KindString {
		return e.Str
	}
	return fmt.Sprintf("%g", e.Num)
}

// Log is an append-only sink. Implementations must not block for long; an
// error means the entry may have been dropped.
type Log interface {
	Append(e Entry) error
}

var ErrClosed = errors.New("datalog: log closed")

// Memory keeps entries in insertion order.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemory() *Memory {
	return &Memory{entries: make([]Entry, 0)}
}

func (m *Memory) Append(e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

// Entries returns a copy of all entries.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Filter returns the entries recorded under key.
func (m *Memory) Filter(key string) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if e.Key == key {
			out = append(out, e)
		}
	}
	return out
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type tee []Log

// Tee returns a Log that appends to every given log. All logs receive the
// entry; the first error is returned.
func Tee(logs ...Log) Log {
	return tee(logs)
}

func (t tee) Append(e Entry) error {
	var first error
	for _, l := range t {
		if err := l.Append(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type discard struct{}

func (discard) Append(Entry) error { return nil }

// Discard drops every entry.
var Discard Log = discard{}
