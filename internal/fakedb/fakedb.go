// Package fakedb provides in-memory types.Session and types.Provider
// implementations that track transient objects the way a PostgreSQL
// backend would, for tests that cannot reach a database.
package fakedb

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dbsmedya/lookupbench/internal/pgcopy"
	"github.com/dbsmedya/lookupbench/internal/types"
)

// Call records one operation issued against a Session.
type Call struct {
	Op   string // exec, prepare, deallocate, query, copy, reset
	SQL  string
	Args int
}

// FailFunc may inject an error for an operation; returning nil lets it proceed.
type FailFunc func(op, sql string) error

var (
	createRe      = regexp.MustCompile(`(?i)^CREATE TEMPORARY TABLE (\w+)`)
	dropRe        = regexp.MustCompile(`(?i)^DROP TABLE IF EXISTS (\w+)`)
	copyRe        = regexp.MustCompile(`(?i)^COPY (\w+)`)
	placeholderRe = regexp.MustCompile(`\$(\d+)`)
)

// Session is a fake connection. Every Query returns a copy of Rows.
type Session struct {
	Rows types.RowSet
	Fail FailFunc

	mu         sync.Mutex
	calls      []Call
	tables     map[string]bool
	statements map[string]int // name -> parameter count
	loaded     []int64
	released   int
}

// NewSession returns a Session answering every query with rows.
func NewSession(rows types.RowSet) *Session {
	return &Session{
		Rows:       rows,
		tables:     make(map[string]bool),
		statements: make(map[string]int),
	}
}

func (s *Session) record(op, sql string, args int) error {
	s.calls = append(s.calls, Call{Op: op, SQL: sql, Args: args})
	if s.Fail != nil {
		return s.Fail(op, sql)
	}
	return nil
}

func (s *Session) Query(ctx context.Context, sql string, args ...any) (types.RowSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.record("query", sql, len(args)); err != nil {
		return nil, err
	}

	want, prepared := s.statements[sql]
	if !prepared {
		if strings.HasPrefix(sql, "lookupbench_") {
			return nil, fmt.Errorf("prepared statement %q does not exist", sql)
		}
		want = paramCount(sql)
		for _, name := range referencedTables(sql) {
			if !s.tables[name] {
				return nil, fmt.Errorf("relation %q does not exist", name)
			}
		}
	}
	if want != len(args) {
		return nil, fmt.Errorf("bind message supplies %d parameters, but statement requires %d", len(args), want)
	}

	out := make(types.RowSet, len(s.Rows))
	copy(out, s.Rows)
	return out, nil
}

func (s *Session) Exec(ctx context.Context, sql string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.record("exec", sql, len(args)); err != nil {
		return err
	}

	if m := createRe.FindStringSubmatch(sql); m != nil {
		if s.tables[m[1]] {
			return fmt.Errorf("relation %q already exists", m[1])
		}
		s.tables[m[1]] = true
		return nil
	}
	if m := dropRe.FindStringSubmatch(sql); m != nil {
		delete(s.tables, m[1])
		return nil
	}
	if strings.EqualFold(sql, "DISCARD TEMP") {
		s.tables = make(map[string]bool)
	}
	return nil
}

func (s *Session) Prepare(ctx context.Context, name, sql string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.record("prepare", name, 0); err != nil {
		return err
	}
	if _, ok := s.statements[name]; ok {
		return fmt.Errorf("prepared statement %q already exists", name)
	}
	s.statements[name] = paramCount(sql)
	return nil
}

func (s *Session) Deallocate(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.record("deallocate", name, 0); err != nil {
		return err
	}
	if _, ok := s.statements[name]; !ok {
		return fmt.Errorf("prepared statement %q does not exist", name)
	}
	delete(s.statements, name)
	return nil
}

// CopyFrom decodes binary streams with pgcopy and text streams line by line,
// so the row count reflects what a server would have loaded.
func (s *Session) CopyFrom(ctx context.Context, r io.Reader, sql string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.record("copy", sql, 0); err != nil {
		return 0, err
	}
	m := copyRe.FindStringSubmatch(sql)
	if m == nil || !s.tables[m[1]] {
		return 0, fmt.Errorf("copy target missing for %q", sql)
	}

	ids, err := decodeCopy(r, strings.Contains(strings.ToUpper(sql), "FORMAT BINARY"))
	if err != nil {
		return 0, err
	}
	s.loaded = ids
	return int64(len(ids)), nil
}

func decodeCopy(r io.Reader, binary bool) ([]int64, error) {
	var ids []int64
	if binary {
		rows, err := pgcopy.NewDecoder(r, pgcopy.IDSchema).ReadAll()
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			id, err := pgcopy.ParseInt8(row[0])
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, nil
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		id, err := strconv.ParseInt(string(bytes.TrimSpace(sc.Bytes())), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid input syntax for type bigint: %q", sc.Text())
		}
		ids = append(ids, id)
	}
	return ids, sc.Err()
}

func (s *Session) TransientObjects(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("list", "", 0); err != nil {
		return nil, err
	}
	var out []string
	for name := range s.tables {
		out = append(out, "table "+name)
	}
	for name := range s.statements {
		out = append(out, "statement "+name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("reset", "", 0); err != nil {
		return err
	}
	s.tables = make(map[string]bool)
	s.statements = make(map[string]int)
	return nil
}

func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released++
}

// Leak creates a temporary table behind the strategies' back.
func (s *Session) Leak(table string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = true
}

// Calls returns a copy of the recorded operations.
func (s *Session) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsOf returns the recorded operations with the given op.
func (s *Session) CallsOf(op string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Loaded returns the ids received by the last COPY.
func (s *Session) Loaded() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.loaded...)
}

// Released reports how many times the session was returned to its provider.
func (s *Session) Released() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

func paramCount(sql string) int {
	max := 0
	for _, m := range placeholderRe.FindAllStringSubmatch(sql, -1) {
		n, _ := strconv.Atoi(m[1])
		if n > max {
			max = n
		}
	}
	return max
}

var fromRe = regexp.MustCompile(`(?i)(?:FROM|JOIN) (\w+)`)

func referencedTables(sql string) []string {
	var out []string
	for _, m := range fromRe.FindAllStringSubmatch(sql, -1) {
		if strings.HasPrefix(m[1], "lookup_") {
			out = append(out, m[1])
		}
	}
	return out
}

// Provider hands out one shared Session from Acquire. Idle holds further
// pooled sessions that only AcquireAllIdle reaches.
type Provider struct {
	Session *Session
	Idle    []*Session
	// FailAcquire, if set, is consulted with the 1-based acquire count.
	FailAcquire func(n int) error

	mu       sync.Mutex
	acquired int
}

// NewProvider returns a Provider over session.
func NewProvider(session *Session) *Provider {
	return &Provider{Session: session}
}

func (p *Provider) Acquire(ctx context.Context) (types.Session, error) {
	p.mu.Lock()
	p.acquired++
	n := p.acquired
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrResourceAcquisition, err)
	}
	if p.FailAcquire != nil {
		if err := p.FailAcquire(n); err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrResourceAcquisition, err)
		}
	}
	return p.Session, nil
}

// AcquireAllIdle returns Session followed by every Idle session.
func (p *Provider) AcquireAllIdle(ctx context.Context) []types.Session {
	if ctx.Err() != nil {
		return nil
	}
	out := make([]types.Session, 0, 1+len(p.Idle))
	out = append(out, p.Session)
	for _, s := range p.Idle {
		out = append(out, s)
	}

	p.mu.Lock()
	p.acquired += len(out)
	p.mu.Unlock()
	return out
}

// Acquired returns the number of sessions handed out so far.
func (p *Provider) Acquired() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquired
}
