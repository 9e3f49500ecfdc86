package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/imrishuroy/go-order-fulfillment/internal/aws"
	"github.com/imrishuroy/go-order-fulfillment/internal/idempotency"
	"github.com/imrishuroy/go-order-fulfillment/internal/orders"
)

// journal records every side effect in the order it happened.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type fakeStore struct {
	mu        sync.Mutex
	j         *journal
	orders    map[string]*orders.Order
	getErr    error
	failOnSet map[string]error // order id -> UpdateField error
}

func newFakeStore(j *journal, seed ...*orders.Order) *fakeStore {
	s := &fakeStore{j: j, orders: map[string]*orders.Order{}, failOnSet: map[string]error{}}
	for _, o := range seed {
		s.orders[o.ID] = o
	}
	return s
}

func (s *fakeStore) Get(ctx context.Context, id string) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (s *fakeStore) UpdateField(ctx context.Context, id, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOnSet[id]; err != nil {
		return err
	}
	o, ok := s.orders[id]
	if !ok {
		return orders.ErrOrderNotFound
	}
	if field == "status" {
		o.Status = value
	}
	s.j.add("update %s %s=%s", id, field, value)
	return nil
}

func (s *fakeStore) status(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id].Status
}

type fakeRenderer struct {
	err error
}

func (r fakeRenderer) Render(o *orders.Order, at time.Time) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-" + o.ID), nil
}

type fakeArchive struct {
	mu      sync.Mutex
	j       *journal
	objects map[string][]byte
	puts    int
	err     error
}

func newFakeArchive(j *journal) *fakeArchive {
	return &fakeArchive{j: j, objects: map[string][]byte{}}
}

func (a *fakeArchive) Put(ctx context.Context, key string, body []byte, contentType string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.puts++
	a.objects[key] = body
	a.j.add("archive %s %s", key, contentType)
	return nil
}

type published struct {
	subject string
	message string
	attrs   map[string]string
}

type fakeNotifier struct {
	mu   sync.Mutex
	j    *journal
	sent []published
	err  error
	// block, when set, delays Publish until ctx is done
	block bool
}

func (n *fakeNotifier) Publish(ctx context.Context, subject, message string, attrs map[string]string) (string, error) {
	if n.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return "", n.err
	}
	n.sent = append(n.sent, published{subject, message, attrs})
	n.j.add("notify %s", attrs["order_id"])
	return fmt.Sprintf("sns-%d", len(n.sent)), nil
}

type fakeLedger struct {
	mu      sync.Mutex
	records map[string]*idempotency.IdempotencyRecord
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: map[string]*idempotency.IdempotencyRecord{}}
}

func (l *fakeLedger) CreateIfNotExists(ctx context.Context, key, orderID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.records[key]; ok {
		return false, nil
	}
	l.records[key] = &idempotency.IdempotencyRecord{IdempotencyKey: key, OrderID: orderID, Status: idempotency.StatusInProgress}
	return true, nil
}

func (l *fakeLedger) Get(ctx context.Context, key string) (*idempotency.IdempotencyRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[key]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (l *fakeLedger) MarkDone(ctx context.Context, key, body string, status int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[key]
	if !ok {
		return errors.New("item not found")
	}
	rec.Status, rec.ResponseBody, rec.ResponseStatus = idempotency.StatusDone, body, status
	return nil
}

func (l *fakeLedger) MarkFailed(ctx context.Context, key, note string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[key]
	if !ok {
		return errors.New("item not found")
	}
	rec.Status, rec.Note = idempotency.StatusFailed, note
	return nil
}

type fakeMetrics struct {
	mu     sync.Mutex
	counts []aws.BatchCounts
	err    error
}

func (m *fakeMetrics) RecordBatch(ctx context.Context, c aws.BatchCounts) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = append(m.counts, c)
	return m.err
}
