// Package orderstore keeps the server-side record of pending checkout
// orders. The confirmation endpoint checks the amount echoed by the payment
// redirect against the record registered at checkout entry, which is the
// point where client-side amount tampering is rejected.
package orderstore

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrUnknownOrder means no record was registered for the orderId.
	ErrUnknownOrder = errors.New("orderstore: unknown order")

	// ErrAmountMismatch means the confirmation amount differs from the
	// registered record. Security relevant: never a silent success.
	ErrAmountMismatch = errors.New("orderstore: amount does not match the registered order")

	// ErrAlreadyConfirmed means the order was already confirmed with a
	// different payment key.
	ErrAlreadyConfirmed = errors.New("orderstore: order already confirmed")
)

// Record is one registered checkout order.
type Record struct {
	OrderID      string
	OrderName    string
	Amount       int64 // minor currency unit
	RegisteredAt time.Time
	ConfirmedKey string // payment key the order was confirmed with, if any
}

// Store is an in-memory order record repository. Orders live only as long
// as the process; checkout re-entry re-registers the order.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{records: make(map[string]*Record)}
}

// Register stores the order record at checkout entry. Re-entering checkout
// for the same order replaces the pending record; a confirmed order cannot
// be re-registered.
func (s *Store) Register(orderID, orderName string, amount int64) error {
	if orderID == "" {
		return fmt.Errorf("orderstore: orderID is required")
	}
	if amount <= 0 {
		return fmt.Errorf("orderstore: amount must be positive, got %d", amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[orderID]; ok && existing.ConfirmedKey != "" {
		return ErrAlreadyConfirmed
	}
	s.records[orderID] = &Record{
		OrderID:      orderID,
		OrderName:    orderName,
		Amount:       amount,
		RegisteredAt: time.Now(),
	}
	return nil
}

// Get fetches an order record by ID.
func (s *Store) Get(orderID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[orderID]
	if !ok {
		return Record{}, ErrUnknownOrder
	}
	return *rec, nil
}

// Confirm validates the echoed amount against the registered record and
// marks the order confirmed with the payment key. Confirming again with the
// same key is an idempotent success (redirect replays); any other key is
// rejected.
func (s *Store) Confirm(orderID string, amount int64, paymentKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[orderID]
	if !ok {
		return ErrUnknownOrder
	}
	if rec.Amount != amount {
		return ErrAmountMismatch
	}
	if rec.ConfirmedKey != "" {
		if rec.ConfirmedKey == paymentKey {
			return nil
		}
		return ErrAlreadyConfirmed
	}
	rec.ConfirmedKey = paymentKey
	return nil
}
