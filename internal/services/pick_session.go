package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"marketplace_ops_backend/internal/models"
)

var (
	ErrPickSessionNotFound = errors.New("picking session not found or expired")
	ErrPickSessionActive   = errors.New("order already has an active picking session")
	ErrPickMismatch        = errors.New("scanned value does not match the pick line")
	ErrPickStep            = errors.New("action not allowed at the current picking step")
)

// PickStep is the step a picking session waits on.
type PickStep string

const (
	PickStepScanLocation  PickStep = "scan_location"
	PickStepScanProduct   PickStep = "scan_product"
	PickStepEnterQuantity PickStep = "enter_quantity"
	PickStepCompleted     PickStep = "completed"
	PickStepShortPicked   PickStep = "short_picked"
)

// PickOutcome is what EnterQuantity decided.
type PickOutcome string

const (
	PickOutcomeNextLine PickOutcome = "next_line"
	PickOutcomeComplete PickOutcome = "complete"
	PickOutcomeShort    PickOutcome = "short"
)

// PickLine is one batch to take stock from.
type PickLine struct {
	SKU        string     `json:"sku"`
	Barcode    string     `json:"barcode"`
	Location   string     `json:"location"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
	Quantity   int        `json:"quantity"`
	Picked     int        `json:"picked"`
}

// PickSession is the server-side state of one picking terminal run.
type PickSession struct {
	ID          string                 `json:"id"`
	WaveID      int64                  `json:"wave_id"`
	WaveOrderID int64                  `json:"wave_order_id"`
	Reference   string                 `json:"reference"`
	SKU         string                 `json:"sku"`
	Required    int                    `json:"required"`
	Lines       []PickLine             `json:"lines"`
	Current     int                    `json:"current"`
	Step        PickStep               `json:"step"`
	Picker      models.Actor           `json:"picker"`
	Documents   []models.StockDocument `json:"documents,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	ExpiresAt   time.Time              `json:"expires_at"`
}

// planPickLines covers required from batches in the given order (earliest expiry first).
// When stock is short the plan covers only what exists.
func planPickLines(required int, batches []models.StockBatch) []PickLine {
	lines := []PickLine{}
	remaining := required
	for _, b := range batches {
		if remaining <= 0 {
			break
		}
		if b.OnHand <= 0 {
			continue
		}
		take := b.OnHand
		if take > remaining {
			take = remaining
		}
		lines = append(lines, PickLine{
			SKU:        b.SKU,
			Barcode:    b.Barcode,
			Location:   b.Location,
			ExpiryDate: b.ExpiryDate,
			Quantity:   take,
		})
		remaining -= take
	}
	return lines
}

func newPickSession(id string, wo models.WaveOrder, lines []PickLine, picker models.Actor, now time.Time, ttl time.Duration) *PickSession {
	step := PickStepScanLocation
	if len(lines) == 0 {
		step = PickStepEnterQuantity
	}
	return &PickSession{
		ID:          id,
		WaveID:      wo.WaveID,
		WaveOrderID: wo.ID,
		Reference:   wo.Reference,
		SKU:         wo.SKU,
		Required:    wo.Quantity,
		Lines:       lines,
		Step:        step,
		Picker:      picker,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

// CurrentLine returns the line being picked, or nil when none is left.
func (s *PickSession) CurrentLine() *PickLine {
	if s.Current < 0 || s.Current >= len(s.Lines) {
		return nil
	}
	return &s.Lines[s.Current]
}

// PickedTotal sums the quantities confirmed so far.
func (s *PickSession) PickedTotal() int {
	total := 0
	for _, l := range s.Lines {
		total += l.Picked
	}
	return total
}

// Finished reports whether the session reached a terminal step.
func (s *PickSession) Finished() bool {
	return s.Step == PickStepCompleted || s.Step == PickStepShortPicked
}

// ScanLocation verifies the location of the current line (case-insensitive exact match).
func (s *PickSession) ScanLocation(location string) error {
	if s.Step != PickStepScanLocation {
		return fmt.Errorf("%w: expected %s", ErrPickStep, s.Step)
	}
	line := s.CurrentLine()
	if !strings.EqualFold(strings.TrimSpace(location), line.Location) {
		return fmt.Errorf("%w: location %q, expected %q", ErrPickMismatch, location, line.Location)
	}
	s.Step = PickStepScanProduct
	return nil
}

// ScanProduct verifies the barcode of the current line (exact match).
func (s *PickSession) ScanProduct(barcode string) error {
	if s.Step != PickStepScanProduct {
		return fmt.Errorf("%w: expected %s", ErrPickStep, s.Step)
	}
	line := s.CurrentLine()
	if strings.TrimSpace(barcode) != line.Barcode {
		return fmt.Errorf("%w: barcode %q, expected %q", ErrPickMismatch, barcode, line.Barcode)
	}
	s.Step = PickStepEnterQuantity
	return nil
}

// EnterQuantity records the quantity for the current line. Less than the line
// quantity ends the session short. After the last line the session is complete
// only when the whole required quantity was picked.
func (s *PickSession) EnterQuantity(quantity int) (PickOutcome, error) {
	if s.Step != PickStepEnterQuantity {
		return "", fmt.Errorf("%w: expected %s", ErrPickStep, s.Step)
	}
	if quantity < 0 {
		return "", fmt.Errorf("%w: quantity cannot be negative", ErrValidation)
	}

	line := s.CurrentLine()
	if line == nil {
		// Nothing on hand: any entry is a short pick.
		if quantity > 0 {
			return "", fmt.Errorf("%w: no stock to pick from", ErrValidation)
		}
		s.Step = PickStepShortPicked
		return PickOutcomeShort, nil
	}
	if quantity > line.Quantity {
		return "", fmt.Errorf("%w: quantity %d exceeds %d", ErrValidation, quantity, line.Quantity)
	}

	line.Picked = quantity
	if quantity < line.Quantity {
		s.Step = PickStepShortPicked
		return PickOutcomeShort, nil
	}
	s.Current++
	if s.Current < len(s.Lines) {
		s.Step = PickStepScanLocation
		return PickOutcomeNextLine, nil
	}
	if s.PickedTotal() < s.Required {
		s.Step = PickStepShortPicked
		return PickOutcomeShort, nil
	}
	s.Step = PickStepCompleted
	return PickOutcomeComplete, nil
}

func (s *PickSession) clone() *PickSession {
	c := *s
	c.Lines = append([]PickLine(nil), s.Lines...)
	c.Documents = append([]models.StockDocument(nil), s.Documents...)
	return &c
}

type pickSessionEntry struct {
	mu      sync.Mutex
	session *PickSession
}

// PickSessionStore keeps picking sessions in memory until they expire.
type PickSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*pickSessionEntry
}

// NewPickSessionStore creates an empty store.
func NewPickSessionStore() *PickSessionStore {
	return &PickSessionStore{sessions: make(map[string]*pickSessionEntry)}
}

func (st *PickSessionStore) add(session *PickSession) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, e := range st.sessions {
		e.mu.Lock()
		busy := e.session.WaveOrderID == session.WaveOrderID && !e.session.Finished()
		e.mu.Unlock()
		if busy {
			return fmt.Errorf("%w: %s", ErrPickSessionActive, session.Reference)
		}
	}
	st.sessions[session.ID] = &pickSessionEntry{session: session}
	return nil
}

// with runs fn holding the session's lock. Expired sessions are not found.
func (st *PickSessionStore) with(id string, now time.Time, fn func(s *PickSession) error) error {
	st.mu.Lock()
	entry, ok := st.sessions[id]
	st.mu.Unlock()
	if !ok {
		return ErrPickSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if now.After(entry.session.ExpiresAt) {
		return ErrPickSessionNotFound
	}
	return fn(entry.session)
}

// Sweep drops sessions that expired before now and returns how many went.
func (st *PickSessionStore) Sweep(now time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, e := range st.sessions {
		e.mu.Lock()
		expired := now.After(e.session.ExpiresAt)
		e.mu.Unlock()
		if expired {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions.
func (st *PickSessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
