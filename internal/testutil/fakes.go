// Package testutil holds test doubles shared by the package tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/akylbek/payment-system/skill-check/internal/models"
)

// FakeGateway is a scriptable interfaces.Gateway.
type FakeGateway struct {
	mu      sync.Mutex
	paid    map[string]bool
	counter int64

	CreateErr error
	StatusErr error

	StatusCalls atomic.Int64
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{paid: make(map[string]bool)}
}

func (g *FakeGateway) CreateCheckoutSession(ctx context.Context, p models.GatewayCheckoutParams) (*models.GatewayCheckout, error) {
	if g.CreateErr != nil {
		return nil, g.CreateErr
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.counter++
	id := fmt.Sprintf("cs_test_%d", g.counter)
	g.paid[id] = false
	return &models.GatewayCheckout{ExternalID: id, URL: "https://checkout.example/" + id}, nil
}

func (g *FakeGateway) PaymentStatus(ctx context.Context, externalID string) (*models.GatewayPaymentStatus, error) {
	g.StatusCalls.Add(1)
	if g.StatusErr != nil {
		return nil, g.StatusErr
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	return &models.GatewayPaymentStatus{Paid: g.paid[externalID]}, nil
}

// MarkPaid makes later PaymentStatus calls report externalID as paid.
func (g *FakeGateway) MarkPaid(externalID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paid[externalID] = true
}

// RecordingScheduler collects every session handed to the completion pipeline.
type RecordingScheduler struct {
	mu       sync.Mutex
	sessions []models.PaymentSession
}

func (s *RecordingScheduler) Enqueue(session models.PaymentSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, session)
}

func (s *RecordingScheduler) Sessions() []models.PaymentSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PaymentSession(nil), s.sessions...)
}

func (s *RecordingScheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// CountingGenerator wraps a fixed outcome and counts invocations.
type CountingGenerator struct {
	Result bool
	calls  atomic.Int64
}

func (g *CountingGenerator) Generate() bool {
	g.calls.Add(1)
	return g.Result
}

func (g *CountingGenerator) Calls() int64 {
	return g.calls.Load()
}
