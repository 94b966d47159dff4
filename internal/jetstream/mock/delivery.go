package mock

import (
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/jetstream"
)

// Delivery outcomes recorded by FakeDelivery.
const (
	OutcomeNone         = ""
	OutcomeAck          = "ack"
	OutcomeNak          = "nak"
	OutcomeNakWithDelay = "nak_delay"
	OutcomeTerm         = "term"
)

// FakeDelivery records how a handler settled a message.
type FakeDelivery struct {
	mu      sync.Mutex
	Meta    *nats.MsgMetadata
	MetaErr error
	AckErr  error

	outcome string
	delay   time.Duration
	calls   int
}

var _ jetstream.Delivery = (*FakeDelivery)(nil)

// NewFakeDelivery returns a delivery on its numDelivered-th attempt.
func NewFakeDelivery(stream, consumer string, numDelivered uint64) *FakeDelivery {
	return &FakeDelivery{
		Meta: &nats.MsgMetadata{
			Sequence:     nats.SequencePair{Stream: 42, Consumer: 7},
			NumDelivered: numDelivered,
			Stream:       stream,
			Consumer:     consumer,
			Timestamp:    time.Date(2025, time.March, 10, 15, 4, 5, 0, time.UTC),
		},
	}
}

// Metadata returns the configured metadata.
func (d *FakeDelivery) Metadata() (*nats.MsgMetadata, error) {
	if d.MetaErr != nil {
		return nil, d.MetaErr
	}
	return d.Meta, nil
}

// Ack records an ack.
func (d *FakeDelivery) Ack(...nats.AckOpt) error { return d.settle(OutcomeAck, 0) }

// Nak records an immediate nak.
func (d *FakeDelivery) Nak(...nats.AckOpt) error { return d.settle(OutcomeNak, 0) }

// NakWithDelay records a delayed nak.
func (d *FakeDelivery) NakWithDelay(delay time.Duration, _ ...nats.AckOpt) error {
	return d.settle(OutcomeNakWithDelay, delay)
}

// Term records a termination.
func (d *FakeDelivery) Term(...nats.AckOpt) error { return d.settle(OutcomeTerm, 0) }

func (d *FakeDelivery) settle(outcome string, delay time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outcome = outcome
	d.delay = delay
	d.calls++
	return d.AckErr
}

// Outcome returns the last settle call.
func (d *FakeDelivery) Outcome() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outcome
}

// Delay returns the delay of the last NakWithDelay.
func (d *FakeDelivery) Delay() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delay
}

// Settled returns how many times the message was settled.
func (d *FakeDelivery) Settled() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}
