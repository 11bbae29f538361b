package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	CaseCreatedKind      string = "verification.cases.case_created"
	CaseAssignedKind     string = "verification.cases.case_assigned"
	StatusChangedKind    string = "verification.cases.status_changed"
	DocumentVerifiedKind string = "verification.cases.document_verified"
	JobEntryVerifiedKind string = "verification.cases.job_entry_verified"

	defaultTopic  string = "verification.cases.events"
	defaultSource string = "verifyhub.case-engine"
)

// Writer is the interface to be implemented by the underlying writer.
type Writer interface {
	Write(ctx context.Context, topic string, e cloudevents.Event) error
	Close(ctx context.Context) error
}

// EventProducer buffers events and hands them to the Writer from a single
// goroutine, so callers never wait on the transport.
type EventProducer struct {
	buffer  *buffer
	wakeCh  chan struct{}
	doneCh  chan struct{}
	stopped chan struct{}
	once    sync.Once
	writer  Writer
	topic   string
	source  string
}

func NewEventProducer(w Writer, opts ...ProducerOptions) *EventProducer {
	ep := &EventProducer{
		buffer:  newBuffer(),
		wakeCh:  make(chan struct{}, 1),
		doneCh:  make(chan struct{}),
		stopped: make(chan struct{}),
		writer:  w,
		topic:   defaultTopic,
		source:  defaultSource,
	}

	for _, o := range opts {
		o(ep)
	}

	go ep.run()
	return ep
}

// Write queues payload as the JSON data of an event of the given kind.
// subject identifies the case the event is about.
func (ep *EventProducer) Write(_ context.Context, kind, subject string, payload any) error {
	select {
	case <-ep.doneCh:
		return errors.New("event producer is closed")
	default:
	}

	d, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ep.buffer.PushBack(&message{
		Kind:    kind,
		Subject: subject,
		Data:    d,
	})

	select {
	case ep.wakeCh <- struct{}{}:
	default:
	}

	return nil
}

// Close flushes what is already buffered and closes the writer.
func (ep *EventProducer) Close() error {
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	g, ctx := errgroup.WithContext(closeCtx)
	g.Go(func() error {
		ep.once.Do(func() { close(ep.doneCh) })
		select {
		case <-ep.stopped:
		case <-ctx.Done():
			return ctx.Err()
		}
		return ep.writer.Close(ctx)
	})
	if err := g.Wait(); err != nil {
		zap.S().Named("event_producer").Errorf("event producer closed with error: %s", err)
		return err
	}

	zap.S().Named("event_producer").Info("event producer closed")

	return nil
}

func (ep *EventProducer) run() {
	defer close(ep.stopped)

	for {
		ep.drain()

		select {
		case <-ep.wakeCh:
		case <-ep.doneCh:
			ep.drain()
			return
		}
	}
}

func (ep *EventProducer) drain() {
	for msg := ep.buffer.Pop(); msg != nil; msg = ep.buffer.Pop() {
		e := cloudevents.NewEvent()
		e.SetID(uuid.NewString())
		e.SetSource(ep.source)
		e.SetType(msg.Kind)
		e.SetSubject(msg.Subject)
		e.SetTime(time.Now().UTC())
		_ = e.SetData(cloudevents.ApplicationJSON, msg.Data)

		if err := ep.writer.Write(context.TODO(), ep.topic, e); err != nil {
			zap.S().Named("event_producer").Errorw("failed to send message", "error", err, "type", msg.Kind, "subject", msg.Subject)
		}
	}
}
