package bus

import (
	"fmt"
	"sync"
	"time"
)

// Bus is a topic-keyed, in-memory pub/sub channel. Topic key is
// "case:{caseName}:job:{processingId}" (spec §4.9). The Bus is safe for
// concurrent publish/subscribe; publish is lock-free on the hot path only
// in the sense that the single-producer-per-topic invariant (only the
// orchestrator publishes to a given topic) means no producer contends with
// another producer — Subscribe/Unsubscribe still take a short lock against
// concurrent publishes to keep the subscriber set consistent.
type Bus struct {
	mu           sync.Mutex
	topics       map[string]*topic
	bufferSize   int
}

// New builds a Bus whose subscriber channels are buffered to bufferSize
// events (default 1024 per spec §4.9).
func New(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &Bus{topics: make(map[string]*topic), bufferSize: bufferSize}
}

// Topic formats the canonical topic key for a case/job pair.
func Topic(caseName, processingID string) string {
	return fmt.Sprintf("case:%s:job:%s", caseName, processingID)
}

type topic struct {
	mu   sync.Mutex
	seq  uint64
	subs map[uint64]*subscriber
	next uint64
}

type subscriber struct {
	ch      chan Event
	dropped bool
}

// Subscription is a handle returned by Subscribe; callers read from Events
// and must call Close when done.
type Subscription struct {
	Events <-chan Event
	LastSeq uint64

	bus   *Bus
	topic string
	id    uint64
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	t, ok := s.bus.topics[s.topic]
	s.bus.mu.Unlock()
	if !ok {
		return
	}
	t.mu.Lock()
	if sub, ok := t.subs[s.id]; ok {
		close(sub.ch)
		delete(t.subs, s.id)
	}
	t.mu.Unlock()
}

func (b *Bus) topicFor(key string) *topic {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[key]
	if !ok {
		t = &topic{subs: make(map[uint64]*subscriber)}
		b.topics[key] = t
	}
	return t
}

// Subscribe registers a new subscriber on topicKey. Events are delivered
// only after subscription begins; late subscribers do not get replay (use
// LastSeq() for a snapshot of where the topic currently stands and pair it
// with a Status RPC for missed events).
func (b *Bus) Subscribe(topicKey string) *Subscription {
	t := b.topicFor(topicKey)
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.next
	t.next++
	sub := &subscriber{ch: make(chan Event, b.bufferSize)}
	t.subs[id] = sub

	return &Subscription{
		Events:  sub.ch,
		LastSeq: t.seq,
		bus:     b,
		topic:   topicKey,
		id:      id,
	}
}

// Publish appends an event to topicKey and fans it out to current
// subscribers, assigning the next monotonically increasing seq. Only the
// orchestrator owning the job should publish to a given topic
// (single-producer-per-topic).
func (b *Bus) Publish(topicKey string, evType EventType, payload interface{}) Event {
	t := b.topicFor(topicKey)
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	ev := Event{Seq: t.seq, Ts: time.Now(), Type: evType, Payload: payload}

	for id, sub := range t.subs {
		if sub.dropped {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Bounded buffer full: drop this slow subscriber rather than
			// block the producer. The subscriber's channel is left open so
			// any events already queued still drain; it is simply no
			// longer fed new ones.
			sub.dropped = true
			_ = id
		}
	}
	return ev
}

// LastSeq returns the current sequence number for a topic (0 if the topic
// has never been published to).
func (b *Bus) LastSeq(topicKey string) uint64 {
	t := b.topicFor(topicKey)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq
}

// CloseTopic closes every subscriber channel for topicKey and discards the
// topic's subscriber set. Seq history is not retained (Status RPC carries
// the durable job snapshot).
func (b *Bus) CloseTopic(topicKey string) {
	b.mu.Lock()
	t, ok := b.topics[topicKey]
	delete(b.topics, topicKey)
	b.mu.Unlock()
	if !ok {
		return
	}
	t.mu.Lock()
	for id, sub := range t.subs {
		close(sub.ch)
		delete(t.subs, id)
	}
	t.mu.Unlock()
}
