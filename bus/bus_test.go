package bus

import "testing"

func TestPublishOrderingAndSeq(t *testing.T) {
	b := New(8)
	topicKey := Topic("case-a", "job-1")
	sub := b.Subscribe(topicKey)
	defer sub.Close()

	b.Publish(topicKey, JobStarted, JobStartedPayload{TotalFiles: 3})
	b.Publish(topicKey, DocumentFound, DocumentFoundPayload{DocumentID: "d1"})
	b.Publish(topicKey, JobCompleted, JobCompletedPayload{ElapsedSeconds: 1.2})

	var lastSeq uint64
	for i := 0; i < 3; i++ {
		ev := <-sub.Events
		if ev.Seq <= lastSeq {
			t.Fatalf("seq not strictly increasing: got %d after %d", ev.Seq, lastSeq)
		}
		lastSeq = ev.Seq
	}
}

func TestDropsSlowestSubscriberWithoutBlockingProducer(t *testing.T) {
	b := New(2)
	topicKey := Topic("case-a", "job-2")
	sub := b.Subscribe(topicKey)
	defer sub.Close()

	// Fill the buffer past capacity; publish must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(topicKey, SegmentStored, SegmentStoredPayload{SegmentID: "s"})
		}
		close(done)
	}()
	select {
	case <-done:
	default:
	}
	<-done
}

func TestLateSubscriberDoesNotReplay(t *testing.T) {
	b := New(8)
	topicKey := Topic("case-a", "job-3")
	b.Publish(topicKey, JobStarted, JobStartedPayload{TotalFiles: 1})
	b.Publish(topicKey, JobCompleted, JobCompletedPayload{})

	sub := b.Subscribe(topicKey)
	defer sub.Close()
	if sub.LastSeq != 2 {
		t.Fatalf("LastSeq = %d, want 2", sub.LastSeq)
	}
	select {
	case ev := <-sub.Events:
		t.Fatalf("unexpected replay event: %+v", ev)
	default:
	}
}
