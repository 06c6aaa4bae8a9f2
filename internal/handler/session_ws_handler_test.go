package handler

import (
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/learnspire/testtrack-backend/internal/engine"
)

func TestBuildUpgraderOriginCheck(t *testing.T) {
	req := func(origin string) *http.Request {
		r, _ := http.NewRequest("GET", "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	open := buildUpgrader(nil)
	if !open.CheckOrigin(req("https://evil.example")) {
		t.Fatal("empty allowlist must permit all origins")
	}

	strict := buildUpgrader([]string{"https://app.example.com"})
	if !strict.CheckOrigin(req("https://app.example.com")) {
		t.Fatal("listed origin rejected")
	}
	if !strict.CheckOrigin(req("HTTPS://APP.EXAMPLE.COM")) {
		t.Fatal("origin comparison must be case-insensitive")
	}
	if strict.CheckOrigin(req("https://evil.example")) {
		t.Fatal("unlisted origin accepted")
	}
}

func TestEventFeedEmitAfterClose(t *testing.T) {
	feed := newEventFeed(4)
	feed.emit("a")
	feed.close()
	feed.close() // close is idempotent

	// A racing timer callback may still emit after the read loop shut the
	// feed down; this must not panic.
	feed.emit("b")

	if got := <-feed.ch; got != "a" {
		t.Fatalf("buffered event = %v, want a", got)
	}
	if _, ok := <-feed.ch; ok {
		t.Fatal("event emitted after close reached the channel")
	}
}

func TestEventFeedDropsOnOverflow(t *testing.T) {
	feed := newEventFeed(2)
	feed.emit(1)
	feed.emit(2)
	feed.emit(3) // dropped, no block

	if len(feed.ch) != 2 {
		t.Fatalf("buffered = %d, want 2", len(feed.ch))
	}
}

func TestEventFeedConcurrentEmitters(t *testing.T) {
	feed := newEventFeed(8)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			feed.emit(struct{}{})
		}()
	}
	done := make(chan struct{})
	go func() {
		for range feed.ch {
		}
		close(done)
	}()
	wg.Wait()
	feed.close()
	<-done
}

func TestBuildQuestionIndex(t *testing.T) {
	q1 := uuid.New()
	q2 := uuid.New()
	q3 := uuid.New()
	def := &engine.TestDefinition{
		Sections: []engine.Section{
			{ID: uuid.New(), Questions: []engine.Question{{ID: q1}, {ID: q2}}},
			{ID: uuid.New(), Questions: []engine.Question{{ID: q3}}},
		},
	}

	index := buildQuestionIndex(def)
	if len(index) != 3 {
		t.Fatalf("index size = %d, want 3", len(index))
	}
	if ref := index[q2.String()]; ref.SectionIndex != 0 || ref.QuestionIndex != 1 {
		t.Fatalf("q2 ref = %+v, want (0,1)", ref)
	}
	if ref := index[q3.String()]; ref.SectionIndex != 1 || ref.QuestionIndex != 0 {
		t.Fatalf("q3 ref = %+v, want (1,0)", ref)
	}
	if _, ok := index[uuid.New().String()]; ok {
		t.Fatal("unknown ID resolved")
	}
}
