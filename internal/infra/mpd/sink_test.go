package mpd

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/edumarques81/stellar-rooms/internal/domain/queue"
	"github.com/edumarques81/stellar-rooms/internal/domain/room"
	"github.com/edumarques81/stellar-rooms/internal/infra/snapshot"
)

type fakePlayer struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakePlayer) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakePlayer) Load(uri string) error { return f.record("load " + uri) }
func (f *fakePlayer) Pause(p bool) error {
	if p {
		return f.record("pause")
	}
	return f.record("resume")
}
func (f *fakePlayer) Stop() error { return f.record("stop") }

func (f *fakePlayer) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func track(id string) queue.Track {
	return queue.Track{Title: id, Artist: "Band", SourceRef: "http://cdn/" + id}
}

func TestSinkApply(t *testing.T) {
	player := &fakePlayer{}
	sink := NewSink(player)
	state := queue.NewState()

	state.Enqueue(track("a"))
	sink.apply(state.Snapshot())
	sink.apply(state.Snapshot())
	state.Enqueue(track("b"))
	sink.apply(state.Snapshot())
	state.SetPaused(true)
	sink.apply(state.Snapshot())
	state.SetPaused(false)
	sink.apply(state.Snapshot())
	state.Clear()
	sink.apply(state.Snapshot())

	want := []string{"load http://cdn/a", "load http://cdn/b", "pause", "resume", "stop"}
	if got := player.snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestSinkSkipsTracksWithoutSource(t *testing.T) {
	player := &fakePlayer{}
	sink := NewSink(player)
	state := queue.NewState()

	state.Enqueue(queue.Track{Title: "yt", Artist: "X", ExternalID: "abc"})
	sink.apply(state.Snapshot())

	if got := player.snapshot(); len(got) != 0 {
		t.Errorf("expected no player calls, got %v", got)
	}
}

func TestSinkFollowsRoom(t *testing.T) {
	player := &fakePlayer{}
	g := room.NewGateway("global", room.Deps{}, snapshot.Record{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewSink(player).Follow(ctx, g)
		close(done)
	}()

	g.Enqueue(track("a"))

	deadline := time.After(2 * time.Second)
	for len(player.snapshot()) == 0 {
		select {
		case <-deadline:
			t.Fatal("sink never loaded the track")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
	if got := player.snapshot()[0]; got != "load http://cdn/a" {
		t.Errorf("unexpected first call %q", got)
	}
}
