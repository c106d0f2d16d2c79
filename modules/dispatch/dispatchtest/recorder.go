// Package dispatchtest records frames delivered to fake connections.
package dispatchtest

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/example/realtime-chat/modules/dispatch"
)

// Recorder is a dispatch.Writer that keeps every frame it is given.
type Recorder struct {
	mu     sync.Mutex
	frames []dispatch.Frame
}

// WriteFrame records the decoded frame.
func (r *Recorder) WriteFrame(data []byte) error {
	var f dispatch.Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
	return nil
}

// Frames returns a copy of the recorded frames.
func (r *Recorder) Frames() []dispatch.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dispatch.Frame(nil), r.frames...)
}

// Events returns the recorded event names in order.
func (r *Recorder) Events() []string {
	frames := r.Frames()
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Event)
	}
	return out
}

// Count returns how many frames carried event.
func (r *Recorder) Count(event string) int {
	n := 0
	for _, f := range r.Frames() {
		if f.Event == event {
			n++
		}
	}
	return n
}

// Decode unmarshals the data of the i-th frame named event into v. It
// fails the test when there is no such frame.
func (r *Recorder) Decode(t *testing.T, event string, i int, v any) {
	t.Helper()
	n := 0
	for _, f := range r.Frames() {
		if f.Event != event {
			continue
		}
		if n == i {
			if err := json.Unmarshal(f.Data, v); err != nil {
				t.Fatalf("failed to decode %s frame: %v", event, err)
			}
			return
		}
		n++
	}
	t.Fatalf("no %s frame #%d, got events %v", event, i, r.Events())
}

// WaitFor blocks until at least n frames named event arrived or the
// timeout elapses.
func (r *Recorder) WaitFor(t *testing.T, event string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.Count(event) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d %s frames, got events %v", n, event, r.Events())
}

// Connect creates and returns a client whose frames go to a new Recorder.
func Connect(id, userID string) (*dispatch.Client, *Recorder) {
	rec := &Recorder{}
	return dispatch.NewClient(id, userID, rec, 0), rec
}
