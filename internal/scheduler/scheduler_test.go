package scheduler

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCoalescing(t *testing.T) {
	s := NewScheduler(8)
	var mu sync.Mutex
	var ran []string
	record := func(name string) func() error {
		return func() error {
			mu.Lock()
			defer mu.Unlock()
			ran = append(ran, name)
			return nil
		}
	}

	// Queue before the loop runs so nothing is consumed yet.
	s.Schedule(Task{Name: "compile", Execute: record("compile 1")})
	s.Schedule(Task{Name: "fetch", Execute: record("fetch")})
	s.Schedule(Task{Name: "compile", Execute: record("compile 2")})
	s.Schedule(Task{Name: "fail", Execute: func() error { return errors.New("boom") }})
	s.RunScheduler()
	s.Wait()

	want := []string{"compile 2", "fetch"}
	if diff := cmp.Diff(want, ran); diff != "" {
		t.Errorf("tasks mismatch (-want +got):\n%s", diff)
	}

	s.Schedule(Task{Name: "compile", Execute: record("compile 3")})
	s.StopScheduler()
	if ran[len(ran)-1] != "compile 3" {
		t.Errorf("last task = %q", ran[len(ran)-1])
	}
	if s.Schedule(Task{Name: "late", Execute: record("late")}) {
		t.Error("task accepted after stop")
	}
}

func TestQueueFull(t *testing.T) {
	s := NewScheduler(1)
	noop := func() error { return nil }
	if !s.Schedule(Task{Name: "a", Execute: noop}) {
		t.Fatal("first task dropped")
	}
	if s.Schedule(Task{Name: "b", Execute: noop}) {
		t.Error("second task accepted by a full queue")
	}
	if !s.Schedule(Task{Name: "a", Execute: noop}) {
		t.Error("coalescing task dropped")
	}
	s.RunScheduler()
	s.StopScheduler()
}
