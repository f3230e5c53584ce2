package marketdata

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/singleflight"
)

func TestRefreshSingleFlightPerKey(t *testing.T) {
	var sf singleflight.Group
	rc := NewRefreshCoordinator(&sf)

	var fetches int32
	release := make(chan struct{})
	fetch := func() (any, error) {
		atomic.AddInt32(&fetches, 1)
		<-release
		return "payload", nil
	}

	var done sync.WaitGroup
	done.Add(1)
	if !rc.Schedule("k", fetch, func(any) { done.Done() }) {
		t.Fatal("first schedule should start a refresh")
	}
	// Duplicate schedules while the first is in flight are dropped.
	for i := 0; i < 5; i++ {
		if rc.Schedule("k", fetch, func(any) { t.Error("duplicate onSuccess fired") }) {
			t.Fatal("duplicate schedule should be rejected")
		}
	}
	if rc.Pending() != 1 {
		t.Fatalf("expected 1 pending refresh, got %d", rc.Pending())
	}

	close(release)
	done.Wait()

	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Fatalf("expected exactly 1 fetch, got %d", n)
	}
}

func TestRefreshFailureIsSwallowed(t *testing.T) {
	var sf singleflight.Group
	rc := NewRefreshCoordinator(&sf)

	failed := make(chan struct{})
	rc.Schedule("k", func() (any, error) {
		defer close(failed)
		return nil, errors.New("upstream down")
	}, func(any) {
		t.Error("onSuccess must not fire on failure")
	})
	<-failed

	// The key frees up for a later attempt once the flight completes.
	deadline := time.After(2 * time.Second)
	for rc.Pending() != 0 {
		select {
		case <-deadline:
			t.Fatal("pending refresh never cleared")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	ok := make(chan struct{})
	if !rc.Schedule("k", func() (any, error) { return 1, nil }, func(any) { close(ok) }) {
		t.Fatal("key should be schedulable again after a failed refresh")
	}
	<-ok
}

func TestRefreshDistinctKeysRunConcurrently(t *testing.T) {
	var sf singleflight.Group
	rc := NewRefreshCoordinator(&sf)

	var done sync.WaitGroup
	done.Add(2)
	if !rc.Schedule("a", func() (any, error) { return 1, nil }, func(any) { done.Done() }) {
		t.Fatal("a should schedule")
	}
	if !rc.Schedule("b", func() (any, error) { return 2, nil }, func(any) { done.Done() }) {
		t.Fatal("b should schedule independently of a")
	}
	done.Wait()
}
