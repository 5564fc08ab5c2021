package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestManager_OneShotFires(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	var fired int32
	m.After(10*time.Millisecond, 0, func() {
		atomic.AddInt32(&fired, 1)
	})

	// 处理循环以 100ms 为步进
	time.Sleep(300 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 1 {
		t.Errorf("one-shot fired %d times, want 1", n)
	}
}

func TestManager_RepeatingFires(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	var fired int32
	id := m.After(10*time.Millisecond, 100*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})

	time.Sleep(450 * time.Millisecond)
	m.Remove(id)
	n := atomic.LoadInt32(&fired)
	if n < 2 {
		t.Errorf("repeating task fired %d times, want at least 2", n)
	}

	// 移除后不再触发
	time.Sleep(250 * time.Millisecond)
	if got := atomic.LoadInt32(&fired); got > n+1 {
		t.Errorf("task kept firing after removal: %d -> %d", n, got)
	}
}

func TestManager_RemoveBeforeFire(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	var fired int32
	id := m.After(150*time.Millisecond, 0, func() {
		atomic.AddInt32(&fired, 1)
	})
	m.Remove(id)

	time.Sleep(400 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 0 {
		t.Errorf("removed task fired %d times", n)
	}

	// 重复移除与移除未知句柄都无害
	m.Remove(id)
	m.Remove(99999)
}

func TestManager_StopPreventsPending(t *testing.T) {
	m := NewManager()

	var fired int32
	m.After(150*time.Millisecond, 0, func() {
		atomic.AddInt32(&fired, 1)
	})
	m.Stop()
	m.Stop() // idempotent

	time.Sleep(400 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 0 {
		t.Errorf("task fired %d times after Stop", n)
	}
}
