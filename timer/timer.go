// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"
)

// Task 定时任务，Interval > 0 时周期重复
type Task struct {
	ID        int64
	Execute   time.Time
	Interval  time.Duration
	Callback  func()
	cancelled bool
	index     int
}

type taskQueue []*Task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	return q[i].Execute.Before(q[j].Execute)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x interface{}) {
	n := len(*q)
	task := x.(*Task)
	task.index = n
	*q = append(*q, task)
}

func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	task.index = -1
	*q = old[0 : n-1]
	return task
}

// Manager 基于最小堆的定时器管理器。到期回调在独立 goroutine 中执行，
// 任务句柄可被 Remove 精确取消一次，包括已在触发队列中的周期任务。
type Manager struct {
	queue    taskQueue
	byID     map[int64]*Task
	mutex    sync.Mutex
	nextID   int64
	trigger  chan *Task
	quit     chan struct{}
	stopOnce sync.Once
}

func NewManager() *Manager {
	m := &Manager{
		queue:   make(taskQueue, 0),
		byID:    make(map[int64]*Task),
		trigger: make(chan *Task, 1000),
		quit:    make(chan struct{}),
		nextID:  1,
	}
	heap.Init(&m.queue)
	go m.process()
	return m
}

// After schedules a one-shot or repeating task and returns its handle.
func (m *Manager) After(delay, interval time.Duration, callback func()) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task := &Task{
		ID:       m.nextID,
		Execute:  time.Now().Add(delay),
		Interval: interval,
		Callback: callback,
	}
	m.nextID++

	m.byID[task.ID] = task
	heap.Push(&m.queue, task)
	return task.ID
}

// Remove cancels a task. Safe to call for an already-fired or unknown
// handle; a repeating task already in flight will not fire again.
func (m *Manager) Remove(id int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task, exists := m.byID[id]
	if !exists {
		return
	}
	task.cancelled = true
	delete(m.byID, id)
	if task.index >= 0 {
		heap.Remove(&m.queue, task.index)
	}
}

// Stop shuts the processing loop down. Pending tasks never fire.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.quit) })
}

func (m *Manager) process() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.quit:
			return
		case <-ticker.C:
			m.mutex.Lock()
			now := time.Now()

			for m.queue.Len() > 0 {
				task := m.queue[0]
				if task.Execute.After(now) {
					break
				}

				heap.Pop(&m.queue)
				m.trigger <- task

				if task.Interval > 0 {
					task.Execute = now.Add(task.Interval)
					heap.Push(&m.queue, task)
				} else {
					delete(m.byID, task.ID)
				}
			}
			m.mutex.Unlock()

		case task := <-m.trigger:
			m.mutex.Lock()
			cancelled := task.cancelled
			m.mutex.Unlock()
			if !cancelled {
				go task.Callback()
			}
		}
	}
}
