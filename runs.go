package main

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xpzouying/x-unfollow/twitter"
)

// RunStatus 取关任务状态
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

var (
	ErrRunNotFound = errors.New("run not found")
	ErrRunFinished = errors.New("run already finished")
)

// RunInfo 取关任务信息
type RunInfo struct {
	ID         string            `json:"id"`
	Handle     string            `json:"handle,omitempty"`
	Status     RunStatus         `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	Stats      *twitter.RunStats `json:"stats,omitempty"`
	Error      string            `json:"error,omitempty"`
}

func (r RunInfo) finished() bool {
	switch r.Status {
	case RunStatusCompleted, RunStatusFailed, RunStatusCanceled:
		return true
	}
	return false
}

type runEntry struct {
	info   RunInfo
	cancel context.CancelFunc
}

// runRegistry 进程内的任务表，重启后清空
type runRegistry struct {
	mu   sync.RWMutex
	runs map[string]*runEntry
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]*runEntry)}
}

func (r *runRegistry) create(handle string, cancel context.CancelFunc) RunInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := RunInfo{
		ID:        uuid.New().String(),
		Handle:    handle,
		Status:    RunStatusQueued,
		CreatedAt: time.Now(),
	}
	r.runs[info.ID] = &runEntry{info: info, cancel: cancel}
	return info
}

func (r *runRegistry) update(id string, fn func(*RunInfo)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.runs[id]; ok {
		fn(&e.info)
	}
}

// finish 记录结束状态并释放 ctx
func (r *runRegistry) finish(id string, status RunStatus, stats *twitter.RunStats, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.runs[id]
	if !ok {
		return
	}
	now := time.Now()
	e.info.Status = status
	e.info.FinishedAt = &now
	e.info.Stats = stats
	if err != nil {
		e.info.Error = err.Error()
	}
	if e.cancel != nil {
		e.cancel()
	}
}

func (r *runRegistry) get(id string) (RunInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.runs[id]
	if !ok {
		return RunInfo{}, false
	}
	return e.info, true
}

// list 按创建时间倒序返回所有任务
func (r *runRegistry) list() []RunInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RunInfo, 0, len(r.runs))
	for _, e := range r.runs {
		out = append(out, e.info)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *runRegistry) cancel(id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.runs[id]
	if !ok {
		return ErrRunNotFound
	}
	if e.info.finished() {
		return ErrRunFinished
	}
	e.cancel()
	return nil
}

// active 是否有未结束的任务
func (r *runRegistry) active() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.runs {
		if !e.info.finished() {
			return true
		}
	}
	return false
}

// cancelAll 取消所有未结束的任务
func (r *runRegistry) cancelAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.runs {
		if !e.info.finished() && e.cancel != nil {
			e.cancel()
		}
	}
}
