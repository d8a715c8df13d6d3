package services

import "sync"

// ScopeLocks 按键串行化的进程内锁
//
// 同一角色的授权变更和级联删除互斥，不同角色并行；对账期间所有变更暂停。
type ScopeLocks struct {
	gate sync.RWMutex

	mu    sync.Mutex
	locks map[string]*scopeLock
}

type scopeLock struct {
	mu      sync.Mutex
	waiters int
}

func NewScopeLocks() *ScopeLocks {
	return &ScopeLocks{locks: make(map[string]*scopeLock)}
}

// Lock 获取 key 的锁，返回解锁函数
func (l *ScopeLocks) Lock(key string) func() {
	l.gate.RLock()

	l.mu.Lock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &scopeLock{}
		l.locks[key] = lock
	}
	lock.waiters++
	l.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.waiters--
		if lock.waiters == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()

		l.gate.RUnlock()
	}
}

// Shared 不针对具体角色的变更使用，只与对账互斥
func (l *ScopeLocks) Shared() func() {
	l.gate.RLock()
	return l.gate.RUnlock
}

// Exclusive 对账使用，等待所有进行中的变更结束
func (l *ScopeLocks) Exclusive() func() {
	l.gate.Lock()
	return l.gate.Unlock
}

// Len 当前持有或等待中的键数量
func (l *ScopeLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
