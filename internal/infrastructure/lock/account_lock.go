package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ============================================================================
// 账户锁（单写者）
// ============================================================================
//
// 【为什么需要账户锁？】
//
// 场景：用户同时发起"兑换"和"上报行动"，或者两笔兑换争抢最后一点余额
//
// 如果没有锁：
//   goroutine1: 查询余额=50 -> 创建订单 -> 扣款50 -> 余额=0
//   goroutine2: 查询余额=50 -> 创建订单 -> 扣款50 -> 读到旧余额，订单已建但扣款失败
//
// 加了锁：
//   goroutine1: 获取锁 -> 查询余额=50 -> 创建订单 -> 扣款 -> 释放锁
//   goroutine2: 等待... -> 获取锁 -> 查询余额=0 -> 余额不足，拒绝，不产生订单
//
// 【锁的范围】
//
// 只覆盖本地的"读-改-写"。外部账本调用是慢的网络请求，
// 绝不能在持锁期间发起，否则同一账户的所有请求都会被外部超时拖住。
//
// 余额都在本进程内存中，所以锁也只需要进程内互斥；
// 每个账户一个容量为 1 的 channel，既能互斥，又能响应 ctx 取消。
//
// ============================================================================

var (
	ErrLockFailed = errors.New("获取账户锁失败")
)

// AccountLocker 按账户维度加锁，不同账户之间完全并行
type AccountLocker interface {
	// Lock 阻塞直到拿到锁或 ctx 结束，返回的 unlock 必须调用且只调用一次
	Lock(ctx context.Context, accountRef string) (unlock func(), err error)
	// TryLock 非阻塞，拿不到锁时 ok=false
	TryLock(accountRef string) (unlock func(), ok bool)
}

type keyedLock struct {
	sem  chan struct{}
	refs int // 正在持有或等待这把锁的请求数，归零时回收
}

type localAccountLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

func NewAccountLocker() AccountLocker {
	return &localAccountLocker{locks: make(map[string]*keyedLock)}
}

func (l *localAccountLocker) acquireRef(accountRef string) *keyedLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	k, ok := l.locks[accountRef]
	if !ok {
		k = &keyedLock{sem: make(chan struct{}, 1)}
		l.locks[accountRef] = k
	}
	k.refs++
	return k
}

func (l *localAccountLocker) releaseRef(accountRef string, k *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k.refs--
	if k.refs == 0 {
		delete(l.locks, accountRef)
	}
}

func (l *localAccountLocker) Lock(ctx context.Context, accountRef string) (func(), error) {
	k := l.acquireRef(accountRef)

	select {
	case k.sem <- struct{}{}:
		return l.unlockFunc(accountRef, k), nil
	case <-ctx.Done():
		l.releaseRef(accountRef, k)
		return nil, ctx.Err()
	}
}

func (l *localAccountLocker) TryLock(accountRef string) (func(), bool) {
	k := l.acquireRef(accountRef)

	select {
	case k.sem <- struct{}{}:
		return l.unlockFunc(accountRef, k), true
	default:
		l.releaseRef(accountRef, k)
		return nil, false
	}
}

func (l *localAccountLocker) unlockFunc(accountRef string, k *keyedLock) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-k.sem
			l.releaseRef(accountRef, k)
		})
	}
}

// LockWithTimeout 带超时的阻塞加锁，超时返回 ErrLockFailed
func LockWithTimeout(ctx context.Context, locker AccountLocker, accountRef string, timeout time.Duration) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	unlock, err := locker.Lock(ctx, accountRef)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrLockFailed
		}
		return nil, err
	}
	return unlock, nil
}
