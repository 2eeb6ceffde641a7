package biz

import (
	"sort"
	"sync"
)

// Registry 在线用户注册表：用户 -> 该用户所有存活连接
// 同一个连接最多只属于一个用户，连接集合为空时整个条目会被删除
type Registry struct {
	mu sync.RWMutex
	// userID -> set of sessionID
	users map[string]map[string]struct{}
	// sessionID -> userID，断开连接时只知道 sessionID
	owners map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[string]map[string]struct{}),
		owners: make(map[string]string),
	}
}

// Join 将连接绑定到用户，重复调用结果不变
// 如果连接已经绑定到其他用户，会先从原用户下移除（替换而不是追加）
// previous 为原绑定用户，changed 表示注册表是否发生变化
func (r *Registry) Join(userID, sessionID string) (previous string, changed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous, bound := r.owners[sessionID]
	if bound && previous == userID {
		return previous, false
	}
	if bound {
		r.removeLocked(previous, sessionID)
	}
	sessions, ok := r.users[userID]
	if !ok {
		sessions = make(map[string]struct{})
		r.users[userID] = sessions
	}
	sessions[sessionID] = struct{}{}
	r.owners[sessionID] = userID
	return previous, true
}

// Leave 按连接ID解绑，连接从未绑定时什么也不做
func (r *Registry) Leave(sessionID string) (userID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok = r.owners[sessionID]
	if !ok {
		return "", false
	}
	delete(r.owners, sessionID)
	r.removeLocked(userID, sessionID)
	return userID, true
}

// SessionsFor 返回用户当前所有连接ID（有序），未知用户返回空
func (r *Registry) SessionsFor(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := r.users[userID]
	if len(sessions) == 0 {
		return nil
	}
	ids := make([]string, 0, len(sessions))
	for id := range sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// UserOf 返回连接当前绑定的用户
func (r *Registry) UserOf(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.owners[sessionID]
	return userID, ok
}

func (r *Registry) Online(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[userID]
	return ok
}

// Len 在线用户数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// 调用前必须持有写锁
func (r *Registry) removeLocked(userID, sessionID string) {
	sessions, ok := r.users[userID]
	if !ok {
		return
	}
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(r.users, userID)
	}
}
