// Package notify предоставляет публикацию уведомлений об изменениях репозитория.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Operation тип операции над entity
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// ChangeEvent событие изменения entity в хранилище
type ChangeEvent struct {
	Operation Operation       `json:"operation"`
	EntityID  string          `json:"entity_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Publisher интерфейс издателя уведомлений об изменениях
type Publisher interface {
	Publish(ctx context.Context, event ChangeEvent) error
}

// Watcher in-process издатель с fanout по каналам подписчиков
type Watcher struct {
	mu     sync.RWMutex
	subs   map[int]chan ChangeEvent
	nextID int
	closed bool
}

// NewWatcher создает новый in-process Watcher
func NewWatcher() *Watcher {
	return &Watcher{
		subs: make(map[int]chan ChangeEvent),
	}
}

// Subscribe регистрирует подписчика и возвращает канал событий
// вместе с функцией отписки
func (w *Watcher) Subscribe(buffer int) (<-chan ChangeEvent, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if buffer <= 0 {
		buffer = 16
	}

	id := w.nextID
	w.nextID++

	ch := make(chan ChangeEvent, buffer)
	if w.closed {
		close(ch)
		return ch, func() {}
	}
	w.subs[id] = ch

	unsubscribe := func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if sub, ok := w.subs[id]; ok {
			delete(w.subs, id)
			close(sub)
		}
	}

	return ch, unsubscribe
}

// Publish рассылает событие всем подписчикам.
// Медленный подписчик с заполненным буфером теряет событие.
func (w *Watcher) Publish(ctx context.Context, event ChangeEvent) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return fmt.Errorf("watcher is closed")
	}

	for _, ch := range w.subs {
		select {
		case ch <- event:
		default:
		}
	}

	return nil
}

// Close закрывает все каналы подписчиков
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	for id, ch := range w.subs {
		delete(w.subs, id)
		close(ch)
	}

	return nil
}
