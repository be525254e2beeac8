package events

import (
	"context"
	"sync"

	"github.com/danmu-go/danmu-go/src/instance"
	dgsentry "github.com/danmu-go/danmu-go/src/pkg/sentry"
)

type EventType string

type Event struct {
	Type   EventType
	Object any
}

func NewEvent(eventType EventType, object any) *Event {
	return &Event{
		Type:   eventType,
		Object: object,
	}
}

type EventListener struct {
	Handler func(event *Event)
}

func NewEventListener(handler func(event *Event)) *EventListener {
	return &EventListener{Handler: handler}
}

type Dispatcher interface {
	AddEventListener(eventType EventType, listener *EventListener)
	RemoveEventListener(eventType EventType, listener *EventListener)
	RemoveAllEventListener(eventType EventType)
	DispatchEvent(event *Event)
}

// NewDispatcher 创建事件分发器并注册到 instance
func NewDispatcher(ctx context.Context) Dispatcher {
	ed := &dispatcher{
		listeners: make(map[EventType][]*EventListener),
	}
	if inst := instance.GetInstance(ctx); inst != nil {
		inst.EventDispatcher = ed
	}
	return ed
}

type dispatcher struct {
	lock      sync.RWMutex
	listeners map[EventType][]*EventListener
}

func (d *dispatcher) Start(ctx context.Context) error {
	return nil
}

func (d *dispatcher) Close(ctx context.Context) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.listeners = make(map[EventType][]*EventListener)
}

func (d *dispatcher) AddEventListener(eventType EventType, listener *EventListener) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], listener)
}

func (d *dispatcher) RemoveEventListener(eventType EventType, listener *EventListener) {
	d.lock.Lock()
	defer d.lock.Unlock()
	list := d.listeners[eventType]
	for i, l := range list {
		if l == listener {
			d.listeners[eventType] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func (d *dispatcher) RemoveAllEventListener(eventType EventType) {
	d.lock.Lock()
	defer d.lock.Unlock()
	delete(d.listeners, eventType)
}

// DispatchEvent 异步分发事件
// 同一次 Dispatch 的监听器按注册顺序依次调用
func (d *dispatcher) DispatchEvent(event *Event) {
	if event == nil {
		return
	}
	d.lock.RLock()
	list := make([]*EventListener, len(d.listeners[event.Type]))
	copy(list, d.listeners[event.Type])
	d.lock.RUnlock()
	if len(list) == 0 {
		return
	}
	dgsentry.Go(func() {
		for _, l := range list {
			l.Handler(event)
		}
	})
}
