package danmaku

import (
	"context"
	"sync"

	"github.com/danmu-go/danmu-go/src/instance"
	"github.com/danmu-go/danmu-go/src/interfaces"
	"github.com/danmu-go/danmu-go/src/listeners"
	"github.com/danmu-go/danmu-go/src/live"
	"github.com/danmu-go/danmu-go/src/pkg/events"
	"github.com/danmu-go/danmu-go/src/types"
)

func NewManager(ctx context.Context) Manager {
	dm := &manager{
		savers: make(map[types.LiveID]Danmaku),
	}
	instance.GetInstance(ctx).DanmakuManager = dm
	return dm
}

type Manager interface {
	interfaces.Module
	AddDanmaku(ctx context.Context, live live.Live) error
	RemoveDanmaku(ctx context.Context, liveId types.LiveID) error
	HasDanmaku(ctx context.Context, liveId types.LiveID) bool
}

// for test
var newDanmaku = NewDanmaku

type manager struct {
	lock    sync.RWMutex
	savers  map[types.LiveID]Danmaku
	wgAdded bool
}

func (m *manager) registryListener(ctx context.Context, ed events.Dispatcher) {
	ed.AddEventListener(listeners.LiveStart, events.NewEventListener(func(event *events.Event) {
		live := event.Object.(live.Live)
		if err := m.AddDanmaku(ctx, live); err != nil {
			live.GetLogger().Errorf("failed to add danmaku collector, err: %v", err)
		}
	}))

	// 轮询器的 LiveEnd 故意不处理：流内下播消息和宽限期
	// 由会话自己负责，会话结束时会派发 DanmakuStop
	ed.AddEventListener(listeners.ListenStop, events.NewEventListener(func(event *events.Event) {
		live := event.Object.(live.Live)
		if !m.HasDanmaku(ctx, live.GetLiveId()) {
			return
		}
		if err := m.RemoveDanmaku(ctx, live.GetLiveId()); err != nil {
			live.GetLogger().Errorf("failed to remove danmaku collector, err: %v", err)
		}
	}))

	ed.AddEventListener(DanmakuStop, events.NewEventListener(func(event *events.Event) {
		live := event.Object.(live.Live)
		m.removeEntry(live.GetLiveId())
	}))
}

func (m *manager) Start(ctx context.Context) error {
	inst := instance.GetInstance(ctx)
	if len(inst.Lives) > 0 {
		inst.WaitGroup.Add(1)
		m.wgAdded = true
	}
	m.registryListener(ctx, inst.EventDispatcher.(events.Dispatcher))
	return nil
}

func (m *manager) Close(ctx context.Context) {
	m.lock.Lock()
	defer m.lock.Unlock()
	for id, d := range m.savers {
		d.Close()
		delete(m.savers, id)
	}
	// Done 必须与 Start 里的 Add 成对，没有直播间时两边都不动
	if m.wgAdded {
		instance.GetInstance(ctx).WaitGroup.Done()
		m.wgAdded = false
	}
}

func (m *manager) AddDanmaku(ctx context.Context, live live.Live) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if _, ok := m.savers[live.GetLiveId()]; ok {
		return ErrDanmakuExist
	}
	d, err := newDanmaku(ctx, live)
	if err != nil {
		return err
	}
	m.savers[live.GetLiveId()] = d
	return d.Start(ctx)
}

func (m *manager) RemoveDanmaku(ctx context.Context, liveId types.LiveID) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	d, ok := m.savers[liveId]
	if !ok {
		return ErrDanmakuNotExist
	}
	d.Close()
	delete(m.savers, liveId)
	return nil
}

// removeEntry 会话自然结束后清理登记项，不再触发 Close
func (m *manager) removeEntry(liveId types.LiveID) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.savers, liveId)
}

func (m *manager) HasDanmaku(ctx context.Context, liveId types.LiveID) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	_, ok := m.savers[liveId]
	return ok
}
