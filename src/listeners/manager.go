package listeners

import (
	"context"
	"sync"

	"github.com/danmu-go/danmu-go/src/instance"
	"github.com/danmu-go/danmu-go/src/interfaces"
	"github.com/danmu-go/danmu-go/src/live"
	"github.com/danmu-go/danmu-go/src/types"
)

func NewManager(ctx context.Context) Manager {
	lm := &manager{
		savers: make(map[types.LiveID]Listener),
	}
	instance.GetInstance(ctx).ListenerManager = lm
	return lm
}

type Manager interface {
	interfaces.Module
	AddListener(ctx context.Context, live live.Live) error
	RemoveListener(ctx context.Context, liveId types.LiveID) error
	GetListener(ctx context.Context, liveId types.LiveID) (Listener, error)
	HasListener(ctx context.Context, liveId types.LiveID) bool
}

// for test
var newListener = NewListener

type manager struct {
	lock    sync.RWMutex
	savers  map[types.LiveID]Listener
	wgAdded bool
}

func (m *manager) Start(ctx context.Context) error {
	inst := instance.GetInstance(ctx)
	if len(inst.Lives) > 0 {
		inst.WaitGroup.Add(1)
		m.wgAdded = true
	}
	return nil
}

func (m *manager) Close(ctx context.Context) {
	m.lock.Lock()
	defer m.lock.Unlock()
	for id, listener := range m.savers {
		listener.Close()
		delete(m.savers, id)
	}
	// Done 必须与 Start 里的 Add 成对，没有直播间时两边都不动
	if m.wgAdded {
		instance.GetInstance(ctx).WaitGroup.Done()
		m.wgAdded = false
	}
}

func (m *manager) AddListener(ctx context.Context, live live.Live) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if _, ok := m.savers[live.GetLiveId()]; ok {
		return ErrListenerExist
	}
	listener := newListener(ctx, live)
	m.savers[live.GetLiveId()] = listener
	return listener.Start()
}

func (m *manager) RemoveListener(ctx context.Context, liveId types.LiveID) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	listener, ok := m.savers[liveId]
	if !ok {
		return ErrListenerNotExist
	}
	listener.Close()
	delete(m.savers, liveId)
	return nil
}

func (m *manager) GetListener(ctx context.Context, liveId types.LiveID) (Listener, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	listener, ok := m.savers[liveId]
	if !ok {
		return nil, ErrListenerNotExist
	}
	return listener, nil
}

func (m *manager) HasListener(ctx context.Context, liveId types.LiveID) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	_, ok := m.savers[liveId]
	return ok
}
