package instance

import (
	"context"
	"sync"

	"github.com/bluele/gcache"

	"github.com/danmu-go/danmu-go/src/interfaces"
	"github.com/danmu-go/danmu-go/src/live"
	"github.com/danmu-go/danmu-go/src/types"
)

// Instance 进程级注册表，保存所有直播间及各模块实例
// 由 main 创建并放入根 context，进程退出时整体销毁
type Instance struct {
	WaitGroup       sync.WaitGroup
	Lives           map[types.LiveID]live.Live
	Cache           gcache.Cache
	EventDispatcher interfaces.Module
	ListenerManager interfaces.Module
	DanmakuManager  interfaces.Module
}

type instanceKey int

// Key 用于在 context 中存取 *Instance
const Key instanceKey = iota

func GetInstance(ctx context.Context) *Instance {
	if inst, ok := ctx.Value(Key).(*Instance); ok {
		return inst
	}
	return nil
}
