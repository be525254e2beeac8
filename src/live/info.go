package live

import (
	"encoding/json"

	"github.com/danmu-go/danmu-go/src/types"
)

type Info struct {
	Live               Live
	HostName, RoomName string
	Status             bool // means isLiving, maybe better to rename it
	Listening          bool
	Collecting         bool
	// 平台返回的原始状态值，便于排查
	RawStatus int64
	// 最近一次 API 请求的错误信息
	LastError string
}

func (i *Info) MarshalJSON() ([]byte, error) {
	t := struct {
		Id             types.LiveID `json:"id"`
		LiveUrl        string       `json:"live_url"`
		PlatformCNName string       `json:"platform_cn_name"`
		HostName       string       `json:"host_name"`
		RoomName       string       `json:"room_name"`
		Status         bool         `json:"status"`
		Listening      bool         `json:"listening"`
		Collecting     bool         `json:"collecting"`
		NickName       string       `json:"nick_name"`
		LastError      string       `json:"last_error,omitempty"`
	}{
		Id:             i.Live.GetLiveId(),
		LiveUrl:        i.Live.GetRawUrl(),
		PlatformCNName: i.Live.GetPlatformCNName(),
		HostName:       i.HostName,
		RoomName:       i.RoomName,
		Status:         i.Status,
		Listening:      i.Listening,
		Collecting:     i.Collecting,
		NickName:       i.Live.GetOptions().NickName,
		LastError:      i.LastError,
	}
	return json.Marshal(t)
}
