package configs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmu-go/danmu-go/src/pkg/utils"
)

func TestNewConfigWithBytesDefaults(t *testing.T) {
	cfg, err := NewConfigWithBytes([]byte("live_rooms:\n  - https://live.douyin.com/123456\n"))
	require.NoError(t, err)
	assert.Equal(t, 45, cfg.Interval)
	assert.Equal(t, 15, cfg.LiveInterval)
	assert.Equal(t, "Asia/Shanghai", cfg.Timezone)
	assert.Equal(t, 1800, cfg.IdleGraceInSec)
	assert.Equal(t, 5, cfg.MaxConnectRetries)
	require.Len(t, cfg.LiveRooms, 1)
	assert.Equal(t, "https://live.douyin.com/123456", cfg.LiveRooms[0].Url)
	assert.True(t, cfg.LiveRooms[0].IsListening)
}

func TestLiveRoomUnmarshalBothForms(t *testing.T) {
	in := `
live_rooms:
  - https://live.douyin.com/111
  - url: https://live.douyin.com/222
    nick_name: 测试主播
    interval: 60
    gift_value_threshold: 10
`
	cfg, err := NewConfigWithBytes([]byte(in))
	require.NoError(t, err)
	require.Len(t, cfg.LiveRooms, 2)

	assert.Equal(t, "https://live.douyin.com/111", cfg.LiveRooms[0].Url)
	assert.Nil(t, cfg.LiveRooms[0].Interval)

	room := cfg.LiveRooms[1]
	assert.Equal(t, "测试主播", room.NickName)
	require.NotNil(t, room.Interval)
	assert.Equal(t, 60, *room.Interval)
	require.NotNil(t, room.GiftValueThreshold)
	assert.Equal(t, 10, *room.GiftValueThreshold)
}

func TestResolveConfigForRoom(t *testing.T) {
	platformInterval := 30
	roomInterval := 20
	roomTz := "UTC"
	cfg := NewConfig()
	cfg.PlatformConfigs["douyin"] = PlatformConfig{
		OverridableConfig: OverridableConfig{Interval: &platformInterval},
		Name:              "抖音",
	}
	room := &LiveRoom{
		Url: "https://live.douyin.com/333",
		OverridableConfig: OverridableConfig{
			Interval: &roomInterval,
			Timezone: &roomTz,
		},
	}

	resolved := cfg.ResolveConfigForRoom(room, "douyin")
	// 房间级覆盖优先于平台级
	assert.Equal(t, 20, resolved.Interval)
	assert.Equal(t, "UTC", resolved.Timezone)
	// 未覆盖的字段保持全局默认
	assert.Equal(t, 15, resolved.LiveInterval)

	roomOnlyPlatform := &LiveRoom{Url: "https://live.douyin.com/444"}
	resolved = cfg.ResolveConfigForRoom(roomOnlyPlatform, "douyin")
	assert.Equal(t, 30, resolved.Interval)
}

func TestNewConfigWithFileGeneratesDefault(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yml")
	cfg, err := NewConfigWithFile(file)
	require.NoError(t, err)
	assert.Equal(t, file, cfg.File)

	// 默认配置应当已写入磁盘并可重新加载
	_, err = os.Stat(file)
	require.NoError(t, err)
	reloaded, err := NewConfigWithFile(file)
	require.NoError(t, err)
	assert.Equal(t, cfg.Interval, reloaded.Interval)
	assert.Equal(t, cfg.Timezone, reloaded.Timezone)
}

func TestGetPlatformKeyFromUrl(t *testing.T) {
	assert.Equal(t, "douyin", GetPlatformKeyFromUrl("https://live.douyin.com/123"))
	assert.Equal(t, "douyin", GetPlatformKeyFromUrl("https://v.douyin.com/abcdef/"))
	assert.Equal(t, "example.com", GetPlatformKeyFromUrl("https://example.com/room/1"))
}

func TestVerify(t *testing.T) {
	cfg := NewConfig()
	cfg.OutPutPath = t.TempDir()
	assert.Error(t, cfg.Verify(), "无房间时应当报错")

	cfg.LiveRooms = NewLiveRoomsWithStrings([]string{"https://live.douyin.com/123"})
	assert.NoError(t, cfg.Verify())

	cfg.Timezone = "Not/AZone"
	assert.Error(t, cfg.Verify())
}

func TestVerifyFailsWhenOutputPathUnusable(t *testing.T) {
	origMkdir := utils.MkdirAll
	utils.MkdirAll = func(string) error { return errors.New("disk full") }
	defer func() { utils.MkdirAll = origMkdir }()

	cfg := NewConfig()
	cfg.OutPutPath = filepath.Join(t.TempDir(), "out")
	cfg.LiveRooms = NewLiveRoomsWithStrings([]string{"https://live.douyin.com/123"})
	assert.Error(t, cfg.Verify())
}

func TestUpdatePersistsAndBumpsVersion(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yml")
	base := NewConfig()
	base.File = file
	base.LiveRooms = NewLiveRoomsWithStrings([]string{"https://live.douyin.com/123"})
	SetCurrentConfig(base)
	t.Cleanup(func() { SetCurrentConfig(nil) })

	updated, err := Update(func(c *Config) error {
		c.Interval = 99
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 99, updated.Interval)
	assert.Equal(t, base.Version+1, updated.Version)
	assert.Same(t, updated, GetCurrentConfig())
	// 旧快照保持不变
	assert.Equal(t, 45, base.Interval)

	// 持久化的文件可以被重新读出
	reloaded, err := NewConfigWithFile(file)
	require.NoError(t, err)
	assert.Equal(t, 99, reloaded.Interval)
}

func TestUpdateCASVersionConflict(t *testing.T) {
	SetCurrentConfig(NewConfig())
	t.Cleanup(func() { SetCurrentConfig(nil) })

	_, err := UpdateCAS(42, func(c *Config) error { return nil })
	assert.ErrorIs(t, err, ErrConfigVersionConflict)

	cur := GetCurrentConfig()
	updated, err := UpdateCAS(cur.Version, func(c *Config) error {
		c.Debug = true
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, cur.Version+1, updated.Version)
	assert.True(t, IsDebug())
}

func TestConfigSetters(t *testing.T) {
	SetCurrentConfig(NewConfig())
	t.Cleanup(func() { SetCurrentConfig(nil) })

	_, err := SetDebug(true)
	require.NoError(t, err)
	assert.True(t, IsDebug())

	_, err = SetCookie("live.douyin.com", "ttwid=abc")
	require.NoError(t, err)
	assert.Equal(t, "ttwid=abc", GetCurrentConfig().Cookies["live.douyin.com"])

	_, err = AppendLiveRoom(LiveRoom{Url: "https://live.douyin.com/123", IsListening: true})
	require.NoError(t, err)

	_, err = SetLiveRoomId("https://live.douyin.com/123", "live-123")
	require.NoError(t, err)
	room, err := GetCurrentConfig().GetLiveRoomByUrl("https://live.douyin.com/123")
	require.NoError(t, err)
	assert.EqualValues(t, "live-123", room.LiveId)

	// 删除房间走 Transient 更新链
	_, err = UpdateTransient(func(c *Config) error {
		return c.RemoveLiveRoomByUrl("https://live.douyin.com/123")
	})
	require.NoError(t, err)
	_, err = GetCurrentConfig().GetLiveRoomByUrl("https://live.douyin.com/123")
	assert.Error(t, err)
}
