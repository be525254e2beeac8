package types

// LiveID 直播间的内部唯一标识（url 的 md5）
type LiveID string
