package utils

import (
	"crypto/md5"
	"encoding/hex"
	"math/rand"
	"os"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
)

func GetMd5String(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// filenameReplacer 过滤文件名中的非法字符
var filenameReplacer = strings.NewReplacer(
	"/", "／",
	"\\", "＼",
	":", "：",
	"*", "＊",
	"?", "？",
	"\"", "＂",
	"<", "＜",
	">", "＞",
	"|", "｜",
)

// FilterIllegalCharacter 将路径片段中的文件系统保留字符替换为全角等价字符
func FilterIllegalCharacter(name string) string {
	return strings.TrimSpace(filenameReplacer.Replace(name))
}

// GetFuncMap 返回输出路径模板可用的函数集合
// 在 sprig 基础上补充 filenameFilter
func GetFuncMap() template.FuncMap {
	fm := sprig.TxtFuncMap()
	fm["filenameFilter"] = FilterIllegalCharacter
	return fm
}

// MkdirAll os.MkdirAll 的包装，便于测试注入
var MkdirAll = func(path string) error {
	return os.MkdirAll(path, os.ModePerm)
}

const msTokenChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"

// GenerateMsToken 生成指定长度的随机 msToken
func GenerateMsToken(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = msTokenChars[rand.Intn(len(msTokenChars))]
	}
	return string(b)
}
