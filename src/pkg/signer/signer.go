// Package signer 执行抖音前端的签名脚本
// wss 连接串的 signature 与 enter 接口的 a_bogus 都由厂商 JS 计算，
// 这里通过 otto 在进程内执行这些脚本，不依赖外部 Node 环境。
package signer

import (
	"fmt"
	"os"
	"strings"

	"github.com/robertkrimen/otto"

	"github.com/danmu-go/danmu-go/src/pkg/utils"
)

// Signer 为连接与探测请求提供签名
// 实现必须是并发安全的
type Signer interface {
	// Sign 计算 wss 连接串的 signature 参数
	Sign(params map[string]string) (string, error)
	// ABogus 对已编码的查询串计算 a_bogus 参数
	ABogus(encodedQuery string) (string, error)
}

// signParamOrder 参与签名摘要的参数及其顺序，缺失的参数取空值
var signParamOrder = []string{
	"live_id", "aid", "version_code", "webcast_sdk_version",
	"room_id", "sub_room_id", "sub_channel_id", "did_rule",
	"user_unique_id", "device_platform", "device_type", "ac",
	"identity",
}

// JSSigner 基于厂商 JS 脚本的 Signer 实现
// 每次调用都新建 otto VM，脚本源本身只读，因此天然并发安全
type JSSigner struct {
	signSrc   string
	abogusSrc string
	userAgent string
}

// NewJSSigner 从脚本文件创建 JSSigner
func NewJSSigner(signFile, abogusFile, userAgent string) (*JSSigner, error) {
	signSrc, err := os.ReadFile(signFile)
	if err != nil {
		return nil, fmt.Errorf("read sign script: %w", err)
	}
	abogusSrc, err := os.ReadFile(abogusFile)
	if err != nil {
		return nil, fmt.Errorf("read a_bogus script: %w", err)
	}
	return NewJSSignerFromSources(string(signSrc), string(abogusSrc), userAgent), nil
}

// NewJSSignerFromSources 直接从脚本源码创建 JSSigner
func NewJSSignerFromSources(signSrc, abogusSrc, userAgent string) *JSSigner {
	return &JSSigner{
		signSrc:   signSrc,
		abogusSrc: abogusSrc,
		userAgent: userAgent,
	}
}

// Sign 取 signParamOrder 中的参数拼接为 k=v 逗号串，
// 对其 md5 后交给脚本的 get_sign
func (s *JSSigner) Sign(params map[string]string) (string, error) {
	pairs := make([]string, 0, len(signParamOrder))
	for _, key := range signParamOrder {
		pairs = append(pairs, key+"="+params[key])
	}
	digest := utils.GetMd5String([]byte(strings.Join(pairs, ",")))

	vm := otto.New()
	if _, err := vm.Run(s.signSrc); err != nil {
		return "", fmt.Errorf("eval sign script: %w", err)
	}
	value, err := vm.Call("get_sign", nil, digest)
	if err != nil {
		return "", fmt.Errorf("call get_sign: %w", err)
	}
	return value.String(), nil
}

// ABogus 调用脚本的 get_ab(query, userAgent)
// encodedQuery 必须与实际请求 URL 中的查询串完全一致
func (s *JSSigner) ABogus(encodedQuery string) (string, error) {
	vm := otto.New()
	if _, err := vm.Run(s.abogusSrc); err != nil {
		return "", fmt.Errorf("eval a_bogus script: %w", err)
	}
	value, err := vm.Call("get_ab", nil, encodedQuery, s.userAgent)
	if err != nil {
		return "", fmt.Errorf("call get_ab: %w", err)
	}
	return value.String(), nil
}
