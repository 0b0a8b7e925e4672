package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/nhirsama/Ion-Collector/src/inter"
)

const (
	// connectionInitTimeout 握手阶段等待 pong 的总时限
	connectionInitTimeout = time.Second
	// initPollTimeout 握手阶段单次轮询的时限
	initPollTimeout = 100 * time.Millisecond
)

// Session 将 Transport 的帧流映射为请求/响应与事件流语义
//
// 同一会话同时只允许一个未完成请求；等待响应期间到达的
// 非响应消息按到达顺序缓存，由 ReceiveMessage 依序取出。
// 会话自身不做任何重试，重连策略在控制器/监管器一侧。
type Session struct {
	tr     inter.Transport
	logger *slog.Logger

	mu       sync.Mutex
	queue    []inter.Message
	inFlight bool
}

// Open 在给定 Transport 上建立会话并完成握手
//
// 握手流程：写出空帧唤醒链路，丢弃残留字节，发送携带随机 nonce 的
// ping 请求，在限时内等待 result 等于该 nonce 的响应。这是确认对端
// 在线且帧边界同步的唯一手段。握手失败时关闭 Transport 后返回。
func Open(tr inter.Transport, logger *slog.Logger) (*Session, error) {
	s := &Session{tr: tr, logger: logger}
	if err := s.handshake(); err != nil {
		tr.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) handshake() error {
	if err := s.tr.Write(nil); err != nil {
		return err
	}
	if err := s.tr.FlushPending(); err != nil {
		return err
	}

	nonce := strconv.FormatInt(rand.Int63n(1_000_000_000), 10)
	if err := s.sendRequest("ping", nonce); err != nil {
		return err
	}

	deadline := time.Now().Add(connectionInitTimeout)
	for time.Now().Before(deadline) {
		msg, err := s.ReceiveMessage(initPollTimeout)
		if err != nil {
			return err
		}
		if msg == nil {
			continue
		}
		if result, _ := msg["result"].(string); result == nonce {
			return nil
		}
		// 其他消息属于上一次连接的残留，继续等待匹配的 pong
	}

	return fmt.Errorf("%w: 握手无响应", inter.ErrReceiveTimeout)
}

// sendRequest 序列化并写出一条请求消息
// 序列化失败（如非有限浮点数）在写出任何字节前返回 ErrEncoding
func (s *Session) sendRequest(method string, params any) error {
	msg := inter.Message{"method": method}
	if params != nil {
		msg["params"] = params
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", inter.ErrEncoding, err)
	}
	return s.tr.Write(data)
}

// Call 发送请求并等待对应的响应
//
// 等待期间收到的事件消息进入队列；error 响应转换为 *DeviceErrorResponse；
// 等待响应时遇到损坏帧视为本次调用失败（响应对应关系已丢失）。
// 已有未完成请求时直接返回 ErrSessionBusy，不做排队。
func (s *Session) Call(method string, params any, timeout time.Duration) (any, error) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", inter.ErrSessionBusy, method)
	}
	s.inFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	if err := s.sendRequest(method, params); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		payload, err := s.tr.Read()
		if errors.Is(err, inter.ErrReceiveTimeout) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(payload) == 0 {
			continue
		}

		var msg inter.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			return nil, fmt.Errorf("%w: 非法 JSON: %v", inter.ErrDecoding, err)
		}

		if result, ok := msg["result"]; ok {
			return result, nil
		}
		if errVal, ok := msg["error"]; ok {
			return nil, deviceError(errVal)
		}

		s.mu.Lock()
		s.queue = append(s.queue, msg)
		s.mu.Unlock()
	}

	return nil, fmt.Errorf("%w: %s 无响应", inter.ErrReceiveTimeout, method)
}

// Notify 发送一条不等待响应的请求
// 用于 hard_reset / enter_dfu 这类发出后连接即告失效的指令
func (s *Session) Notify(method string, params any) error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", inter.ErrSessionBusy, method)
	}
	s.mu.Unlock()

	return s.sendRequest(method, params)
}

// ReceiveMessage 返回下一条来自设备的消息
//
// 队列中有缓存消息时以 O(1) 取出最旧的一条；否则对 Transport 做一次
// 限时轮询。限时内无消息返回 (nil, nil) 而非错误；timeout 为 0 且队列
// 为空时立即返回，不做任何阻塞。损坏帧记录日志后跳过（零字节帧边界
// 保证下一帧仍可恢复），error 消息转换为 *DeviceErrorResponse。
func (s *Session) ReceiveMessage(timeout time.Duration) (inter.Message, error) {
	s.mu.Lock()
	if len(s.queue) > 0 {
		msg := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		return msg, nil
	}
	s.mu.Unlock()

	if timeout == 0 {
		return nil, nil
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		payload, err := s.tr.Read()
		if errors.Is(err, inter.ErrReceiveTimeout) {
			continue
		}
		if errors.Is(err, inter.ErrDecoding) {
			s.logger.Warn("丢弃损坏帧", "err", err)
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(payload) == 0 {
			continue
		}

		var msg inter.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logger.Warn("丢弃非法 JSON 帧", "err", err, "bytes", len(payload))
			continue
		}

		if errVal, ok := msg["error"]; ok {
			return nil, deviceError(errVal)
		}
		return msg, nil
	}

	return nil, nil
}

// Close 释放底层 Transport，可重复调用
func (s *Session) Close() error {
	if s.tr == nil {
		return nil
	}
	tr := s.tr
	s.tr = nil
	return tr.Close()
}

// deviceError 将 error 消息体转换为类型化的设备错误
func deviceError(v any) error {
	body, _ := v.(map[string]any)
	code, _ := body["code"].(string)
	msg, _ := body["msg"].(string)
	return &inter.DeviceErrorResponse{Code: code, Msg: msg}
}
