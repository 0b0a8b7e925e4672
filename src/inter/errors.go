package inter

import (
	"errors"
	"fmt"
)

// =============================================================================
// 错误分类体系
//
// 所有错误均可通过 errors.Is(err, ErrDevice) 粗粒度捕获，
// 或通过具体的哨兵错误 / *DeviceErrorResponse 精确区分。
// =============================================================================

// ErrDevice 所有仪器通信错误的根类型
var ErrDevice = errors.New("ion: 设备错误")

var (
	// ErrCommunication 传输层 I/O 失败（如设备被拔出），会话层不做重试
	ErrCommunication = fmt.Errorf("%w: 通信失败", ErrDevice)

	// ErrReceiveTimeout 限时等待内未收到帧或响应，属于轮询中的可恢复状态
	ErrReceiveTimeout = fmt.Errorf("%w: 接收超时", ErrDevice)

	// ErrDecoding 收到的帧校验失败或 JSON 非法
	ErrDecoding = fmt.Errorf("%w: 解码失败", ErrDevice)

	// ErrEncoding 待发送的消息无法序列化（如包含非有限浮点数），在写出任何字节前失败
	ErrEncoding = fmt.Errorf("%w: 编码失败", ErrDevice)

	// ErrSessionBusy 同一会话上已有未完成的请求，第二次 Call 被硬性拒绝
	ErrSessionBusy = fmt.Errorf("%w: 会话已有未完成请求", ErrDevice)
)

// DeviceErrorResponse 设备对某条指令明确返回的错误响应
// 携带设备侧的错误码与描述，永远原样上抛，不做静默重试
type DeviceErrorResponse struct {
	Code string
	Msg  string
}

func (e *DeviceErrorResponse) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("ion: 设备返回错误: %s", e.Code)
	}
	return fmt.Sprintf("ion: 设备返回错误: %s: %s", e.Code, e.Msg)
}

// Unwrap 使 errors.Is(err, ErrDevice) 成立
func (e *DeviceErrorResponse) Unwrap() error {
	return ErrDevice
}
