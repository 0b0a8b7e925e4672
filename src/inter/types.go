package inter

import (
	"time"
)

// =============================================================================
// 仪器连接常量与共享类型定义
// =============================================================================

const (
	// VendorID 仪器 USB CDC 厂商 ID (V-USB)
	VendorID = "16C0"
	// ProductID 仪器 USB CDC 产品 ID
	ProductID = "27DD"
)

// 仪器内置运行模式名
const (
	ModeRun        = "run"
	ModeRunSwapped = "run_swapped"
	ModeZero       = "zero"
	ModeStop       = "stop"
)

// Message 一帧载荷内携带的 JSON 顶层对象
// 三种形态：请求 (method/params)、响应 (result)、事件或错误 (event/params, error)
// 随帧创建与销毁，不做持久化
type Message = map[string]any

// OpMode 测量周期内一个阶段对应的运行模式
// Params 非空时表示自定义模式，调度器原样传递，不做解释
type OpMode struct {
	Name   string
	Params map[string]any
}

// IsCustom 是否为带结构化参数的自定义模式
func (m OpMode) IsCustom() bool {
	return m.Params != nil
}

func (m OpMode) String() string {
	if m.IsCustom() {
		return "custom"
	}
	return m.Name
}

// DeviceAddress 枚举得到的一台物理仪器
type DeviceAddress struct {
	// Port 串口设备路径 (如 /dev/ttyACM0)
	Port string
	// SerialNumber USB 描述符中的序列号
	SerialNumber string
}

// Key 返回用于认领去重的稳定标识
func (a DeviceAddress) Key() DeviceKey {
	return DeviceKey{Port: a.Port, Serial: a.SerialNumber}
}

// DeviceKey 区分并发跟踪的物理设备的稳定键
// 同一主机上端口路径与序列号的组合不会与其他在位设备冲突
type DeviceKey struct {
	Port   string
	Serial string
}

// Transport 底层字节链路 (USB CDC 串口) 的抽象
// 每个 Transport 由唯一一个设备执行体独占，禁止并发访问
type Transport interface {
	// Write 将一帧载荷编码后写出；空载荷仅写出帧边界字节，用于链路唤醒
	Write(payload []byte) error

	// Read 阻塞等待一帧完整载荷，轮询超时返回 ErrReceiveTimeout，
	// 校验失败返回 ErrDecoding，I/O 故障返回 ErrCommunication
	Read() ([]byte, error)

	// FlushPending 丢弃链路上残留的未读字节，使下一帧从干净边界开始
	FlushPending() error

	// Close 释放端口，可重复调用
	Close() error
}

// Session 一条已建连接上的请求/响应与事件流抽象
type Session interface {
	// Call 发送请求并等待对应的响应，同一会话同时只允许一个未完成请求
	Call(method string, params any, timeout time.Duration) (any, error)

	// Notify 发送不等待响应的请求，用于复位类指令（发出后链路即将失效）
	Notify(method string, params any) error

	// ReceiveMessage 返回下一条非请求响应的消息；超时内无消息返回 (nil, nil)
	ReceiveMessage(timeout time.Duration) (Message, error)

	// Close 释放底层 Transport，可重复调用
	Close() error
}

// Enumerator 发现当前在位且未被认领的仪器
type Enumerator interface {
	FindAll(exclude map[DeviceKey]struct{}) ([]DeviceAddress, error)
}

// Record 归一化处理后的一条遥测记录
type Record struct {
	// BeginTime / EndTime 记录覆盖的时间段（主机时钟）
	BeginTime time.Time
	EndTime   time.Time
	// Opmode 记录期间的运行模式
	Opmode string
	// IsSettling 模式切换后的稳定期标志，已强制转换为 0/1
	IsSettling int
	// Fields 展平后的命名数值字段，缺失的可选字段以 NaN 填充
	Fields map[string]any
	// Flags 设备上报的标志名（经标志描述表翻译）
	Flags []string
}

// RecordSink 遥测记录的持久化出口，负责文件轮转与头部写出
type RecordSink interface {
	WriteRecord(serial string, rec *Record) error
}

// RawSink 原始电计采样的持久化出口
type RawSink interface {
	WriteSample(serial string, t time.Time, mcuTime float64, channel int, value float64) error
}

// DiagnosticSink 自由格式诊断信息的出口
type DiagnosticSink interface {
	Message(serial string, text string)
}
