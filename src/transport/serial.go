package transport

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"github.com/nhirsama/Ion-Collector/src/inter"
	"github.com/nhirsama/Ion-Collector/src/protocol"
	"go.bug.st/serial"
)

// readTimeout 单次链路轮询的最长阻塞时间
// 会话层的限时等待以此为粒度分片，保证任何阻塞读都有上界
const readTimeout = 100 * time.Millisecond

// SerialTransport 基于 USB CDC 串口的帧传输实现
// 由唯一一个设备执行体独占，方法不可并发调用
type SerialTransport struct {
	port   serial.Port
	buf    []byte
	logger *slog.Logger
}

// OpenSerial 打开串口并配置为 8N1 帧模式
func OpenSerial(portName string, logger *slog.Logger) (*SerialTransport, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: 打开 %s: %v", inter.ErrCommunication, portName, err)
	}

	// USB CDC ACM: 置位 DTR/RTS，设备固件以此判断主机在位
	_ = port.SetDTR(true)
	_ = port.SetRTS(true)

	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: 设置读超时: %v", inter.ErrCommunication, err)
	}

	return newSerialTransport(port, logger), nil
}

// newSerialTransport 在已配置好的端口上构造传输层
func newSerialTransport(port serial.Port, logger *slog.Logger) *SerialTransport {
	return &SerialTransport{port: port, logger: logger}
}

// Write 编码并写出一帧，追加 0x00 帧终止符
// 空载荷仅写出终止符，用于链路唤醒
func (s *SerialTransport) Write(payload []byte) error {
	if s.port == nil {
		return fmt.Errorf("%w: 端口已关闭", inter.ErrCommunication)
	}

	framed := append(protocol.Encode(payload), 0x00)
	s.logger.Debug("串口写出", "bytes", len(framed))

	for len(framed) > 0 {
		n, err := s.port.Write(framed)
		if err != nil {
			return fmt.Errorf("%w: 写入失败: %v", inter.ErrCommunication, err)
		}
		framed = framed[n:]
	}
	return nil
}

// Read 等待并解码一帧完整载荷
// 链路空闲超过轮询超时返回 ErrReceiveTimeout；只要字节持续到达就继续拼帧
func (s *SerialTransport) Read() ([]byte, error) {
	if s.port == nil {
		return nil, fmt.Errorf("%w: 端口已关闭", inter.ErrCommunication)
	}

	chunk := make([]byte, 4096)
	for {
		if pos := bytes.IndexByte(s.buf, 0); pos >= 0 {
			packet := s.buf[:pos]
			s.buf = s.buf[pos+1:]
			return protocol.Decode(packet)
		}

		n, err := s.port.Read(chunk)
		if err != nil {
			return nil, fmt.Errorf("%w: 读取失败: %v", inter.ErrCommunication, err)
		}
		if n == 0 {
			return nil, inter.ErrReceiveTimeout
		}
		s.buf = append(s.buf, chunk[:n]...)
	}
}

// FlushPending 丢弃驱动缓冲与本地缓冲中残留的字节
// 连接建立时调用，保证下一帧从干净的边界开始
func (s *SerialTransport) FlushPending() error {
	if s.port == nil {
		return fmt.Errorf("%w: 端口已关闭", inter.ErrCommunication)
	}

	if err := s.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("%w: 清空输入缓冲: %v", inter.ErrCommunication, err)
	}
	s.buf = s.buf[:0]
	return nil
}

// Close 释放端口，可重复调用
func (s *SerialTransport) Close() error {
	if s.port == nil {
		return nil
	}

	port := s.port
	s.port = nil
	if err := port.Close(); err != nil {
		return fmt.Errorf("%w: 关闭端口: %v", inter.ErrCommunication, err)
	}
	return nil
}
