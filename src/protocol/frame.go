package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/nhirsama/Ion-Collector/src/inter"
	"github.com/sigurn/crc16"
)

// 帧格式: COBS(payload ‖ CRC16(payload) 小端)，传输层在写出时追加单个 0x00 终止符。
// 编码结果不含任何零字节，因此链路上任意一个零字节都是无歧义的帧边界，
// 收到垃圾数据后可以自行重新同步。

// 初始化 XMODEM CRC16 表 (多项式 0x1021，初值 0，逐字节 MSB 优先，无输出异或)
var xmodemTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// Checksum 计算载荷的 16 位校验和
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, xmodemTable)
}

// Encode 将载荷编码为一帧不含零字节的字节序列
// 空载荷编码为空字节串，由调用方作为链路唤醒使用
func Encode(payload []byte) []byte {
	if len(payload) == 0 {
		return nil
	}

	contents := make([]byte, 0, len(payload)+2)
	contents = append(contents, payload...)
	contents = binary.LittleEndian.AppendUint16(contents, Checksum(payload))

	return cobsEncode(contents)
}

// Decode 还原一帧载荷，输入为两个帧边界之间的字节（允许携带尾部 0x00）
// 变换非法、内容不足 2 字节或 CRC 不匹配时返回 ErrDecoding，绝不放行损坏的载荷
func Decode(packet []byte) ([]byte, error) {
	if n := len(packet); n > 0 && packet[n-1] == 0 {
		packet = packet[:n-1]
	}
	if len(packet) == 0 {
		return nil, nil
	}

	contents, err := cobsDecode(packet)
	if err != nil {
		return nil, err
	}

	if len(contents) < 2 {
		return nil, fmt.Errorf("%w: 帧过短: %d 字节", inter.ErrDecoding, len(contents))
	}

	payload := contents[:len(contents)-2]
	expected := binary.LittleEndian.Uint16(contents[len(contents)-2:])
	if actual := Checksum(payload); actual != expected {
		return nil, fmt.Errorf("%w: CRC 校验失败: 期望 0x%04X, 实际 0x%04X",
			inter.ErrDecoding, expected, actual)
	}

	return payload, nil
}

// cobsEncode 执行 COBS 零消除变换，输出不包含终止符
func cobsEncode(src []byte) []byte {
	dst := make([]byte, 1, len(src)+1+len(src)/254)

	codeIdx := 0
	code := byte(1)
	for _, b := range src {
		if b == 0 {
			dst[codeIdx] = code
			codeIdx = len(dst)
			dst = append(dst, 0)
			code = 1
			continue
		}

		dst = append(dst, b)
		code++
		if code == 0xFF {
			dst[codeIdx] = code
			codeIdx = len(dst)
			dst = append(dst, 0)
			code = 1
		}
	}
	dst[codeIdx] = code

	return dst
}

// cobsDecode 还原 COBS 变换，输入中出现零字节或块长度越界均视为帧损坏
func cobsDecode(src []byte) ([]byte, error) {
	if bytes.IndexByte(src, 0) >= 0 {
		return nil, fmt.Errorf("%w: COBS 数据中出现零字节", inter.ErrDecoding)
	}

	dst := make([]byte, 0, len(src))

	for i := 0; i < len(src); {
		code := src[i]
		i++

		n := int(code) - 1
		if i+n > len(src) {
			return nil, fmt.Errorf("%w: COBS 块长度越界", inter.ErrDecoding)
		}
		dst = append(dst, src[i:i+n]...)
		i += n

		if code != 0xFF && i < len(src) {
			dst = append(dst, 0)
		}
	}

	return dst, nil
}
