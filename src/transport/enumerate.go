package transport

import (
	"fmt"
	"strings"

	"github.com/nhirsama/Ion-Collector/src/inter"
	"go.bug.st/serial/enumerator"
)

// UsbEnumerator 通过 USB 描述符发现在位的仪器
// 实现 inter.Enumerator
type UsbEnumerator struct{}

func NewUsbEnumerator() inter.Enumerator {
	return &UsbEnumerator{}
}

// FindAll 列出当前在位且不在排除集中的仪器
// 按厂商/产品 ID 过滤 USB CDC 端口，排除集由监管器维护（已被认领的设备）
func (e *UsbEnumerator) FindAll(exclude map[inter.DeviceKey]struct{}) ([]inter.DeviceAddress, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("%w: 端口枚举失败: %v", inter.ErrDevice, err)
	}

	var found []inter.DeviceAddress
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		if !strings.EqualFold(p.VID, inter.VendorID) || !strings.EqualFold(p.PID, inter.ProductID) {
			continue
		}

		addr := inter.DeviceAddress{Port: p.Name, SerialNumber: p.SerialNumber}
		if _, claimed := exclude[addr.Key()]; claimed {
			continue
		}
		found = append(found, addr)
	}

	return found, nil
}

// Resolve 将连接字符串解析为一台具体的仪器
//
// 支持三种形式:
//   - "serial:/dev/ttyACM0": 直接使用指定串口
//   - "0107E60A0101": 按 USB 序列号匹配
//   - "": 自动发现，要求恰好一台在位
func Resolve(conn string) (inter.DeviceAddress, error) {
	if after, ok := strings.CutPrefix(conn, "serial:"); ok {
		return inter.DeviceAddress{Port: after}, nil
	}

	found, err := NewUsbEnumerator().FindAll(nil)
	if err != nil {
		return inter.DeviceAddress{}, err
	}

	if conn != "" && conn != "*" {
		for _, d := range found {
			if d.SerialNumber == conn {
				return d, nil
			}
		}
		return inter.DeviceAddress{}, fmt.Errorf("%w: 未找到序列号为 %s 的设备", inter.ErrDevice, conn)
	}

	switch len(found) {
	case 0:
		return inter.DeviceAddress{}, fmt.Errorf("%w: 未发现仪器", inter.ErrDevice)
	case 1:
		return found[0], nil
	default:
		serials := make([]string, len(found))
		for i, d := range found {
			serials[i] = d.SerialNumber
		}
		return inter.DeviceAddress{}, fmt.Errorf("%w: 发现多台仪器: %s",
			inter.ErrDevice, strings.Join(serials, ", "))
	}
}
