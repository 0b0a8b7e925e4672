package device

import (
	"fmt"
	"time"

	"github.com/nhirsama/Ion-Collector/src/inter"
)

// defaultCallTimeout 普通指令等待响应的时限
const defaultCallTimeout = time.Second

// Device 在会话之上提供仪器的类型化指令集
// 所有状态变更通过 Call 下发，所有观测通过 ReceiveMessage 取回
type Device struct {
	s inter.Session
}

func New(s inter.Session) *Device {
	return &Device{s: s}
}

// ReceiveMessage 透传会话层的消息接收
func (d *Device) ReceiveMessage(timeout time.Duration) (inter.Message, error) {
	return d.s.ReceiveMessage(timeout)
}

// Close 释放底层会话，可重复调用
func (d *Device) Close() error {
	return d.s.Close()
}

// Ping 发送回显指令，返回设备原样送回的载荷
func (d *Device) Ping(payload string) (string, error) {
	result, err := d.s.Call("ping", payload, defaultCallTimeout)
	if err != nil {
		return "", err
	}
	echo, ok := result.(string)
	if !ok {
		return "", fmt.Errorf("%w: ping 返回意外响应: %v", inter.ErrDevice, result)
	}
	return echo, nil
}

// GetSystemInfo 查询系统信息（序列号、固件版本等）
func (d *Device) GetSystemInfo() (map[string]any, error) {
	return d.callMap("get_system_info")
}

// GetDebugInfo 查询调试信息
func (d *Device) GetDebugInfo() (map[string]any, error) {
	return d.callMap("get_debug_info")
}

// GetSettings 查询当前生效的用户设置
func (d *Device) GetSettings() (map[string]any, error) {
	return d.callMap("get_settings")
}

// SetSettings 更新用户设置
func (d *Device) SetSettings(settings map[string]any) error {
	return d.waitOK("set_settings", settings)
}

// ResetSettings 恢复默认设置，settings 非空时在恢复后叠加应用
func (d *Device) ResetSettings(settings map[string]any) error {
	if len(settings) == 0 {
		return d.waitOK("reset_settings", nil)
	}
	return d.waitOK("reset_settings", settings)
}

// StoreSettings 将当前设置写入设备非易失存储
func (d *Device) StoreSettings() error {
	return d.waitOK("store_settings", nil)
}

// SetMode 切换内置运行模式 (run / run_swapped / zero / stop)
func (d *Device) SetMode(mode string) error {
	return d.waitOK("set_mode", mode)
}

// SetCustomMode 切换到带结构化参数的自定义模式
func (d *Device) SetCustomMode(params map[string]any) error {
	return d.waitOK("set_custom_mode", params)
}

// GetFlagDescriptions 查询记录标志的文字描述表
// 设备以 [标志, 描述] 对的列表返回，转换为映射
func (d *Device) GetFlagDescriptions() (map[string]string, error) {
	result, err := d.s.Call("get_flag_descriptions", nil, defaultCallTimeout)
	if err != nil {
		return nil, err
	}

	pairs, ok := result.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: get_flag_descriptions 返回意外响应: %v", inter.ErrDevice, result)
	}

	flags := make(map[string]string, len(pairs))
	for _, p := range pairs {
		pair, ok := p.([]any)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("%w: 非法的标志描述项: %v", inter.ErrDevice, p)
		}
		key, kok := pair[0].(string)
		desc, dok := pair[1].(string)
		if !kok || !dok {
			return nil, fmt.Errorf("%w: 非法的标志描述项: %v", inter.ErrDevice, p)
		}
		flags[key] = desc
	}
	return flags, nil
}

// HardReset 请求 MCU 复位，设备将重启且连接随即失效
// 调用后应关闭会话并重新建连
func (d *Device) HardReset() error {
	return d.s.Notify("hard_reset", nil)
}

// EnterDFU 请求设备复位并进入固件升级模式，连接随即失效
func (d *Device) EnterDFU() error {
	return d.s.Notify("enter_dfu", nil)
}

func (d *Device) callMap(method string) (map[string]any, error) {
	result, err := d.s.Call(method, nil, defaultCallTimeout)
	if err != nil {
		return nil, err
	}
	m, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s 返回意外响应: %v", inter.ErrDevice, method, result)
	}
	return m, nil
}

// waitOK 下发变更类指令并校验 "ok" 确认响应
func (d *Device) waitOK(method string, params any) error {
	result, err := d.s.Call(method, params, defaultCallTimeout)
	if err != nil {
		return err
	}
	if ok, _ := result.(string); ok != "ok" {
		return fmt.Errorf("%w: %s 返回意外响应: %v", inter.ErrDevice, method, result)
	}
	return nil
}
