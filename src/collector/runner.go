package collector

import (
	"context"
	"log/slog"
	"time"

	"github.com/nhirsama/Ion-Collector/src/config"
	"github.com/nhirsama/Ion-Collector/src/device"
	"github.com/nhirsama/Ion-Collector/src/inter"
	"github.com/nhirsama/Ion-Collector/src/session"
	"github.com/nhirsama/Ion-Collector/src/transport"
)

// reconnectCooldown 会话中止后重新建连前的冷却时长
// 防止对已拔出或故障的设备热循环
const reconnectCooldown = time.Second

// Run 以重连循环驱动一台仪器的采集，直到 ctx 取消
// 任何会话级错误都会记录并在冷却后重试；单设备模式与
// 监管器下的设备执行体共用此入口
func Run(ctx context.Context, addr inter.DeviceAddress, cfg *config.Config, sinks Sinks, logger *slog.Logger) {
	for ctx.Err() == nil {
		err := runOnce(ctx, addr, cfg, sinks, logger)
		if err == nil {
			return
		}
		logger.Error("设备会话中止", "port", addr.Port, "err", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectCooldown):
		}
	}
}

// runOnce 建立一次连接并运行控制器，所有退出路径均释放端口
func runOnce(ctx context.Context, addr inter.DeviceAddress, cfg *config.Config, sinks Sinks, logger *slog.Logger) error {
	tr, err := transport.OpenSerial(addr.Port, logger)
	if err != nil {
		return err
	}

	// 握手失败时 session.Open 已关闭端口
	sess, err := session.Open(tr, logger)
	if err != nil {
		return err
	}

	dev := device.New(sess)
	defer dev.Close()

	ctrl, err := NewController(dev, cfg, sinks, logger)
	if err != nil {
		return err
	}
	return ctrl.Run(ctx)
}
