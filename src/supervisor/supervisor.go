package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/nhirsama/Ion-Collector/src/inter"
)

// pollInterval 设备扫描周期
const pollInterval = time.Second

// RunnerFunc 驱动单台仪器直至 ctx 取消的执行体
// 返回即视为该设备生命周期结束，设备随之解除认领。
type RunnerFunc func(ctx context.Context, addr inter.DeviceAddress)

// execution 一台已认领设备的在跑执行体
type execution struct {
	addr   inter.DeviceAddress
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor 多设备监督器
// 周期性扫描在位仪器，为每台未认领设备启动独立执行体，
// 执行体退出（含崩溃）后解除认领，待设备重新发现时再次启动。
// claimed 集合只由 Run 循环读写，无需加锁。
type Supervisor struct {
	enum     inter.Enumerator
	run      RunnerFunc
	logger   *slog.Logger
	interval time.Duration
}

// New 构造监督器
func New(enum inter.Enumerator, run RunnerFunc, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		enum:     enum,
		run:      run,
		logger:   logger,
		interval: pollInterval,
	}
}

// Run 执行扫描循环直到 ctx 取消，退出前等待所有执行体结束
func (s *Supervisor) Run(ctx context.Context) error {
	claimed := make(map[inter.DeviceKey]*execution)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		exclude := make(map[inter.DeviceKey]struct{}, len(claimed))
		for key := range claimed {
			exclude[key] = struct{}{}
		}

		found, err := s.enum.FindAll(exclude)
		if err != nil {
			s.logger.Error("设备枚举失败", "err", err)
		}
		for _, addr := range found {
			s.logger.Info("发现新设备", "serial", addr.SerialNumber, "port", addr.Port)
			claimed[addr.Key()] = s.spawn(ctx, addr)
		}

		// 收割已退出的执行体，解除认领
		for key, exec := range claimed {
			select {
			case <-exec.done:
				s.logger.Info("设备执行体已退出", "serial", exec.addr.SerialNumber)
				delete(claimed, key)
			default:
			}
		}

		select {
		case <-ctx.Done():
			for _, exec := range claimed {
				exec.cancel()
			}
			for _, exec := range claimed {
				s.logger.Info("等待设备执行体退出", "serial", exec.addr.SerialNumber)
				<-exec.done
			}
			return nil
		case <-ticker.C:
		}
	}
}

// spawn 为一台设备启动执行体 goroutine
// recover 把单台设备的崩溃隔离为一次普通退出，不影响其余设备。
func (s *Supervisor) spawn(ctx context.Context, addr inter.DeviceAddress) *execution {
	runCtx, cancel := context.WithCancel(ctx)
	exec := &execution{
		addr:   addr,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(exec.done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("设备执行体崩溃", "serial", addr.SerialNumber, "panic", r)
			}
		}()
		s.run(runCtx, addr)
	}()

	return exec
}
