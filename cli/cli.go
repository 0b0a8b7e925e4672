package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nhirsama/Ion-Collector/src/collector"
	"github.com/nhirsama/Ion-Collector/src/config"
	"github.com/nhirsama/Ion-Collector/src/inter"
	"github.com/nhirsama/Ion-Collector/src/recorder"
	"github.com/nhirsama/Ion-Collector/src/supervisor"
	"github.com/nhirsama/Ion-Collector/src/transport"
)

// Run 采集器入口
// 配置中指定 connection 时驱动单台仪器，否则进入多设备监督模式。
func Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer func() {
		stop()
		fmt.Println("采集器正常关闭")
	}()

	if err := start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "采集器启动失败:", err)
		os.Exit(1)
	}
}

func start(ctx context.Context) error {
	cfg, err := config.Load(os.Getenv("IONC_CONFIG"))
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))
	logger.Info("开始测量", "config", fmt.Sprintf("%+v", cfg))

	records := recorder.NewRecordsFile(cfg.RecordsDir)
	defer records.Close()

	var recordSink inter.RecordSink = records
	if cfg.SQLitePath != "" {
		store, err := recorder.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer store.Close()
		recordSink = recorder.TeeRecords{records, store}
	}

	raw := recorder.NewRawFile(cfg.RecordsDir)
	defer raw.Close()

	sinks := collector.Sinks{
		Records: recordSink,
		Raw:     raw,
		Diag:    recorder.NewSlogDiag(logger),
	}

	if cfg.Connection != "" {
		addr, err := transport.Resolve(cfg.Connection)
		if err != nil {
			return err
		}
		collector.Run(ctx, addr, cfg, sinks, logger)
		return nil
	}

	sup := supervisor.New(transport.NewUsbEnumerator(), func(ctx context.Context, addr inter.DeviceAddress) {
		collector.Run(ctx, addr, cfg, sinks, logger)
	}, logger)
	return sup.Run(ctx)
}

// logLevel 日志级别由 IONC_LOG_LEVEL 环境变量控制，默认 info
func logLevel() slog.Level {
	switch os.Getenv("IONC_LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
