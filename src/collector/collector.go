package collector

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"time"

	"github.com/nhirsama/Ion-Collector/src/config"
	"github.com/nhirsama/Ion-Collector/src/cycle"
	"github.com/nhirsama/Ion-Collector/src/device"
	"github.com/nhirsama/Ion-Collector/src/inter"
)

// receivePollCap 单次消息轮询的时长上限
// 实际等待取 min(距下次阶段切换的时间, 上限)，保证不会错过阶段边界
const receivePollCap = time.Second

// Sinks 控制器向外转发数据的三个出口
type Sinks struct {
	Records inter.RecordSink
	Raw     inter.RawSink
	Diag    inter.DiagnosticSink
}

// Controller 驱动一台仪器走完运行生命周期：
// 下发初始设置，按测量周期切换运行模式，分类转发遥测与事件。
// 自身仅持有计数器快照与调度器缓存，所有设备状态变更经由会话完成。
type Controller struct {
	dev    *device.Device
	cfg    *config.Config
	cyc    *cycle.Cycle
	sinks  Sinks
	logger *slog.Logger

	// counters 受监控计数器的最近观测值，仅变化时产生诊断通知
	counters map[string]int64

	// now 可注入的时钟，测试用
	now func() time.Time
}

// NewController 构造控制器，阶段表在此转换为调度器
func NewController(dev *device.Device, cfg *config.Config, sinks Sinks, logger *slog.Logger) (*Controller, error) {
	cyc, err := cycle.New(cfg.CycleEntries(), cfg.CycleShift)
	if err != nil {
		return nil, err
	}

	counters := make(map[string]int64, len(inter.MonitoredCounters))
	for _, name := range inter.MonitoredCounters {
		counters[name] = 0
	}

	return &Controller{
		dev:      dev,
		cfg:      cfg,
		cyc:      cyc,
		sinks:    sinks,
		logger:   logger,
		counters: counters,
		now:      time.Now,
	}, nil
}

// Run 执行运行循环直到 ctx 取消或会话出错
// 会话级错误使循环终止并上抛，是否重连由调用方决定
func (c *Controller) Run(ctx context.Context) error {
	info, err := c.dev.GetSystemInfo()
	if err != nil {
		return err
	}
	serial, _ := info["serial_number"].(string)
	if serial == "" {
		return fmt.Errorf("%w: 系统信息缺少序列号: %v", inter.ErrDevice, info)
	}

	logger := c.logger.With("serial", serial)
	logger.Info("已连接", "system_info", info)

	debug, err := c.dev.GetDebugInfo()
	if err != nil {
		return err
	}
	logger.Debug("调试信息", "debug_info", debug)

	if err := c.dev.ResetSettings(c.deviceSettings()); err != nil {
		return err
	}
	effective, err := c.dev.GetSettings()
	if err != nil {
		return err
	}
	logger.Info("设置已生效", "settings", effective)

	flagMap, err := c.dev.GetFlagDescriptions()
	if err != nil {
		return err
	}

	for ctx.Err() == nil {
		now := c.now().In(c.cfg.Location())
		ts := unixSeconds(now)

		if mode, changed := c.cyc.Mode(ts); changed {
			until := time.Unix(0, int64(c.cyc.NextChange()*float64(time.Second)))
			logger.Info("切换运行模式", "mode", mode.String(), "until", until.In(c.cfg.Location()))

			if mode.IsCustom() {
				err = c.dev.SetCustomMode(mode.Params)
			} else {
				err = c.dev.SetMode(mode.Name)
			}
			if err != nil {
				return err
			}
		}

		wait := time.Duration(min(c.cyc.NextChange()-ts, receivePollCap.Seconds()) * float64(time.Second))
		if wait < 0 {
			wait = 0
		}

		msg, err := c.dev.ReceiveMessage(wait)
		if err != nil {
			return err
		}
		if msg == nil {
			continue
		}

		c.dispatch(serial, msg, flagMap, logger)
	}

	return nil
}

// deviceSettings 组装初始设置：固定项 + 配置项 + 自定义透传项
// 设备内置的自动调零被禁用，周期切换完全由主机时钟驱动
func (c *Controller) deviceSettings() map[string]any {
	settings := map[string]any{
		"auto_zero_enabled":              false,
		"averaging_period":               c.cfg.AveragingPeriod,
		"run_at_start":                   true,
		"extended_record_fields_enabled": true,
		"non_run_records_hidden":         false,
		"allow_power_from_usb_data":      c.cfg.AllowPowerFromUSBData,
		"blowers_enabled_during_zero":    c.cfg.BlowersEnabledDuringZero,
		"zero_settling_duration":         c.cfg.SettlingTime,
		"run_settling_duration":          c.cfg.SettlingTime,
	}
	maps.Copy(settings, c.cfg.CustomSettings)
	return settings
}

// dispatch 按事件类型分类转发一条消息
func (c *Controller) dispatch(serial string, msg inter.Message, flagMap map[string]string, logger *slog.Logger) {
	switch event, _ := msg["event"].(string); event {
	case "record":
		c.handleRecord(serial, msg, flagMap, logger)
	case "raw_em_record":
		c.handleRawSample(serial, msg)
	default:
		c.sinks.Diag.Message(serial, fmt.Sprintf("其他消息: %v", msg))
	}
}

// handleRecord 归一化一条遥测记录并转发到记录出口
func (c *Controller) handleRecord(serial string, msg inter.Message, flagMap map[string]string, logger *slog.Logger) {
	params, ok := msg["params"].(map[string]any)
	if !ok {
		c.sinks.Diag.Message(serial, fmt.Sprintf("record 事件缺少参数: %v", msg))
		return
	}

	// 扩展字段设置生效之前上报的记录直接丢弃
	if _, ok := params["a_electrometer_current_mean"]; !ok {
		return
	}

	// 缺失的可选字段以 NaN 补齐
	for _, f := range inter.RecordFields {
		if v, ok := params[f]; !ok || v == nil {
			params[f] = math.NaN()
		}
	}

	// 稳定期标志统一为 0/1
	settling := 0
	switch v := params["is_settling"].(type) {
	case bool:
		if v {
			settling = 1
		}
	case float64:
		if v != 0 {
			settling = 1
		}
	}
	params["is_settling"] = settling

	now := c.now().In(c.cfg.Location())
	beginMs, _ := params["begin_time_ms"].(float64)
	endMs, _ := params["end_time_ms"].(float64)
	begin := now
	if !math.IsNaN(beginMs) && !math.IsNaN(endMs) {
		begin = now.Add(-time.Duration((endMs - beginMs) * float64(time.Millisecond)))
	}

	opmode, _ := params["opmode"].(string)

	var flags []string
	if raw, ok := params["flags"].([]any); ok {
		for _, f := range raw {
			name, _ := f.(string)
			if desc, ok := flagMap[name]; ok {
				flags = append(flags, desc)
			} else {
				flags = append(flags, name)
			}
		}
	}

	rec := &inter.Record{
		BeginTime:  begin,
		EndTime:    now,
		Opmode:     opmode,
		IsSettling: settling,
		Fields:     params,
		Flags:      flags,
	}

	if err := c.sinks.Records.WriteRecord(serial, rec); err != nil {
		logger.Error("记录写出失败", "err", err)
	}

	logger.Debug("记录",
		"opmode", opmode,
		"is_settling", settling,
		"pos_conc", params["pos_concentration_mean"],
		"neg_conc", params["neg_concentration_mean"],
	)

	// 受监控计数器变化时产生一次诊断通知并更新快照
	for _, name := range inter.MonitoredCounters {
		v, ok := params[name].(float64)
		if !ok || math.IsNaN(v) {
			continue
		}
		value := int64(v)
		if last := c.counters[name]; value != last {
			c.sinks.Diag.Message(serial, fmt.Sprintf("%s: %d -> %d", name, last, value))
			c.counters[name] = value
		}
	}
}

// handleRawSample 转发一条原始电计采样
func (c *Controller) handleRawSample(serial string, msg inter.Message) {
	params, ok := msg["params"].(map[string]any)
	if !ok {
		return
	}

	channel, chOK := params["channel"].(float64)
	mcuTime, _ := params["time"].(float64)
	data, _ := params["data"].(map[string]any)
	value, valOK := data["value"].(float64)
	if !chOK || !valOK {
		return
	}

	now := c.now().UTC()
	if err := c.sinks.Raw.WriteSample(serial, now, mcuTime, int(channel), value); err != nil {
		c.logger.Error("原始采样写出失败", "err", err)
	}
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
