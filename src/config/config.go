package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/nhirsama/Ion-Collector/src/cycle"
	"github.com/nhirsama/Ion-Collector/src/inter"
	"github.com/spf13/viper"
)

// Phase 测量周期中一个阶段的配置
// Mode 与 Params 二选一：Mode 为内置运行模式名，Params 为自定义模式参数
type Phase struct {
	Mode     string         `mapstructure:"mode"`
	Params   map[string]any `mapstructure:"params"`
	Duration float64        `mapstructure:"duration"`
}

// Config 采集进程的全部配置
// 必须在打开任何设备会话之前通过 Validate 校验
type Config struct {
	// Connection 非空时进入单设备模式，取值见 transport.Resolve
	Connection string `mapstructure:"connection"`

	// AveragingPeriod 记录平均周期（秒）
	AveragingPeriod float64 `mapstructure:"averaging_period"`
	// SettlingTime 模式切换后的稳定时长（秒）
	SettlingTime float64 `mapstructure:"settling_time"`
	// MeasurementCycle 测量周期阶段表
	MeasurementCycle []Phase `mapstructure:"measurement_cycle"`
	// CycleShift 周期相位偏移（秒，可为负）
	CycleShift float64 `mapstructure:"cycle_shift"`
	// TimeZone 显示用时区 (IANA 名称)
	TimeZone string `mapstructure:"time_zone"`

	AllowPowerFromUSBData    bool `mapstructure:"allow_power_from_usb_data"`
	BlowersEnabledDuringZero bool `mapstructure:"blowers_enabled_during_zero"`

	// RecordsDir 记录文件输出目录
	RecordsDir string `mapstructure:"records_dir"`
	// SQLitePath 非空时额外将记录写入 sqlite 数据库
	SQLitePath string `mapstructure:"sqlite_path"`

	// CustomSettings 原样透传给设备的附加设置
	CustomSettings map[string]any `mapstructure:"custom_settings"`

	location *time.Location
}

// Load 读取配置文件并完成校验
// path 为空时在当前目录查找 config.yaml，文件缺失时使用默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("averaging_period", 10.0)
	v.SetDefault("settling_time", 30.0)
	v.SetDefault("cycle_shift", 0.0)
	v.SetDefault("time_zone", "UTC")
	v.SetDefault("allow_power_from_usb_data", true)
	v.SetDefault("blowers_enabled_during_zero", true)
	v.SetDefault("records_dir", ".")
	v.SetDefault("measurement_cycle", []map[string]any{
		{"mode": inter.ModeZero, "duration": 60.0},
		{"mode": inter.ModeRun, "duration": 120.0},
	})

	v.SetEnvPrefix("IONC")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: 读取 %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: %w", err)
			}
			// 无配置文件时使用默认值
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: 解析失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置并解析时区，汇总所有违规项
func (c *Config) Validate() error {
	var problems []string

	if !(c.AveragingPeriod > 0) || math.IsInf(c.AveragingPeriod, 0) {
		problems = append(problems, "averaging_period 必须为正数")
	}
	if !(c.SettlingTime > 0) || math.IsInf(c.SettlingTime, 0) {
		problems = append(problems, "settling_time 必须为正数")
	}
	if math.IsNaN(c.CycleShift) || math.IsInf(c.CycleShift, 0) {
		problems = append(problems, "cycle_shift 必须为有限值")
	}

	if len(c.MeasurementCycle) == 0 {
		problems = append(problems, "measurement_cycle 不能为空")
	}
	for i, p := range c.MeasurementCycle {
		if !(p.Duration > 0) || math.IsInf(p.Duration, 0) {
			problems = append(problems, fmt.Sprintf("measurement_cycle[%d].duration 必须为正数", i))
		}
		if p.Mode == "" && p.Params == nil {
			problems = append(problems, fmt.Sprintf("measurement_cycle[%d] 必须指定 mode 或 params", i))
		}
		if p.Mode != "" && p.Params != nil {
			problems = append(problems, fmt.Sprintf("measurement_cycle[%d] 的 mode 与 params 互斥", i))
		}
	}

	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		problems = append(problems, fmt.Sprintf("time_zone 无效: %v", err))
	} else {
		c.location = loc
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: 配置无效: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Location 返回已解析的显示时区，仅在 Validate 通过后有效
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// CycleEntries 将阶段表转换为调度器的输入
func (c *Config) CycleEntries() []cycle.Entry {
	entries := make([]cycle.Entry, len(c.MeasurementCycle))
	for i, p := range c.MeasurementCycle {
		entries[i] = cycle.Entry{
			Mode:     inter.OpMode{Name: p.Mode, Params: p.Params},
			Duration: p.Duration,
		}
	}
	return entries
}
