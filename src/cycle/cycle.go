package cycle

import (
	"errors"
	"math"

	"github.com/nhirsama/Ion-Collector/src/inter"
)

// Entry 测量周期中的一个阶段：运行模式及其持续秒数
type Entry struct {
	Mode     inter.OpMode
	Duration float64
}

// Cycle 由墙钟时间驱动的周期调度器
//
// 阶段边界对齐绝对时间而非流逝节拍，因此进程重启或卡顿后
// 计算结果依然正确。仅缓存下一次切换时刻用于抑制重复的模式下发。
type Cycle struct {
	entries []Entry
	shift   float64
	total   float64

	nextChange float64
	cached     bool
}

// New 构造调度器并校验阶段表
// 要求阶段表非空、每段时长为正
func New(entries []Entry, shift float64) (*Cycle, error) {
	if len(entries) == 0 {
		return nil, errors.New("cycle: 阶段表为空")
	}

	total := 0.0
	for _, e := range entries {
		if e.Duration <= 0 || math.IsNaN(e.Duration) || math.IsInf(e.Duration, 0) {
			return nil, errors.New("cycle: 阶段时长必须为正的有限值")
		}
		total += e.Duration
	}

	return &Cycle{entries: entries, shift: shift, total: total}, nil
}

// Mode 计算 ts（Unix 秒）时刻所处的运行阶段
//
// 仅在阶段切换刚发生（缓存失效或 ts 越过缓存的切换时刻）时返回
// (阶段, true)；在缓存时刻之前重复调用返回 (零值, false)，
// 调用方据此避免重复下发同一模式。
func (c *Cycle) Mode(ts float64) (inter.OpMode, bool) {
	if c.cached && ts <= c.nextChange {
		return inter.OpMode{}, false
	}

	// 锚定绝对时间：整周期数与周期内偏移
	cycles := math.Floor((ts - c.shift) / c.total)
	rel := ts - c.shift - cycles*c.total
	next := cycles*c.total + c.shift

	for _, e := range c.entries {
		next += e.Duration
		if rel <= e.Duration {
			c.nextChange = next
			c.cached = true
			return e.Mode, true
		}
		rel -= e.Duration
	}

	// 浮点误差使 rel 落在周期末端时归入最后一个阶段
	c.nextChange = next
	c.cached = true
	return c.entries[len(c.entries)-1].Mode, true
}

// NextChange 返回缓存的下一次阶段切换时刻（Unix 秒）
// 首次 Mode 调用之后始终有效，调用方以 min(NextChange−now, 上限)
// 约束阻塞等待时长，保证不会错过阶段边界
func (c *Cycle) NextChange() float64 {
	return c.nextChange
}

// Total 返回周期总时长（秒）
func (c *Cycle) Total() float64 {
	return c.total
}
