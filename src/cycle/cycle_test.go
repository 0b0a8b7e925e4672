package cycle

import (
	"testing"

	"github.com/nhirsama/Ion-Collector/src/inter"
)

func zeroRunCycle(t *testing.T, shift float64) *Cycle {
	t.Helper()
	c, err := New([]Entry{
		{Mode: inter.OpMode{Name: inter.ModeZero}, Duration: 60},
		{Mode: inter.OpMode{Name: inter.ModeRun}, Duration: 120},
	}, shift)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

// 测试：零偏移周期表的确定性推进
func TestMode_Deterministic(t *testing.T) {
	c := zeroRunCycle(t, 0)

	cases := []struct {
		ts         float64
		mode       string
		nextChange float64
	}{
		{0, "zero", 60},
		{61, "run", 180},
		{200, "zero", 240}, // 已跨过一个整周期
	}

	for _, tc := range cases {
		mode, changed := c.Mode(tc.ts)
		if !changed {
			t.Fatalf("t=%v: expect a phase change", tc.ts)
		}
		if mode.Name != tc.mode {
			t.Errorf("t=%v: mode mismatch: got %q, want %q", tc.ts, mode.Name, tc.mode)
		}
		if c.NextChange() != tc.nextChange {
			t.Errorf("t=%v: next change mismatch: got %v, want %v", tc.ts, c.NextChange(), tc.nextChange)
		}
	}
}

// 测试：缓存时刻之前的重复调用只在第一次报告切换
func TestMode_Idempotent(t *testing.T) {
	c := zeroRunCycle(t, 0)

	if _, changed := c.Mode(10); !changed {
		t.Fatal("first call must report a change")
	}
	if _, changed := c.Mode(10); changed {
		t.Error("same timestamp before next change must not report a change")
	}
	if _, changed := c.Mode(59); changed {
		t.Error("timestamp before next change must not report a change")
	}
	if mode, changed := c.Mode(60.5); !changed || mode.Name != "run" {
		t.Errorf("crossing the boundary must report run, got %v changed=%v", mode, changed)
	}
}

// 测试：时间大幅跳跃后仍锚定绝对时间
func TestMode_AbsoluteTimeAnchor(t *testing.T) {
	c := zeroRunCycle(t, 0)

	c.Mode(0)

	// 跨越 55 个整周期：10000 = 55*180 + 100，周期内第 100 秒属于 run
	mode, changed := c.Mode(10000)
	if !changed || mode.Name != "run" {
		t.Fatalf("expect run after long stall, got %v changed=%v", mode, changed)
	}
	if want := 55*180.0 + 60 + 120; c.NextChange() != want {
		t.Errorf("next change mismatch: got %v, want %v", c.NextChange(), want)
	}
}

// 测试：负向相位偏移
func TestMode_NegativeShift(t *testing.T) {
	c := zeroRunCycle(t, -15)

	// t=0 位于周期内第 15 秒，仍在 zero 段，下一切换在 60-15=45
	mode, changed := c.Mode(0)
	if !changed || mode.Name != "zero" {
		t.Fatalf("expect zero at t=0, got %v changed=%v", mode, changed)
	}
	if c.NextChange() != 45 {
		t.Errorf("next change mismatch: got %v, want 45", c.NextChange())
	}
}

// 测试：自定义模式的参数原样传递
func TestMode_CustomPassthrough(t *testing.T) {
	params := map[string]any{"a_cev_voltage": 42.0, "blowers": false}
	c, err := New([]Entry{
		{Mode: inter.OpMode{Name: "custom", Params: params}, Duration: 30},
		{Mode: inter.OpMode{Name: inter.ModeRun}, Duration: 30},
	}, 0)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	mode, changed := c.Mode(5)
	if !changed {
		t.Fatal("expect a phase change")
	}
	if !mode.IsCustom() {
		t.Fatal("expect custom mode")
	}
	if mode.Params["a_cev_voltage"] != 42.0 {
		t.Errorf("params must pass through unchanged, got %v", mode.Params)
	}
}

// 测试：阶段表校验
func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, 0); err == nil {
		t.Error("empty table must be rejected")
	}
	if _, err := New([]Entry{{Mode: inter.OpMode{Name: "run"}, Duration: 0}}, 0); err == nil {
		t.Error("zero duration must be rejected")
	}
	if _, err := New([]Entry{{Mode: inter.OpMode{Name: "run"}, Duration: -5}}, 0); err == nil {
		t.Error("negative duration must be rejected")
	}
}
