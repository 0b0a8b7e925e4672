package supervisor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nhirsama/Ion-Collector/src/inter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEnum 固定设备清单的枚举器，排除集合生效
type fakeEnum struct {
	mu      sync.Mutex
	devices []inter.DeviceAddress
}

func (f *fakeEnum) FindAll(exclude map[inter.DeviceKey]struct{}) ([]inter.DeviceAddress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []inter.DeviceAddress
	for _, d := range f.devices {
		if _, claimed := exclude[d.Key()]; !claimed {
			out = append(out, d)
		}
	}
	return out, nil
}

// starts 线程安全的按序列号启动计数
type starts struct {
	mu     sync.Mutex
	counts map[string]int
}

func newStarts() *starts {
	return &starts{counts: make(map[string]int)}
}

func (s *starts) inc(serial string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[serial]++
}

func (s *starts) get(serial string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[serial]
}

func newTestSupervisor(enum inter.Enumerator, run RunnerFunc) *Supervisor {
	s := New(enum, run, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.interval = 5 * time.Millisecond
	return s
}

// 测试：在位设备各启动一个执行体，在跑期间不重复认领
func TestRun_ClaimsEachDeviceOnce(t *testing.T) {
	enum := &fakeEnum{devices: []inter.DeviceAddress{
		{Port: "/dev/ttyACM0", SerialNumber: "A"},
		{Port: "/dev/ttyACM1", SerialNumber: "B"},
	}}
	counts := newStarts()

	sup := newTestSupervisor(enum, func(ctx context.Context, addr inter.DeviceAddress) {
		counts.inc(addr.SerialNumber)
		<-ctx.Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	time.Sleep(60 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 1, counts.get("A"))
	assert.Equal(t, 1, counts.get("B"))
}

// 测试：执行体退出后设备解除认领，再次发现时重新启动
func TestRun_RestartAfterExit(t *testing.T) {
	enum := &fakeEnum{devices: []inter.DeviceAddress{
		{Port: "/dev/ttyACM0", SerialNumber: "A"},
	}}
	counts := newStarts()

	sup := newTestSupervisor(enum, func(ctx context.Context, addr inter.DeviceAddress) {
		counts.inc(addr.SerialNumber)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.GreaterOrEqual(t, counts.get("A"), 2, "a dead device must be reclaimed and restarted")
}

// 测试：单台设备执行体崩溃不影响其余设备
func TestRun_PanicIsolation(t *testing.T) {
	enum := &fakeEnum{devices: []inter.DeviceAddress{
		{Port: "/dev/ttyACM0", SerialNumber: "A"},
		{Port: "/dev/ttyACM1", SerialNumber: "B"},
	}}
	counts := newStarts()

	sup := newTestSupervisor(enum, func(ctx context.Context, addr inter.DeviceAddress) {
		counts.inc(addr.SerialNumber)
		if addr.SerialNumber == "A" {
			panic("simulated crash")
		}
		<-ctx.Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.GreaterOrEqual(t, counts.get("A"), 2, "crashed device gets restarted")
	assert.Equal(t, 1, counts.get("B"), "healthy device keeps its single execution")
}

// 测试：关停顺序为先取消再等待全部执行体退出
func TestRun_ShutdownWaitsForRunners(t *testing.T) {
	enum := &fakeEnum{devices: []inter.DeviceAddress{
		{Port: "/dev/ttyACM0", SerialNumber: "A"},
	}}

	var mu sync.Mutex
	finished := false

	sup := newTestSupervisor(enum, func(ctx context.Context, addr inter.DeviceAddress) {
		<-ctx.Done()
		time.Sleep(30 * time.Millisecond)
		mu.Lock()
		finished = true
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, finished, "Run must not return before every runner has exited")
}
