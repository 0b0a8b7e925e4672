package device

import (
	"testing"
	"time"

	"github.com/nhirsama/Ion-Collector/src/inter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSession 按指令名返回预设结果
type scriptedSession struct {
	results  map[string]any
	calls    []string
	notifies []string
}

func (s *scriptedSession) Call(method string, params any, timeout time.Duration) (any, error) {
	s.calls = append(s.calls, method)
	return s.results[method], nil
}

func (s *scriptedSession) Notify(method string, params any) error {
	s.notifies = append(s.notifies, method)
	return nil
}

func (s *scriptedSession) ReceiveMessage(timeout time.Duration) (inter.Message, error) {
	return nil, nil
}

func (s *scriptedSession) Close() error { return nil }

func TestGetFlagDescriptions_PairListToMap(t *testing.T) {
	sess := &scriptedSession{results: map[string]any{
		"get_flag_descriptions": []any{
			[]any{"f1", "charger fault"},
			[]any{"f2", "blower stall"},
		},
	}}

	flags, err := New(sess).GetFlagDescriptions()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"f1": "charger fault",
		"f2": "blower stall",
	}, flags)
}

func TestGetFlagDescriptions_MalformedPair(t *testing.T) {
	sess := &scriptedSession{results: map[string]any{
		"get_flag_descriptions": []any{[]any{"f1"}},
	}}

	_, err := New(sess).GetFlagDescriptions()
	require.ErrorIs(t, err, inter.ErrDevice)
}

func TestSetMode_RejectsNonOkResult(t *testing.T) {
	sess := &scriptedSession{results: map[string]any{
		"set_mode": "busy",
	}}

	err := New(sess).SetMode(inter.ModeRun)
	require.ErrorIs(t, err, inter.ErrDevice)
	assert.Contains(t, err.Error(), "set_mode")
}

func TestResetSettings_EmptyMapSendsNoParams(t *testing.T) {
	sess := &scriptedSession{results: map[string]any{
		"reset_settings": "ok",
	}}

	dev := New(sess)
	require.NoError(t, dev.ResetSettings(nil))
	require.NoError(t, dev.ResetSettings(map[string]any{"averaging_period": 5.0}))
	assert.Equal(t, []string{"reset_settings", "reset_settings"}, sess.calls)
}

func TestHardReset_UsesNotify(t *testing.T) {
	sess := &scriptedSession{}
	dev := New(sess)

	require.NoError(t, dev.HardReset())
	require.NoError(t, dev.EnterDFU())

	assert.Equal(t, []string{"hard_reset", "enter_dfu"}, sess.notifies)
	assert.Empty(t, sess.calls, "reset commands must not wait for a response")
}
