package gateway

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooksMergeCallsBothInOrder(t *testing.T) {
	var calls []string

	first := StreamHooks{
		OnAppend:  func(RecordContext) { calls = append(calls, "first-append") },
		OnDeliver: func(RecordContext) { calls = append(calls, "first-deliver") },
		OnError:   func(RecordContext, error) { calls = append(calls, "first-error") },
	}
	second := StreamHooks{
		OnAppend: func(RecordContext) { calls = append(calls, "second-append") },
		OnError:  func(RecordContext, error) { calls = append(calls, "second-error") },
	}

	merged := first.Merge(second)
	merged.onAppend(RecordContext{})
	merged.onDeliver(RecordContext{})
	merged.onError(RecordContext{}, errors.New("x"))

	assert.Equal(t, []string{
		"first-append", "second-append",
		"first-deliver",
		"first-error", "second-error",
	}, calls)
}

func TestHooksNilSafe(t *testing.T) {
	var hooks StreamHooks
	assert.NotPanics(t, func() {
		hooks.onAppend(RecordContext{})
		hooks.onDeliver(RecordContext{})
		hooks.onError(RecordContext{}, errors.New("x"))
	})

	merged := StreamHooks{}.Merge(StreamHooks{})
	assert.Nil(t, merged.OnAppend)
	assert.Nil(t, merged.OnDeliver)
	assert.Nil(t, merged.OnError)
}

type recordingHookLogger struct {
	infos  []string
	errors []error
}

func (l *recordingHookLogger) Info(msg string, fields map[string]interface{}) {
	l.infos = append(l.infos, msg)
}

func (l *recordingHookLogger) Error(msg string, err error, fields map[string]interface{}) {
	l.errors = append(l.errors, err)
}

func TestLoggingHooks(t *testing.T) {
	logger := &recordingHookLogger{}
	hooks := LoggingHooks(logger)

	hooks.onAppend(RecordContext{Kind: "OnHeartbeat", Sequence: 1})
	hooks.onDeliver(RecordContext{Kind: "OnHeartbeat", Sequence: 1})
	boom := errors.New("boom")
	hooks.onError(RecordContext{Kind: "OnHeartbeat"}, boom)

	require.Len(t, logger.infos, 2)
	require.Len(t, logger.errors, 1)
	assert.Equal(t, boom, logger.errors[0])
}

func TestAlertingHooks(t *testing.T) {
	var alerted error
	hooks := AlertingHooks(func(_ RecordContext, err error) { alerted = err })

	boom := errors.New("mirror full")
	hooks.onError(RecordContext{}, boom)
	assert.Equal(t, boom, alerted)
	assert.Nil(t, hooks.OnAppend)
}
