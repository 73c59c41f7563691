package jconv

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gotest.tools/v3/assert"
)

// Not parallel: it swaps the package logger.
func TestSetLogger(t *testing.T) {
	prev := Logger()
	assert.Assert(t, prev != nil)
	t.Cleanup(func() { SetLogger(prev) })

	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))

	r := New(Config{Fallback: GoJSONFallback{}})
	_, err := r.Deserialize(TypeFor[animal](), []byte(`{"Name":"a"}`), 12)
	assert.NilError(t, err)
	_, err = r.DeserializeStream(TypeFor[animal](), strings.NewReader(`{"Name":"a"}`), nil)
	assert.NilError(t, err)
	_, err = Marshal(r, animal{})
	assert.NilError(t, err)

	assert.Equal(t, logs.FilterMessage("deserializing through fallback").Len(), 1)
	assert.Equal(t, logs.FilterMessage("deserializing stream through fallback").Len(), 1)
	assert.Equal(t, logs.FilterMessage("serializing through fallback").Len(), 1)
	entry := logs.FilterMessage("deserializing through fallback").All()[0]
	assert.Equal(t, entry.ContextMap()["type"], "jconv.animal")

	// A nil logger restores the no-op default.
	SetLogger(nil)
	assert.Assert(t, Logger() != nil)
	r = New(Config{Fallback: GoJSONFallback{}})
	r.RegisterWriter(TypeFor[int](), nil)
	_, err = Marshal(r, animal{})
	assert.NilError(t, err)
}

func TestBindingFailureLogged(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	r := New(Config{SkipBuiltins: true, Logger: zap.New(core)})
	assert.NilError(t, bindPoint(r))

	assert.Assert(t, !r.CanDeserialize(TypeFor[*brokenPoint]()))
	entries := logs.FilterMessage("object binding unavailable").All()
	assert.Equal(t, len(entries), 1)
	assert.Assert(t, strings.Contains(entries[0].ContextMap()["error"].(string), "no reader generated"))

	// Failures are not cached, so the binding is retried.
	assert.Assert(t, !r.CanDeserialize(TypeFor[*brokenPoint]()))
	assert.Equal(t, logs.FilterMessage("object binding unavailable").Len(), 2)
}
