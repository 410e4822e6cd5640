package testutil

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContexts(t *testing.T) {
	ctx := TestContextWithTimeout(t, time.Minute)
	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
	assert.NoError(t, TestContext(t).Err())
	assert.Error(t, CancelledContext().Err())
}

func TestWaitFor(t *testing.T) {
	var n atomic.Int32
	go func() {
		time.Sleep(20 * time.Millisecond)
		n.Store(1)
	}()
	assert.True(t, WaitFor(func() bool { return n.Load() == 1 }, 2*time.Second))
	assert.False(t, WaitFor(func() bool { return false }, 30*time.Millisecond))
}

func TestWaitForChannel(t *testing.T) {
	ch := make(chan string, 1)
	ch <- "x"
	v, ok := WaitForChannel(ch, time.Second)
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	_, ok = WaitForChannel(ch, 20*time.Millisecond)
	assert.False(t, ok)
}

func TestAssertJSONEqual(t *testing.T) {
	AssertJSONEqual(t, `{"a":1,"b":[true]}`, `{ "b": [true], "a": 1 }`)
	assert.Equal(t, `{"k":"v"}`, MustJSON(map[string]string{"k": "v"}))
}
