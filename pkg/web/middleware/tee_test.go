package middleware

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeeRunsBefore(t *testing.T) {
	step := MustCompose(Tee(push("tee")), push("next"))
	c := NewContext(nil, nil)
	require.NoError(t, step(c, nil))
	assert.Equal(t, []string{"tee", "next"}, traceOf(c))
}

func TestTeePostRunsAfter(t *testing.T) {
	step := MustCompose(TeePost(push("tee")), push("next"), push("last"))
	c := NewContext(nil, nil)
	require.NoError(t, step(c, nil))
	assert.Equal(t, []string{"next", "last", "tee"}, traceOf(c))

	c = NewContext(nil, nil)
	step = MustCompose(Tee(push("tee"), Post()), push("next"))
	require.NoError(t, step(c, nil))
	assert.Equal(t, []string{"next", "tee"}, traceOf(c))
}

func TestTeeDoesNotAlterControlFlow(t *testing.T) {
	stop := func(c *Context, next Next) error { return nil }
	step := MustCompose(Tee(stop), push("next"))
	c := NewContext(nil, nil)
	require.NoError(t, step(c, nil))
	assert.Equal(t, []string{"next"}, traceOf(c))
}

func TestTeeErrors(t *testing.T) {
	boom := errors.New("boom")
	failing := func(c *Context, next Next) error { return boom }

	t.Run("pre error stops chain", func(t *testing.T) {
		c := NewContext(nil, nil)
		err := MustCompose(Tee(failing), push("next"))(c, nil)
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, traceOf(c))
	})

	t.Run("post error surfaces after chain", func(t *testing.T) {
		c := NewContext(nil, nil)
		err := MustCompose(TeePost(failing), push("next"))(c, nil)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, []string{"next"}, traceOf(c))
	})

	t.Run("post skipped when chain fails", func(t *testing.T) {
		c := NewContext(nil, nil)
		chainErr := errors.New("chain")
		err := MustCompose(TeePost(push("tee")), func(*Context, Next) error { return chainErr })(c, nil)
		assert.ErrorIs(t, err, chainErr)
		assert.Empty(t, traceOf(c))
	})
}
