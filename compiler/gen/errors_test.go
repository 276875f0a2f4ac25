package gen

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigError(t *testing.T) {
	t.Run("Error message with value", func(t *testing.T) {
		err := NewConfigError("dialect", "oracle", "unsupported dialect")

		assert.Contains(t, err.Error(), "daogen: config error")
		assert.Contains(t, err.Error(), "dialect")
		assert.Contains(t, err.Error(), "oracle")
		assert.Contains(t, err.Error(), "unsupported dialect")
	})

	t.Run("Error message without value", func(t *testing.T) {
		err := NewConfigError("package", nil, "cannot be empty")
		assert.NotContains(t, err.Error(), "value:")
	})

	t.Run("Is matches ErrMissingConfig", func(t *testing.T) {
		err := NewConfigError("package", nil, "")
		assert.True(t, errors.Is(err, ErrMissingConfig))
		assert.False(t, errors.Is(err, ErrLoadFailed))
	})

	t.Run("IsConfigError helper", func(t *testing.T) {
		assert.True(t, IsConfigError(NewConfigError("x", nil, "y")))
		assert.False(t, IsConfigError(errors.New("other")))
	})
}

func TestLoadError(t *testing.T) {
	t.Run("Error message lists patterns and cause", func(t *testing.T) {
		err := NewLoadError([]string{"./a", "./b"}, errors.New("no Go files"))

		assert.Equal(t, "daogen: load error for ./a ./b: no Go files", err.Error())
	})

	t.Run("Unwrap returns cause", func(t *testing.T) {
		cause := errors.New("root cause")
		err := NewLoadError(nil, cause)

		assert.Equal(t, cause, err.Unwrap())
		assert.True(t, errors.Is(err, cause))
		assert.True(t, errors.Is(err, ErrLoadFailed))
		assert.True(t, IsLoadError(err))
	})
}

func TestGenerationError(t *testing.T) {
	t.Run("Error message with all fields", func(t *testing.T) {
		err := NewGenerationError("UserStore", "/tmp/user_store_dao.go", "format", errors.New("syntax"))

		assert.Contains(t, err.Error(), "daogen: generation error for UserStore")
		assert.Contains(t, err.Error(), "(file: /tmp/user_store_dao.go)")
		assert.Contains(t, err.Error(), "format: syntax")
	})

	t.Run("Error message without cause", func(t *testing.T) {
		err := &GenerationError{Repository: "UserStore"}
		assert.Equal(t, "daogen: generation error for UserStore", err.Error())
	})

	t.Run("Is matches ErrGenerationFailed", func(t *testing.T) {
		err := NewGenerationError("", "", "", nil)
		assert.True(t, errors.Is(err, ErrGenerationFailed))
		assert.True(t, IsGenerationError(err))
		assert.False(t, IsGenerationError(errors.New("other")))
	})
}

func TestRecoverInternal(t *testing.T) {
	t.Run("internal errors become the result", func(t *testing.T) {
		run := func() (err error) {
			defer recoverInternal(&err)
			internalf("unexpected statement kind %d", 7)
			return nil
		}
		err := run()
		require.Error(t, err)
		assert.True(t, IsInternalError(err))
		assert.True(t, errors.Is(err, ErrGenerationFailed))
		assert.Equal(t, "daogen: internal error: unexpected statement kind 7", err.Error())
	})

	t.Run("other panics propagate", func(t *testing.T) {
		run := func() (err error) {
			defer recoverInternal(&err)
			panic("boom")
		}
		assert.PanicsWithValue(t, "boom", func() { _ = run() })
	})

	t.Run("no panic leaves the result alone", func(t *testing.T) {
		run := func() (err error) {
			defer recoverInternal(&err)
			return errors.New("plain")
		}
		assert.EqualError(t, run(), "plain")
	})
}
