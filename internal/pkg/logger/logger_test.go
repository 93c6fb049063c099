package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, env := range []string{"dev", "prod", ""} {
		l, err := New(env)
		require.NoError(t, err, env)
		assert.NotNil(t, l)
		Sync(l)
	}
}
