package vcas

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDoublesUpToCap(t *testing.T) {
	b := newBackoff()

	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		64 * time.Second,
		128 * time.Second,
		256 * time.Second,
		300 * time.Second,
		300 * time.Second,
	}
	for i, want := range expected {
		assert.Equal(t, want, b.Next(), "failure %d", i+1)
	}
}

func TestBackoffResetsAfterSuccess(t *testing.T) {
	b := newBackoff()

	for i := 0; i < 5; i++ {
		b.Next()
	}
	assert.Equal(t, 32*time.Second, b.Current())

	b.Reset()
	assert.Equal(t, 1*time.Second, b.Next())
	assert.Equal(t, 2*time.Second, b.Next())
}
