package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type buffer struct {
	data []byte
}

func (b *buffer) Reset() {
	b.data = b.data[:0]
}

func TestNew_RejectsBadConstructors(t *testing.T) {
	_, err := New[*buffer](nil)
	require.Error(t, err)

	_, err = New(func() Resettable { return nil })
	require.Error(t, err)
}

func TestPool_ResetsOnPut(t *testing.T) {
	p := MustNew(func() *buffer { return &buffer{data: make([]byte, 0, 16)} })

	b := p.Get()
	b.data = append(b.data, "hello"...)
	p.Put(b)

	assert.Empty(t, b.data)
	assert.Equal(t, 16, cap(b.data))
	assert.NotNil(t, p.Get())
}

func TestMustNew_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustNew(func() Resettable { return nil })
	})
}
