package video

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picam/hw"
)

type countingLocker struct {
	status  hw.Status
	locks   int
	unlocks int
}

func (l *countingLocker) LockBuffer(b *hw.Buffer) hw.Status {
	if !l.status.OK() {
		return l.status
	}
	l.locks++
	return hw.StatusSuccess
}

func (l *countingLocker) UnlockBuffer(b *hw.Buffer) {
	l.unlocks++
}

func TestBufferLockUnlocksOnce(t *testing.T) {
	l := &countingLocker{}
	lock, err := LockBuffer(l, &hw.Buffer{})
	require.NoError(t, err)
	assert.True(t, lock.Locked())

	lock.Unlock()
	lock.Unlock()
	assert.False(t, lock.Locked())
	assert.Equal(t, 1, l.locks)
	assert.Equal(t, 1, l.unlocks)
}

func TestBufferLockDeferred(t *testing.T) {
	l := &countingLocker{}
	func() {
		lock, err := LockBuffer(l, &hw.Buffer{})
		require.NoError(t, err)
		defer lock.Unlock()
		lock.Unlock()
	}()
	assert.Equal(t, 1, l.unlocks)

	assert.Panics(t, func() {
		lock, _ := LockBuffer(l, &hw.Buffer{})
		defer lock.Unlock()
		panic("decode")
	})
	assert.Equal(t, 2, l.unlocks, "unlock runs while panicking")
}

func TestBufferLockFailure(t *testing.T) {
	l := &countingLocker{status: hw.StatusEAGAIN}
	lock, err := LockBuffer(l, &hw.Buffer{})
	assert.Nil(t, lock)
	assert.True(t, errors.Is(err, ErrBufferLock))

	var le *BufferLockError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, hw.StatusEAGAIN, le.Status)

	// A nil lock is safe to release.
	lock.Unlock()
	assert.Equal(t, 0, l.unlocks)
}
