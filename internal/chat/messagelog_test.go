package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestViewAppendDeduplicates(t *testing.T) {
	r := require.New(t)
	v := NewView()
	v.Reset(1)
	r.NoError(v.SetInitial(nil))

	a := msgAt(1, 1, 2, "a", 1)
	b := msgAt(2, 1, 2, "b", 2)
	c := msgAt(3, 1, 2, "c", 3)

	r.True(v.Append(a))
	r.True(v.Append(b))
	r.False(v.Append(a))
	r.True(v.Append(c))

	r.Equal([]int64{1, 2, 3}, ids(v.Messages()))
}

func TestViewAppendKeepsArrivalOrder(t *testing.T) {
	r := require.New(t)
	v := NewView()
	v.Reset(1)
	r.NoError(v.SetInitial([]Message{msgAt(1, 1, 2, "a", 10)}))

	v.Append(msgAt(3, 1, 2, "late", 30))
	v.Append(msgAt(2, 1, 2, "early", 20))

	r.Equal([]int64{1, 3, 2}, ids(v.Messages()))
}

func TestViewSetInitialOnlyWhenFresh(t *testing.T) {
	r := require.New(t)
	v := NewView()
	r.ErrorIs(v.SetInitial(nil), ErrLogNotFresh)

	v.Reset(1)
	r.NoError(v.SetInitial([]Message{msgAt(1, 1, 2, "a", 1), msgAt(1, 1, 2, "a", 1), msgAt(2, 1, 2, "b", 2)}))
	r.Equal([]int64{1, 2}, ids(v.Messages()))
	r.ErrorIs(v.SetInitial(nil), ErrLogNotFresh)

	// A live message landing before history also ends the fresh window.
	v.Reset(1)
	v.Append(msgAt(5, 1, 2, "live", 5))
	r.ErrorIs(v.SetInitial(nil), ErrLogNotFresh)
}

func TestViewStatus(t *testing.T) {
	r := require.New(t)
	v := NewView()
	r.Equal(LogIdle, v.Status())

	v.Reset(7)
	r.Equal(LogLoading, v.Status())
	r.EqualValues(7, v.RoomID())

	r.NoError(v.SetInitial(nil))
	r.Equal(LogReady, v.Status())
	r.Zero(v.Len())
	r.NoError(v.Err())

	v.Reset(7)
	v.Fail(errBoom)
	r.Equal(LogFailed, v.Status())
	r.Zero(v.Len())
	r.ErrorIs(v.Err(), errBoom)
	r.False(v.Append(msgAt(1, 7, 2, "late", 1)))
	r.Zero(v.Len())

	v.Reset(8)
	r.Equal(LogLoading, v.Status())
	r.NoError(v.Err())
}

func TestViewMessagesReturnsCopy(t *testing.T) {
	r := require.New(t)
	v := NewView()
	v.Reset(1)
	r.NoError(v.SetInitial([]Message{msgAt(1, 1, 2, "a", 1)}))

	snap := v.Messages()
	snap[0].Body = "changed"
	r.Equal("a", v.Messages()[0].Body)
}
