package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kuberoom/internal/frame"
	"kuberoom/internal/swap"
)

type fakeTarget struct {
	images   int
	next     uint32
	acquire  []swap.Status
	present  []swap.Status
	calls    []string
	rebuilds int
	failSub  error
}

func (f *fakeTarget) ImageCount() int { return f.images }

func (f *fakeTarget) Acquire(slot int) (uint32, swap.Status, error) {
	status := swap.Ready
	if len(f.acquire) > 0 {
		status, f.acquire = f.acquire[0], f.acquire[1:]
	}
	f.calls = append(f.calls, fmt.Sprintf("acquire %d", slot))
	if status == swap.Stale {
		return 0, status, nil
	}
	image := f.next
	f.next = (f.next + 1) % uint32(f.images)
	return image, status, nil
}

func (f *fakeTarget) Prepare(image uint32) error {
	f.calls = append(f.calls, fmt.Sprintf("prepare %d", image))
	return nil
}

func (f *fakeTarget) Submit(slot int, image uint32) error {
	f.calls = append(f.calls, fmt.Sprintf("submit %d %d", slot, image))
	return f.failSub
}

func (f *fakeTarget) Present(slot int, image uint32) (swap.Status, error) {
	status := swap.Ready
	if len(f.present) > 0 {
		status, f.present = f.present[0], f.present[1:]
	}
	f.calls = append(f.calls, fmt.Sprintf("present %d %d", slot, image))
	return status, nil
}

func (f *fakeTarget) Rebuild() (int, error) {
	f.rebuilds++
	f.next = 0
	f.calls = append(f.calls, "rebuild")
	return f.images, nil
}

type nopFences struct{ waits, resets int }

func (f *nopFences) Wait(int) error  { f.waits++; return nil }
func (f *nopFences) Reset(int) error { f.resets++; return nil }

func newLoop(t *testing.T, target *fakeTarget, slots int) (*Loop, *frame.Synchronizer, *nopFences) {
	t.Helper()
	fences := &nopFences{}
	sync, err := frame.New(slots, target.ImageCount(), fences)
	require.NoError(t, err)
	return New(target, sync, nil), sync, fences
}

func TestTickPresentsInOrder(t *testing.T) {
	target := &fakeTarget{images: 3}
	loop, _, _ := newLoop(t, target, 2)

	res, err := loop.Tick()
	require.NoError(t, err)
	assert.Equal(t, Presented, res)
	assert.Equal(t, []string{"acquire 0", "prepare 0", "submit 0 0", "present 0 0"}, target.calls)
}

func TestStaleAcquireRebuildsWithoutDrawing(t *testing.T) {
	target := &fakeTarget{images: 3, acquire: []swap.Status{swap.Stale}}
	loop, _, fences := newLoop(t, target, 2)

	res, err := loop.Tick()
	require.NoError(t, err)
	assert.Equal(t, Skipped, res)
	assert.Equal(t, []string{"acquire 0", "rebuild"}, target.calls)
	assert.Zero(t, fences.resets, "fence must stay signaled when nothing was submitted")

	target.calls = nil
	res, err = loop.Tick()
	require.NoError(t, err)
	assert.Equal(t, Presented, res)
	assert.Equal(t, "acquire 0", target.calls[0], "skipped tick keeps the same slot")
}

func TestSuboptimalAcquireStillDraws(t *testing.T) {
	target := &fakeTarget{images: 3, acquire: []swap.Status{swap.Suboptimal}}
	loop, _, _ := newLoop(t, target, 2)

	res, err := loop.Tick()
	require.NoError(t, err)
	assert.Equal(t, Presented, res)
	assert.Zero(t, target.rebuilds)
}

func TestPresentStalenessRebuildsNextTick(t *testing.T) {
	for _, status := range []swap.Status{swap.Stale, swap.Suboptimal} {
		t.Run(status.String(), func(t *testing.T) {
			target := &fakeTarget{images: 3, present: []swap.Status{status}}
			loop, _, _ := newLoop(t, target, 2)

			_, err := loop.Tick()
			require.NoError(t, err)
			assert.Zero(t, target.rebuilds, "present must not rebuild synchronously")
			assert.True(t, loop.Pending())

			target.calls = nil
			_, err = loop.Tick()
			require.NoError(t, err)
			assert.Equal(t, 1, target.rebuilds)
			assert.Equal(t, []string{"rebuild", "acquire 1", "prepare 0", "submit 1 0", "present 1 0"}, target.calls)
			assert.False(t, loop.Pending())
		})
	}
}

func TestResizeLatchRebuildsNextTick(t *testing.T) {
	target := &fakeTarget{images: 3}
	loop, _, _ := newLoop(t, target, 2)

	loop.RequestRebuild()
	assert.Zero(t, target.rebuilds)

	_, err := loop.Tick()
	require.NoError(t, err)
	assert.Equal(t, 1, target.rebuilds)
	assert.Equal(t, "rebuild", target.calls[0])
	assert.False(t, loop.Pending())
}

func TestRebuildTwiceKeepsImageCount(t *testing.T) {
	target := &fakeTarget{images: 3}
	loop, sync, _ := newLoop(t, target, 2)

	loop.RequestRebuild()
	_, err := loop.Tick()
	require.NoError(t, err)
	loop.RequestRebuild()
	_, err = loop.Tick()
	require.NoError(t, err)

	assert.Equal(t, 2, target.rebuilds)
	_, ok := sync.Owner(2)
	assert.False(t, ok)
}

func TestSubmitErrorIsFatal(t *testing.T) {
	target := &fakeTarget{images: 2, failSub: errors.New("device lost")}
	loop, _, _ := newLoop(t, target, 2)

	_, err := loop.Tick()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device lost")
}

func TestNeverMoreThanNInFlight(t *testing.T) {
	const slots = 2
	target := &fakeTarget{images: 4}
	loop, sync, fences := newLoop(t, target, slots)

	for i := 0; i < 20; i++ {
		_, err := loop.Tick()
		require.NoError(t, err)
		assert.LessOrEqual(t, sync.InFlight(), slots)
	}
	assert.Equal(t, 20-slots, fences.waits)
}

func TestStatsLogsAtInterval(t *testing.T) {
	clock := time.Unix(0, 0)
	s := &Stats{interval: time.Second, now: func() time.Time { return clock }}
	s.last = clock

	for i := 0; i < 30; i++ {
		clock = clock.Add(20 * time.Millisecond)
		s.Frame()
	}
	assert.Zero(t, s.Rate())

	for i := 0; i < 20; i++ {
		clock = clock.Add(20 * time.Millisecond)
		s.Frame()
	}
	assert.InDelta(t, 50.0, s.Rate(), 0.01)
}
