package budget

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReserveAndRelease(t *testing.T) {
	b := New(100)

	permit, err := b.Reserve(60)
	require.NoError(t, err)
	require.Equal(t, uint64(60), b.Outstanding())

	permit.Release()
	require.Equal(t, uint64(0), b.Outstanding())
}

func TestReserveExceeded(t *testing.T) {
	b := New(1 << 20)

	_, err := b.Reserve(2 << 20)
	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	require.Equal(t, uint64(2<<20), exceeded.Requested)
	require.Equal(t, uint64(1<<20), exceeded.Available)
	require.Equal(t, uint64(0), b.Outstanding())
}

func TestReserveExceededReportsRemaining(t *testing.T) {
	b := New(100)

	permit, err := b.Reserve(70)
	require.NoError(t, err)

	_, err = b.Reserve(40)
	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	require.Equal(t, uint64(40), exceeded.Requested)
	require.Equal(t, uint64(30), exceeded.Available)

	permit.Release()
}

func TestDoubleReleaseIsNoop(t *testing.T) {
	b := New(100)

	permit, err := b.Reserve(50)
	require.NoError(t, err)

	permit.Release()
	permit.Release()
	require.Equal(t, uint64(0), b.Outstanding())
}

func TestUnbounded(t *testing.T) {
	b := Unbounded()

	for i := 0; i < 10; i++ {
		permit, err := b.Reserve(1 << 40)
		require.NoError(t, err)
		permit.Release()
	}
	require.Equal(t, uint64(0), b.Outstanding())
}

func TestZeroSizeReservation(t *testing.T) {
	b := New(10)

	permit, err := b.Reserve(0)
	require.NoError(t, err)
	require.Equal(t, uint64(0), b.Outstanding())
	permit.Release()
}

func TestConcurrentReserve(t *testing.T) {
	const (
		capacity = 1000
		workers  = 100
		size     = 50
	)
	b := New(capacity)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted []*Permit
		denied   int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			permit, err := b.Reserve(size)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				denied++
				return
			}
			admitted = append(admitted, permit)
		}()
	}
	wg.Wait()

	// exactly capacity/size reservations fit; the rest observe Exceeded
	require.Len(t, admitted, capacity/size)
	require.Equal(t, workers-capacity/size, denied)
	require.Equal(t, uint64(capacity), b.Outstanding())

	for _, p := range admitted {
		p.Release()
	}
	require.Equal(t, uint64(0), b.Outstanding())
}
