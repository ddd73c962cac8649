package pin

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCount_IncDec(t *testing.T) {
	var c Count
	require.EqualValues(t, 0, c.Get())
	c.Inc()
	c.Inc()
	require.EqualValues(t, 2, c.Get())
	c.Dec()
	require.EqualValues(t, 1, c.Get())
}

func TestCount_DecBelowZeroPanics(t *testing.T) {
	var c Count
	require.Panics(t, func() { c.Dec() })
}

func TestCount_ConcurrentIncDec(t *testing.T) {
	var c Count
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}
	wg.Wait()
	require.EqualValues(t, 50, c.Get())

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Dec()
		}()
	}
	wg.Wait()
	require.EqualValues(t, 0, c.Get())
}
