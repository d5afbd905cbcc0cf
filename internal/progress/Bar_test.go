package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestIncrementDrawsTheBar(t *testing.T) {
	var out bytes.Buffer
	bar := New(&out, 10, 2)

	bar.Increment()
	if !strings.Contains(out.String(), "50.00%") {
		t.Errorf("expected a half-full bar, got %q", out.String())
	}

	bar.Increment()
	if !strings.Contains(out.String(), "100.00%") {
		t.Errorf("expected a full bar, got %q", out.String())
	}
}

func TestIncrementNeverExceedsMax(t *testing.T) {
	var out bytes.Buffer
	bar := New(&out, 10, 3)

	for i := 0; i < 10; i++ {
		bar.Increment()
	}
	if strings.Contains(out.String(), "333.33%") {
		t.Error("bar advanced past 100%")
	}
}

func TestConcurrentIncrements(t *testing.T) {
	var out bytes.Buffer
	bar := New(&out, 10, 100)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bar.Increment()
		}()
	}
	wg.Wait()
	bar.Close()

	if !strings.Contains(out.String(), "100.00%") {
		t.Error("expected the bar to reach 100% after 100 increments")
	}
}

func TestCloseStopsUpdates(t *testing.T) {
	var out bytes.Buffer
	bar := New(&out, 10, 4)
	bar.Increment()
	bar.Close()

	before := out.Len()
	bar.Increment()
	if out.Len() != before {
		t.Error("increments after close should not draw")
	}
}
