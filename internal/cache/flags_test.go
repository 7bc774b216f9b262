package cache

import (
	"context"
	"testing"
	"time"
)

func TestLocalFlagsSetOnce(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	f := NewLocalFlags(func() time.Time { return now })
	ctx := context.Background()

	ok, _ := f.SetOnce(ctx, "expiring:1", time.Hour)
	if !ok {
		t.Fatal("first SetOnce = false, want true")
	}
	ok, _ = f.SetOnce(ctx, "expiring:1", time.Hour)
	if ok {
		t.Fatal("second SetOnce = true, want false")
	}
	ok, _ = f.SetOnce(ctx, "expiring:2", time.Hour)
	if !ok {
		t.Fatal("other key SetOnce = false, want true")
	}

	now = now.Add(time.Hour)
	ok, _ = f.SetOnce(ctx, "expiring:1", time.Hour)
	if !ok {
		t.Fatal("SetOnce after ttl = false, want true")
	}
}
