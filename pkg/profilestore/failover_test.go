package profilestore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/voiceid/internal/resilience"
	"github.com/MrWong99/voiceid/pkg/profilestore"
	"github.com/MrWong99/voiceid/pkg/profilestore/mock"
)

var errDown = errors.New("backend down")

func testBreakerConfig() resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour}
}

func TestFailover_PrimarySucceeds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	primary, secondary := mock.New(), mock.New()
	f := profilestore.NewFailover("primary", primary, testBreakerConfig())
	f.Add("secondary", secondary)

	if err := f.Save(ctx, profilestore.KeyProfiles, []byte("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok := primary.Value(profilestore.KeyProfiles); !ok {
		t.Error("primary did not receive the write")
	}
	if n := secondary.CallCount("Save"); n != 0 {
		t.Errorf("secondary Save calls = %d, want 0", n)
	}
}

func TestFailover_FallsBackOnError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	primary, secondary := mock.New(), mock.New()
	primary.SetErr(errDown)
	f := profilestore.NewFailover("primary", primary, testBreakerConfig())
	f.Add("secondary", secondary)

	if err := f.Save(ctx, profilestore.KeyProfiles, []byte("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := f.Load(ctx, profilestore.KeyProfiles)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "x" {
		t.Errorf("Load = %q, want x", got)
	}
}

func TestFailover_NotFoundDoesNotFallThrough(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	primary, secondary := mock.New(), mock.New()
	_ = secondary.Save(ctx, profilestore.KeyProfiles, []byte("stale"))
	f := profilestore.NewFailover("primary", primary, testBreakerConfig())
	f.Add("secondary", secondary)

	for range 5 {
		if _, err := f.Load(ctx, profilestore.KeyProfiles); !errors.Is(err, profilestore.ErrNotFound) {
			t.Fatalf("Load: err = %v, want ErrNotFound", err)
		}
	}
	if n := secondary.CallCount("Load"); n != 0 {
		t.Errorf("secondary Load calls = %d, want 0", n)
	}
}

func TestFailover_BreakerSkipsFailingPrimary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	primary, secondary := mock.New(), mock.New()
	primary.SetErr(errDown)
	f := profilestore.NewFailover("primary", primary, testBreakerConfig())
	f.Add("secondary", secondary)

	for range 5 {
		_ = f.Ping(ctx)
	}
	// MaxFailures is 2: after that the breaker is open and primary is skipped.
	if n := primary.CallCount("Ping"); n != 2 {
		t.Errorf("primary Ping calls = %d, want 2", n)
	}
	if n := secondary.CallCount("Ping"); n != 5 {
		t.Errorf("secondary Ping calls = %d, want 5", n)
	}
}

func TestFailover_AllFailed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	primary, secondary := mock.New(), mock.New()
	primary.SetErr(errDown)
	secondary.SetErr(errDown)
	f := profilestore.NewFailover("primary", primary, testBreakerConfig())
	f.Add("secondary", secondary)

	if err := f.Save(ctx, "k", nil); !errors.Is(err, profilestore.ErrAllFailed) {
		t.Errorf("Save: err = %v, want ErrAllFailed", err)
	}
}

func TestFailover_CloseJoinsErrors(t *testing.T) {
	t.Parallel()
	primary, secondary := mock.New(), mock.New()
	errClose := errors.New("close failed")
	secondary.CloseErr = errClose
	f := profilestore.NewFailover("primary", primary, testBreakerConfig())
	f.Add("secondary", secondary)

	err := f.Close()
	if !errors.Is(err, errClose) {
		t.Errorf("Close: err = %v, want wrapped %v", err, errClose)
	}
	if primary.CallCount("Close") != 1 || secondary.CallCount("Close") != 1 {
		t.Error("expected every backend to be closed")
	}
}
