package config_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/voiceid/internal/config"
	"github.com/MrWong99/voiceid/pkg/profilestore"
	"github.com/MrWong99/voiceid/pkg/profilestore/mock"
)

func TestRegistry_CreateStore(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.RegisterStore(config.BackendMemory, func(context.Context, config.StorageConfig) (profilestore.Store, error) {
		return profilestore.NewMemory(), nil
	})

	s, err := reg.CreateStore(context.Background(), config.BackendMemory, config.StorageConfig{})
	if err != nil {
		t.Fatalf("CreateStore: %v", err)
	}
	if _, ok := s.(*profilestore.Memory); !ok {
		t.Errorf("CreateStore returned %T, want *profilestore.Memory", s)
	}

	_, err = reg.CreateStore(context.Background(), config.BackendPostgres, config.StorageConfig{})
	if !errors.Is(err, config.ErrBackendNotRegistered) {
		t.Errorf("err = %v, want ErrBackendNotRegistered", err)
	}
}

func TestRegistry_Backends(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	noop := func(context.Context, config.StorageConfig) (profilestore.Store, error) { return nil, nil }
	reg.RegisterStore(config.BackendPostgres, noop)
	reg.RegisterStore(config.BackendFile, noop)

	got := reg.Backends()
	want := []config.Backend{config.BackendFile, config.BackendPostgres}
	if !slices.Equal(got, want) {
		t.Errorf("Backends() = %v, want %v", got, want)
	}
}

func TestRegistry_OpenStorageWithFallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	primary, fallback := mock.New(), mock.New()
	primary.SetErr(errors.New("primary down"))

	reg := config.NewRegistry()
	reg.RegisterStore(config.BackendFile, func(context.Context, config.StorageConfig) (profilestore.Store, error) {
		return primary, nil
	})
	reg.RegisterStore(config.BackendMemory, func(context.Context, config.StorageConfig) (profilestore.Store, error) {
		return fallback, nil
	})

	s, err := reg.OpenStorage(ctx, config.StorageConfig{Backend: config.BackendFile, Fallback: config.BackendMemory})
	if err != nil {
		t.Fatalf("OpenStorage: %v", err)
	}
	if err := s.Save(ctx, profilestore.KeyProfiles, []byte("{}")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok := fallback.Value(profilestore.KeyProfiles); !ok {
		t.Error("fallback did not receive the write")
	}
}

func TestRegistry_OpenStorageFallbackMissingClosesPrimary(t *testing.T) {
	t.Parallel()
	primary := mock.New()
	reg := config.NewRegistry()
	reg.RegisterStore(config.BackendFile, func(context.Context, config.StorageConfig) (profilestore.Store, error) {
		return primary, nil
	})

	_, err := reg.OpenStorage(context.Background(), config.StorageConfig{Backend: config.BackendFile, Fallback: config.BackendBadger})
	if !errors.Is(err, config.ErrBackendNotRegistered) {
		t.Fatalf("err = %v, want ErrBackendNotRegistered", err)
	}
	if primary.CallCount("Close") != 1 {
		t.Error("primary was not closed")
	}
}
