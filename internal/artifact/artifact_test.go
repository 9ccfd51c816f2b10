package artifact

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

type fakeRedis struct {
	data map[string]string
}

func (f *fakeRedis) Get(_ context.Context, key string) *goredis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *goredis.StatusCmd {
	f.data[key] = string(value.([]byte))
	return goredis.NewStatusResult("OK", nil)
}

func stores(t *testing.T) []BlobStore {
	return []BlobStore{
		NewFileStore(t.TempDir()),
		&RedisStore{rdb: &fakeRedis{data: map[string]string{}}},
	}
}

func TestStores_PutGet(t *testing.T) {
	ctx := context.Background()
	for _, s := range stores(t) {
		t.Run(s.Name(), func(t *testing.T) {
			if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			blob := []byte(`{"format_version":1}`)
			if err := Publish(ctx, s, "abc-123", blob); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			for _, key := range []string{"abc-123", LatestKey} {
				got, err := s.Get(ctx, key)
				if err != nil {
					t.Fatalf("Get %s: %v", key, err)
				}
				if !bytes.Equal(got, blob) {
					t.Errorf("Get %s = %s, want %s", key, got, blob)
				}
			}
		})
	}
}

func TestStores_RejectBadKeys(t *testing.T) {
	ctx := context.Background()
	for _, s := range stores(t) {
		for _, key := range []string{"", "../escape", `a\b`, ".hidden"} {
			if err := s.Put(ctx, key, []byte("x")); err == nil {
				t.Errorf("%s: Put(%q) should fail", s.Name(), key)
			}
		}
	}
}
