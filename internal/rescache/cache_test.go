package rescache

import (
	"fmt"
	"testing"
	"time"

	"onyxstream/models"
)

func TestPutGetRoundTrip(t *testing.T) {
	cache := New(10, time.Hour)

	res := models.MagnetResolution{
		MagnetURI: "magnet:?xt=urn:btih:abc",
		URL:       "https://cdn.example.com/video.mkv",
		Filename:  "video.mkv",
	}
	cache.Put("k1", res)

	got, ok := cache.Get("k1")
	if !ok {
		t.Fatal("expected hit for freshly inserted key")
	}
	if got != res {
		t.Fatalf("got %+v, want %+v", got, res)
	}
}

func TestMissOnUnknownKey(t *testing.T) {
	cache := New(10, time.Hour)
	if _, ok := cache.Get("missing"); ok {
		t.Fatal("expected miss for unknown key")
	}
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	cache := New(10, 50*time.Millisecond)
	cache.Put("k1", models.MagnetResolution{URL: "https://cdn.example.com/a.mkv"})

	if _, ok := cache.Get("k1"); !ok {
		t.Fatal("expected hit before TTL")
	}

	time.Sleep(120 * time.Millisecond)

	if _, ok := cache.Get("k1"); ok {
		t.Fatal("expected miss after TTL elapsed")
	}
}

func TestCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	cache := New(3, time.Hour)
	for i := 0; i < 3; i++ {
		cache.Put(fmt.Sprintf("k%d", i), models.MagnetResolution{Filename: fmt.Sprintf("f%d", i)})
	}

	// Touch k0 and k2 so k1 becomes the least recently used entry.
	cache.Get("k0")
	cache.Get("k2")

	cache.Put("k3", models.MagnetResolution{Filename: "f3"})

	if _, ok := cache.Get("k1"); ok {
		t.Fatal("expected k1 to be evicted as least recently used")
	}
	for _, key := range []string{"k0", "k2", "k3"} {
		if _, ok := cache.Get(key); !ok {
			t.Fatalf("expected %s to survive eviction", key)
		}
	}
}

func TestSelectorKeysDoNotCollide(t *testing.T) {
	cache := New(10, time.Hour)

	magnet := "magnet:?xt=urn:btih:abc"
	e1 := models.FileSelector{Season: 1, Episode: 1}
	e2 := models.FileSelector{Season: 1, Episode: 2}

	cache.Put(models.CacheKey(magnet, e1), models.MagnetResolution{Filename: "S01E01.mkv"})
	cache.Put(models.CacheKey(magnet, e2), models.MagnetResolution{Filename: "S01E02.mkv"})

	got, ok := cache.Get(models.CacheKey(magnet, e1))
	if !ok || got.Filename != "S01E01.mkv" {
		t.Fatalf("S01E01 lookup got %+v ok=%v", got, ok)
	}
	got, ok = cache.Get(models.CacheKey(magnet, e2))
	if !ok || got.Filename != "S01E02.mkv" {
		t.Fatalf("S01E02 lookup got %+v ok=%v", got, ok)
	}

	idx := 0
	keyIdx := models.CacheKey(magnet, models.FileSelector{Index: &idx})
	if keyIdx == models.CacheKey(magnet, e1) {
		t.Fatal("index and episode selectors must produce distinct keys")
	}
}
