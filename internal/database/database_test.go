package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"media-converter/internal/naming"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ naming.CounterStore = (*Database)(nil)

func setupTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(context.Background(), filepath.Join(t.TempDir(), "media.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewCreatesSchema(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	n, err := db.CountItems(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	counter, err := db.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counter)
	require.NoError(t, db.Ping(ctx))
}

func TestNewFailsOnMissingDirectory(t *testing.T) {
	_, err := New(context.Background(), filepath.Join(t.TempDir(), "missing", "media.db"))
	assert.Error(t, err)
}

func TestInsertAndGetItem(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	id, err := db.InsertItem(ctx, "/uploads/IMG_0001.JPG", "", "", 0)
	require.NoError(t, err)

	item, err := db.GetItem(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/IMG_0001.JPG", item.Path)
	assert.Equal(t, "image/jpeg", item.MimeType)
	assert.Equal(t, "IMG_0001", item.Title)
	assert.Zero(t, item.ParentID)

	again, err := db.InsertItem(ctx, "/uploads/IMG_0001.JPG", "image/jpeg", "other", 0)
	require.NoError(t, err)
	assert.Equal(t, id, again, "re-registering a path keeps its id")

	_, err = db.GetItem(ctx, 9999)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestInsertWithParent(t *testing.T) {
	db := setupTestDB(t)
	id, err := db.InsertItem(context.Background(), "/uploads/a.png", "image/png", "A", 42)
	require.NoError(t, err)

	item, err := db.GetItem(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(42), item.ParentID)
	assert.Equal(t, "A", item.Title)
}

func TestListItemsPaginatesByID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := db.InsertItem(ctx, filepath.Join("/uploads", string(rune('a'+i))+".jpg"), "", "", 0)
		require.NoError(t, err)
	}

	var seen []int64
	for offset := 0; ; offset += 10 {
		page, err := db.ListItems(ctx, offset, 10)
		require.NoError(t, err)
		for _, item := range page {
			seen = append(seen, item.ID)
		}
		if len(page) < 10 {
			break
		}
	}

	require.Len(t, seen, 25)
	for i := 1; i < len(seen); i++ {
		assert.Less(t, seen[i-1], seen[i])
	}

	all, err := db.ListAllItems(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 25)
	assert.Equal(t, seen[0], all[0].ID)
}

func TestSetPathRefreshesMime(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	id, err := db.InsertItem(ctx, "/uploads/photo.jpg", "", "", 0)
	require.NoError(t, err)

	require.NoError(t, db.SetPath(ctx, id, "/uploads/wpcm_001img.webp"))
	require.NoError(t, db.SetTitle(ctx, id, "wpcm_001img"))

	item, err := db.GetItem(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/wpcm_001img.webp", item.Path)
	assert.Equal(t, "image/webp", item.MimeType)
	assert.Equal(t, "wpcm_001img", item.Title)

	assert.ErrorIs(t, db.SetPath(ctx, 777, "/x.webp"), ErrItemNotFound)
	assert.ErrorIs(t, db.SetTitle(ctx, 777, "x"), ErrItemNotFound)
}

func TestCountByMime(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	for _, p := range []string{"/a.jpg", "/b.jpg", "/c.png", "/d.mp4"} {
		_, err := db.InsertItem(ctx, p, "", "", 0)
		require.NoError(t, err)
	}

	counts, err := db.CountByMime(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"image/jpeg": 2, "image/png": 1, "video/mp4": 1}, counts)
}

func TestCounterAdvanceWraps(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Set(ctx, 999))
	v, err := db.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 999, v)

	next, err := db.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, next)

	assert.ErrorIs(t, db.Set(ctx, 0), naming.ErrCounterRange)
}

func TestCounterNormalizesCorruptValue(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SetMetadata(ctx, counterKey, "banana"))
	v, err := db.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, db.SetMetadata(ctx, counterKey, "5000"))
	v, err = db.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestCounterAdvanceIsAtomic(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	const n = 50
	values := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := db.Advance(ctx)
			if err == nil {
				values <- v
			}
		}()
	}
	wg.Wait()
	close(values)

	seen := make(map[int]bool)
	for v := range values {
		assert.False(t, seen[v], "value %d handed out twice", v)
		seen[v] = true
	}
	assert.Len(t, seen, n)

	current, err := db.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, n+1, current)
}

func TestCounterAdvanceClosedDB(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Close())

	_, err := db.Advance(context.Background())
	assert.ErrorIs(t, err, naming.ErrCounterPersist)
}

func TestImportDirectory(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	dir := t.TempDir()

	for _, name := range []string{"a.jpg", "b.PNG", "clip.mp4", "notes.txt", ".hidden.jpg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2024", "03"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2024", "03", "c.avif"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".cache"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".cache", "d.jpg"), []byte("x"), 0o644))

	n, err := db.ImportDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = db.ImportDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Zero(t, n, "second import registers nothing new")

	counts, err := db.CountByMime(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["image/avif"])
	assert.Equal(t, 1, counts["video/mp4"])
}

func TestRecordQueryDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		recordQuery("get_item", time.Now(), nil)
		recordQuery("get_item", time.Now(), errors.New("boom"))
	})
}

func TestTitleFromPath(t *testing.T) {
	assert.Equal(t, "wpcm_001img", TitleFromPath("/uploads/wpcm_001img.webp"))
	assert.Equal(t, "archive.tar", TitleFromPath("archive.tar.gz"))
}
