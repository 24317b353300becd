package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveAndOpen(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("documents/enr-1/id_card.jpg", []byte("photo bytes"))
	require.NoError(t, err)

	file, err := store.Open("documents/enr-1/id_card.jpg")
	require.NoError(t, err)
	defer file.Close()

	info, err := file.Stat()
	require.NoError(t, err)
	require.Equal(t, int64(len("photo bytes")), info.Size())
}

func TestLocalStorageCleanupPrunesEmptyEnrollmentDirs(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalStorage(base)
	require.NoError(t, err)

	stale := "documents/enr-old/id_card.jpg"
	fresh := "documents/enr-new/profile_photo.png"
	_, err = store.Save(stale, []byte("old"))
	require.NoError(t, err)
	_, err = store.Save(fresh, []byte("new"))
	require.NoError(t, err)

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(store.Path(stale), past, past))

	deleted, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	require.Equal(t, []string{stale}, deleted)

	_, err = os.Stat(filepath.Join(base, "documents", "enr-old"))
	require.True(t, os.IsNotExist(err), "stale enrollment directory should be pruned")

	_, err = store.Open(fresh)
	require.NoError(t, err)
}
