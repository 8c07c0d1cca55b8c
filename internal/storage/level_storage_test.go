package storage

import (
	"errors"
	"testing"
	"time"
)

func setupTestStorage(t *testing.T) *LevelStorage {
	t.Helper()

	storage, err := NewLevelStorage(t.TempDir())
	if err != nil {
		t.Fatalf("Не удалось создать хранилище: %v", err)
	}
	t.Cleanup(func() { storage.Close() })

	return storage
}

func TestSaveAndLoadLevel(t *testing.T) {
	storage := setupTestStorage(t)

	blob := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03}
	meta := LevelMeta{
		ID:        "test-level-1",
		Layout:    "default",
		Seed:      42,
		Scale:     4.0,
		NodeCount: 130,
		EdgeCount: 155,
	}

	if err := storage.SaveLevel(meta, blob); err != nil {
		t.Fatalf("Ошибка сохранения уровня: %v", err)
	}

	loaded, err := storage.LoadLevel(meta.ID)
	if err != nil {
		t.Fatalf("Ошибка загрузки уровня: %v", err)
	}
	if len(loaded) != len(blob) {
		t.Fatalf("Неверный размер блоба: %d, ожидалось %d", len(loaded), len(blob))
	}
	for i := range blob {
		if loaded[i] != blob[i] {
			t.Fatalf("Блоб повреждён в байте %d: %x, ожидалось %x", i, loaded[i], blob[i])
		}
	}

	loadedMeta, err := storage.LoadMeta(meta.ID)
	if err != nil {
		t.Fatalf("Ошибка загрузки метаданных: %v", err)
	}
	if loadedMeta.Layout != meta.Layout || loadedMeta.Seed != meta.Seed {
		t.Errorf("Неверные метаданные: %+v", loadedMeta)
	}
	if loadedMeta.BlobSize != len(blob) {
		t.Errorf("Неверный размер блоба в метаданных: %d, ожидалось %d", loadedMeta.BlobSize, len(blob))
	}
	if loadedMeta.CreatedAt.IsZero() {
		t.Error("Время создания не заполнено")
	}
}

func TestLoadNonExistentLevel(t *testing.T) {
	storage := setupTestStorage(t)

	_, err := storage.LoadLevel("no-such-level")
	if !errors.Is(err, ErrLevelNotFound) {
		t.Fatalf("Ожидалась ErrLevelNotFound, получено: %v", err)
	}

	_, err = storage.LoadMeta("no-such-level")
	if !errors.Is(err, ErrLevelNotFound) {
		t.Fatalf("Ожидалась ErrLevelNotFound для метаданных, получено: %v", err)
	}
}

func TestListLevels(t *testing.T) {
	storage := setupTestStorage(t)

	now := time.Now().UTC()
	for i, id := range []string{"level-a", "level-b", "level-c"} {
		meta := LevelMeta{
			ID:        id,
			Layout:    "default",
			Seed:      int64(i),
			Scale:     4.0,
			CreatedAt: now,
		}
		if err := storage.SaveLevel(meta, []byte{byte(i)}); err != nil {
			t.Fatalf("Ошибка сохранения %s: %v", id, err)
		}
	}

	metas, err := storage.ListLevels()
	if err != nil {
		t.Fatalf("Ошибка листинга: %v", err)
	}
	if len(metas) != 3 {
		t.Fatalf("Неверное количество уровней: %d, ожидалось 3", len(metas))
	}

	seen := make(map[string]bool)
	for _, m := range metas {
		seen[m.ID] = true
	}
	for _, id := range []string{"level-a", "level-b", "level-c"} {
		if !seen[id] {
			t.Errorf("Уровень %s отсутствует в листинге", id)
		}
	}
}

func TestDeleteLevel(t *testing.T) {
	storage := setupTestStorage(t)

	meta := LevelMeta{ID: "to-delete", Layout: "default", Scale: 4.0}
	if err := storage.SaveLevel(meta, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Ошибка сохранения: %v", err)
	}

	if err := storage.DeleteLevel(meta.ID); err != nil {
		t.Fatalf("Ошибка удаления: %v", err)
	}

	if _, err := storage.LoadLevel(meta.ID); !errors.Is(err, ErrLevelNotFound) {
		t.Errorf("Блоб не удалён: %v", err)
	}
	if _, err := storage.LoadMeta(meta.ID); !errors.Is(err, ErrLevelNotFound) {
		t.Errorf("Метаданные не удалены: %v", err)
	}

	// Повторное удаление — ErrLevelNotFound
	if err := storage.DeleteLevel(meta.ID); !errors.Is(err, ErrLevelNotFound) {
		t.Errorf("Ожидалась ErrLevelNotFound при повторном удалении, получено: %v", err)
	}
}

func TestSaveLevelEmptyID(t *testing.T) {
	storage := setupTestStorage(t)

	err := storage.SaveLevel(LevelMeta{}, []byte{1})
	if err == nil {
		t.Fatal("Ожидалась ошибка при пустом идентификаторе")
	}
}
