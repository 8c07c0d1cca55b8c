package cache

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const levelBlobKeyPrefix = "level:blob:"

// LevelBlobKey возвращает ключ кеша для блоба уровня по его идентификатору
func LevelBlobKey(id string) string {
	return levelBlobKeyPrefix + id
}

// ParseLevelBlobKey извлекает идентификатор уровня из ключа кеша
func ParseLevelBlobKey(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, levelBlobKeyPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// LayoutKey возвращает детерминированный ключ кеша для результата генерации:
// одинаковая раскладка с одинаковым сидом и масштабом даёт одинаковый ключ
func LayoutKey(layout string, seed int64, scale float64) string {
	h := xxhash.New()
	fmt.Fprintf(h, "%s|%d|%g", layout, seed, scale) //nolint:errcheck // hash.Hash не возвращает ошибок
	return fmt.Sprintf("level:layout:%016x", h.Sum64())
}
