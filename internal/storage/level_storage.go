package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
)

// ErrLevelNotFound возвращается при запросе несуществующего уровня
var ErrLevelNotFound = errors.New("storage: level not found")

// LevelMeta описывает сохранённый уровень; хранится отдельно от бинарного
// блоба, чтобы листинг не читал сами уровни
type LevelMeta struct {
	ID        string    `json:"id"`
	Layout    string    `json:"layout"`
	Seed      int64     `json:"seed"`
	Scale     float64   `json:"scale"`
	NodeCount int       `json:"node_count"`
	EdgeCount int       `json:"edge_count"`
	BlobSize  int       `json:"blob_size"`
	CreatedAt time.Time `json:"created_at"`
}

// LevelStorage представляет собой хранилище сгенерированных уровней
type LevelStorage struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

const (
	levelKeyPrefix = "level:"
	metaKeyPrefix  = "meta:"
)

// NewLevelStorage создает новое хранилище уровней
func NewLevelStorage(dataPath string) (*LevelStorage, error) {
	dbPath := filepath.Join(dataPath, "levels")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &LevelStorage{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

// Close закрывает хранилище данных
func (ls *LevelStorage) Close() error {
	ls.mutex.Lock()
	defer ls.mutex.Unlock()

	if !ls.isReady {
		return nil
	}

	ls.isReady = false
	return ls.db.Close()
}

// SaveLevel сохраняет бинарный блоб уровня вместе с метаданными.
// Блоб и метаданные пишутся в одной транзакции
func (ls *LevelStorage) SaveLevel(meta LevelMeta, blob []byte) error {
	ls.mutex.RLock()
	defer ls.mutex.RUnlock()

	if !ls.isReady {
		return fmt.Errorf("хранилище не готово")
	}
	if meta.ID == "" {
		return fmt.Errorf("storage: empty level id")
	}

	meta.BlobSize = len(blob)
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}

	err = ls.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(levelKeyPrefix+meta.ID), blob); err != nil {
			return err
		}
		return txn.Set([]byte(metaKeyPrefix+meta.ID), metaData)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}

	return nil
}

// LoadLevel возвращает бинарный блоб уровня
func (ls *LevelStorage) LoadLevel(id string) ([]byte, error) {
	ls.mutex.RLock()
	defer ls.mutex.RUnlock()

	if !ls.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	var data []byte
	err := ls.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(levelKeyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrLevelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	return data, nil
}

// LoadMeta возвращает метаданные уровня
func (ls *LevelStorage) LoadMeta(id string) (*LevelMeta, error) {
	ls.mutex.RLock()
	defer ls.mutex.RUnlock()

	if !ls.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	var data []byte
	err := ls.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaKeyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrLevelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	var meta LevelMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("ошибка десериализации метаданных: %w", err)
	}

	return &meta, nil
}

// ListLevels возвращает метаданные всех сохранённых уровней
func (ls *LevelStorage) ListLevels() ([]LevelMeta, error) {
	ls.mutex.RLock()
	defer ls.mutex.RUnlock()

	if !ls.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	var metas []LevelMeta
	err := ls.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(metaKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var meta LevelMeta
				if err := json.Unmarshal(val, &meta); err != nil {
					return fmt.Errorf("ошибка десериализации метаданных: %w", err)
				}
				metas = append(metas, meta)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка листинга BadgerDB: %w", err)
	}

	return metas, nil
}

// DeleteLevel удаляет уровень и его метаданные
func (ls *LevelStorage) DeleteLevel(id string) error {
	ls.mutex.RLock()
	defer ls.mutex.RUnlock()

	if !ls.isReady {
		return fmt.Errorf("хранилище не готово")
	}

	// Существование проверяется по метаданным
	if _, err := ls.loadMetaLocked(id); err != nil {
		return err
	}

	err := ls.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(levelKeyPrefix + id)); err != nil {
			return err
		}
		return txn.Delete([]byte(metaKeyPrefix + id))
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления из BadgerDB: %w", err)
	}

	return nil
}

func (ls *LevelStorage) loadMetaLocked(id string) (*LevelMeta, error) {
	var data []byte
	err := ls.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaKeyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrLevelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	var meta LevelMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("ошибка десериализации метаданных: %w", err)
	}
	return &meta, nil
}
