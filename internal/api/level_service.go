package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/mmo-levelgen/internal/cache"
	"github.com/annel0/mmo-levelgen/internal/config"
	"github.com/annel0/mmo-levelgen/internal/eventbus"
	"github.com/annel0/mmo-levelgen/internal/level"
	"github.com/annel0/mmo-levelgen/internal/logging"
	"github.com/annel0/mmo-levelgen/internal/storage"
	"github.com/annel0/mmo-levelgen/internal/vec"
)

// serviceName используется как источник событий шины
const serviceName = "levelgen"

// ErrLayoutNotFound возвращается при запросе неизвестной раскладки
var ErrLayoutNotFound = errors.New("api: layout not found")

// LevelService связывает генератор уровней с хранилищем, кешем и шиной
// событий. Декодированные уровни мемоизируются в памяти процесса:
// декодирование дешевле генерации, но дороже запроса.
type LevelService struct {
	layouts map[string]config.LayoutConfig
	store   *storage.LevelStorage
	cache   cache.CacheRepo   // может быть nil
	bus     eventbus.EventBus // может быть nil

	mu     sync.RWMutex
	loaded map[string]*level.Level
}

// NewLevelService создаёт сервис. Кеш и шина опциональны.
func NewLevelService(layouts map[string]config.LayoutConfig, store *storage.LevelStorage, cacheRepo cache.CacheRepo, bus eventbus.EventBus) *LevelService {
	return &LevelService{
		layouts: layouts,
		store:   store,
		cache:   cacheRepo,
		bus:     bus,
		loaded:  make(map[string]*level.Level),
	}
}

// Layouts возвращает имена доступных раскладок
func (ls *LevelService) Layouts() []string {
	names := make([]string, 0, len(ls.layouts))
	for name := range ls.layouts {
		names = append(names, name)
	}
	return names
}

// Generate собирает уровень по именованной раскладке, сохраняет его
// и публикует событие level.generated. seed и scale перекрывают
// значения раскладки, если заданы.
func (ls *LevelService) Generate(ctx context.Context, layoutName string, seed *int64, scale *float64) (*storage.LevelMeta, error) {
	layout, ok := ls.layouts[layoutName]
	if !ok {
		return nil, ErrLayoutNotFound
	}

	effSeed := layout.Seed
	if seed != nil {
		effSeed = *seed
	}
	effScale := layout.Scale
	if scale != nil {
		effScale = *scale
	}
	if effScale <= 0 {
		effScale = 4.0
	}

	start := time.Now()

	// Генерация детерминирована: одинаковые (раскладка, сид, масштаб)
	// дают одинаковый блоб, поэтому повторная сборка заменяется
	// декодированием закешированного артефакта
	var lvl *level.Level
	var blob []byte
	layoutKey := cache.LayoutKey(layoutName, effSeed, effScale)
	if ls.cache != nil {
		if cached, err := ls.cache.Get(ctx, layoutKey); err == nil {
			if decoded, derr := level.DecodeLevel(cached); derr == nil {
				lvl, blob = decoded, cached
				logging.Debug("Раскладка %s (сид %d) взята из кеша", layoutName, effSeed)
			}
		} else if !cache.IsCacheMiss(err) {
			logging.Warn("Ошибка кеша раскладки %s: %v", layoutName, err)
		}
	}

	if lvl == nil {
		built, err := BuildLevel(layout, effSeed, effScale)
		if err != nil {
			return nil, fmt.Errorf("api: generate %q: %w", layoutName, err)
		}
		encoded, err := level.EncodeLevel(built)
		if err != nil {
			return nil, fmt.Errorf("api: encode level: %w", err)
		}
		lvl, blob = built, encoded

		if ls.cache != nil {
			if err := ls.cache.Set(ctx, layoutKey, blob, 0); err != nil {
				logging.Warn("Не удалось закешировать раскладку %s: %v", layoutName, err)
			}
		}
	}

	meta := storage.LevelMeta{
		ID:        uuid.NewString(),
		Layout:    layoutName,
		Seed:      effSeed,
		Scale:     effScale,
		NodeCount: lvl.NodeCount(),
		EdgeCount: lvl.EdgeCount(),
		CreatedAt: time.Now().UTC(),
	}
	if err := ls.store.SaveLevel(meta, blob); err != nil {
		return nil, fmt.Errorf("api: save level: %w", err)
	}

	ls.mu.Lock()
	ls.loaded[meta.ID] = lvl
	ls.mu.Unlock()

	if ls.cache != nil {
		if err := ls.cache.Set(ctx, cache.LevelBlobKey(meta.ID), blob, 0); err != nil {
			logging.Warn("Не удалось прогреть кеш уровня %s: %v", meta.ID, err)
		}
	}

	if ls.bus != nil {
		ev := eventbus.NewEnvelope(serviceName, eventbus.EventLevelGenerated, eventbus.LevelGeneratedPayload{
			LevelID:   meta.ID,
			Layout:    layoutName,
			Seed:      effSeed,
			Scale:     effScale,
			NodeCount: meta.NodeCount,
			EdgeCount: meta.EdgeCount,
		})
		if err := ls.bus.Publish(ctx, ev); err != nil {
			logging.Warn("Не удалось опубликовать level.generated: %v", err)
		}
	}

	logging.Info("Уровень %s сгенерирован: layout=%s seed=%d узлов=%d рёбер=%d за %v",
		meta.ID, layoutName, effSeed, meta.NodeCount, meta.EdgeCount, time.Since(start))
	return &meta, nil
}

// Get возвращает декодированный уровень: из памяти, кеша или хранилища
func (ls *LevelService) Get(ctx context.Context, id string) (*level.Level, error) {
	ls.mu.RLock()
	lvl, ok := ls.loaded[id]
	ls.mu.RUnlock()
	if ok {
		return lvl, nil
	}

	blob, err := ls.loadBlob(ctx, id)
	if err != nil {
		return nil, err
	}

	lvl, err = level.DecodeLevel(blob)
	if err != nil {
		return nil, fmt.Errorf("api: decode level %s: %w", id, err)
	}

	ls.mu.Lock()
	ls.loaded[id] = lvl
	ls.mu.Unlock()
	return lvl, nil
}

// GetBlob возвращает сжатый бинарный блоб уровня
func (ls *LevelService) GetBlob(ctx context.Context, id string) ([]byte, error) {
	return ls.loadBlob(ctx, id)
}

// GetMeta возвращает метаданные уровня
func (ls *LevelService) GetMeta(id string) (*storage.LevelMeta, error) {
	return ls.store.LoadMeta(id)
}

// List возвращает метаданные всех сохранённых уровней
func (ls *LevelService) List() ([]storage.LevelMeta, error) {
	return ls.store.ListLevels()
}

// Delete удаляет уровень из хранилища, кеша и памяти,
// публикует событие level.deleted
func (ls *LevelService) Delete(ctx context.Context, id string) error {
	if err := ls.store.DeleteLevel(id); err != nil {
		return err
	}

	ls.mu.Lock()
	delete(ls.loaded, id)
	ls.mu.Unlock()

	if ls.cache != nil {
		if err := ls.cache.Invalidate(ctx, cache.LevelBlobKey(id)); err != nil {
			logging.Warn("Не удалось инвалидировать кеш уровня %s: %v", id, err)
		}
	}

	if ls.bus != nil {
		ev := eventbus.NewEnvelope(serviceName, eventbus.EventLevelDeleted, eventbus.LevelDeletedPayload{LevelID: id})
		if err := ls.bus.Publish(ctx, ev); err != nil {
			logging.Warn("Не удалось опубликовать level.deleted: %v", err)
		}
	}

	return nil
}

// DropFromMemory выбрасывает декодированный уровень из памяти процесса.
// Используется обработчиком инвалидации кеша.
func (ls *LevelService) DropFromMemory(id string) {
	ls.mu.Lock()
	delete(ls.loaded, id)
	ls.mu.Unlock()
}

func (ls *LevelService) loadBlob(ctx context.Context, id string) ([]byte, error) {
	if ls.cache != nil {
		blob, err := ls.cache.Get(ctx, cache.LevelBlobKey(id))
		if err == nil {
			return blob, nil
		}
		if !cache.IsCacheMiss(err) {
			logging.Warn("Ошибка кеша для уровня %s: %v", id, err)
		}
	}
	return ls.store.LoadLevel(id)
}

// BuildLevel собирает уровень по раскладке: каждая часть получает
// производный сид seed+index, цепочка after/align определяет размещение.
// Используется сервисом и офлайн-инструментами.
func BuildLevel(layout config.LayoutConfig, seed int64, scale float64) (*level.Level, error) {
	builder := level.NewLevelBuilder()
	if layout.NoiseAmplitude > 0 {
		builder = builder.WithDetailNoise(layout.NoiseAmplitude, seed)
	}

	partIDs := make(map[string]int, len(layout.Parts))
	for i, pc := range layout.Parts {
		biome, ok := level.ParseBiome(pc.Biome)
		if !ok {
			return nil, fmt.Errorf("part %q: unknown biome %q", pc.Name, pc.Biome)
		}

		pb := level.NewLevelPartBuilder(biome).
			WithSize(pc.Width, pc.Height).
			WithCount(pc.Count).
			WithFillRatio(pc.FillRatio).
			WithSeed(seed + int64(i))

		if len(pc.Points) > 0 {
			points := make([]vec.Vec2Float, len(pc.Points))
			for j, xy := range pc.Points {
				if len(xy) != 2 {
					return nil, fmt.Errorf("part %q: point %d must be [x, y]", pc.Name, j)
				}
				points[j] = vec.Vec2Float{X: xy[0], Y: xy[1]}
			}
			pb = pb.WithPoints(points)
		}

		part, err := pb.Build()
		if err != nil {
			return nil, fmt.Errorf("part %q: %w", pc.Name, err)
		}

		var id int
		if pc.After == "" {
			id = builder.Add(vec.Vec2Float{}, part)
		} else {
			afterID, ok := partIDs[pc.After]
			if !ok {
				return nil, fmt.Errorf("part %q: unknown predecessor %q", pc.Name, pc.After)
			}
			align, ok := level.ParsePartAlign(pc.Align)
			if !ok {
				return nil, fmt.Errorf("part %q: unknown align %q", pc.Name, pc.Align)
			}
			id = builder.AddAfter(afterID, align, part)
		}
		partIDs[pc.Name] = id
	}

	return builder.Build(scale)
}
