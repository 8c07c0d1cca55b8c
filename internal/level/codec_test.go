package level

import (
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/mmo-levelgen/internal/vec"
)

func buildTestLevel(t *testing.T) *Level {
	t.Helper()
	home, err := NewLevelPartBuilder(BiomeHome).
		WithSize(30, 30).WithCount(5).WithFillRatio(0.2).WithSeed(1).Build()
	require.NoError(t, err)
	forest, err := NewLevelPartBuilder(BiomeForest).
		WithSize(60, 60).WithCount(20).WithFillRatio(0.35).WithSeed(2).Build()
	require.NoError(t, err)

	lb := NewLevelBuilder()
	lb.Add(vec.Vec2Float{}, home)
	lb.AddAfter(0, AlignRight, forest)

	lvl, err := lb.Build(2.0)
	require.NoError(t, err)
	return lvl
}

func TestCodec_RoundTrip(t *testing.T) {
	original := buildTestLevel(t)

	blob, err := EncodeLevel(original)
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	decoded, err := DecodeLevel(blob)
	require.NoError(t, err)

	assert.Equal(t, original.NodeCount(), decoded.NodeCount(), "Количество узлов должно сохраняться")
	assert.Equal(t, original.EdgeCount(), decoded.EdgeCount(), "Количество рёбер должно сохраняться")
	assert.Equal(t, original.Bounds(), decoded.Bounds(), "Границы должны сохраняться")
	assert.Equal(t, original.Scale(), decoded.Scale(), "Масштаб должен сохраняться")
	assert.Equal(t, original.TextureSize(), decoded.TextureSize(), "Размер полей должен сохраняться")
	assert.Equal(t, original.Points(), decoded.Points(), "Позиции узлов должны сохраняться")
	assert.Equal(t, original.Edges(), decoded.Edges(), "Рёбра должны сохраняться")

	// Поля восстанавливаются бит-в-бит: выборки совпадают
	for _, pos := range []vec.Vec2Float{
		{X: 0, Y: 0},
		{X: 20, Y: 5},
		{X: -10, Y: -10},
	} {
		assert.Equal(t, original.Height(pos), decoded.Height(pos), "Высота в %v должна совпадать", pos)
		assert.Equal(t, original.Biome(pos), decoded.Biome(pos), "Биомы в %v должны совпадать", pos)
	}
}

func TestCodec_RebuiltIndexes(t *testing.T) {
	original := buildTestLevel(t)

	blob, err := EncodeLevel(original)
	require.NoError(t, err)
	decoded, err := DecodeLevel(blob)
	require.NoError(t, err)

	// Пространственный индекс перестроен: ближайшие узлы совпадают
	query := vec.Vec2Float{X: 5, Y: 5}
	assert.Equal(t, original.NearestTerrainIDs(3, query), decoded.NearestTerrainIDs(3, query),
		"Индекс узлов должен перестраиваться при декодировании")

	// Списки смежности перестроены: поиск пути работает
	last := decoded.NodeCount() - 1
	path, err := decoded.Path(0, last)
	require.NoError(t, err, "Поиск пути должен работать после декодирования")
	assert.Equal(t, 0, path[0])
	assert.Equal(t, last, path[len(path)-1])

	// Динамический индекс существ пуст
	assert.Empty(t, decoded.NearestCreatures(5, query), "Индекс существ не сериализуется")
}

func TestDecodeLevel_GarbageInput(t *testing.T) {
	// Не zstd
	_, err := DecodeLevel([]byte("definitely not a level"))
	assert.Error(t, err, "Мусор на входе должен давать ошибку")

	// Пустой вход
	_, err = DecodeLevel(nil)
	assert.Error(t, err, "Пустой вход должен давать ошибку")
}

func TestDecodeLevel_WrongPayload(t *testing.T) {
	// Валидный zstd, но внутри не уровень
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()

	payload := enc.EncodeAll([]byte("compressed but wrong"), nil)
	_, err = DecodeLevel(payload)
	assert.Error(t, err, "Неверная сигнатура должна давать ошибку")

	// Усечённый корректный блоб
	original := buildTestLevel(t)
	blob, err := EncodeLevel(original)
	require.NoError(t, err)

	_, err = DecodeLevel(blob[:len(blob)/2])
	assert.Error(t, err, "Усечённый блоб должен давать ошибку")
}
