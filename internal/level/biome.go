package level

// Biome представляет тип биома части уровня
type Biome int

const (
	BiomeHome Biome = iota
	BiomeSafe
	BiomeForest
	BiomeCave
	BiomeMushroom
	BiomeTemple
	BiomeMeat
	BiomeBoss

	// BiomeCount — количество каналов биомов в поле биомов
	BiomeCount = int(BiomeBoss) + 1
)

// String возвращает строковое представление биома
func (b Biome) String() string {
	switch b {
	case BiomeHome:
		return "home"
	case BiomeSafe:
		return "safe"
	case BiomeForest:
		return "forest"
	case BiomeCave:
		return "cave"
	case BiomeMushroom:
		return "mushroom"
	case BiomeTemple:
		return "temple"
	case BiomeMeat:
		return "meat"
	case BiomeBoss:
		return "boss"
	default:
		return "unknown"
	}
}

// ParseBiome возвращает биом по имени (для YAML-конфигов)
func ParseBiome(name string) (Biome, bool) {
	for b := BiomeHome; b <= BiomeBoss; b++ {
		if b.String() == name {
			return b, true
		}
	}
	return BiomeForest, false
}
