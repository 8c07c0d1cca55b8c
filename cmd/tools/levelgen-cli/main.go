package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/annel0/mmo-levelgen/internal/api"
	"github.com/annel0/mmo-levelgen/internal/config"
	"github.com/annel0/mmo-levelgen/internal/level"
	"github.com/annel0/mmo-levelgen/internal/vec"
)

// Офлайн-инструмент: генерирует уровень по раскладке из конфигурации
// и работает с бинарными файлами уровней без запуска сервиса.

func main() {
	var (
		command    = flag.String("cmd", "generate", "Command: generate, inspect, sample")
		configPath = flag.String("config", "", "путь к YAML конфигурации (или ENV LEVELGEN_CONFIG)")
		layoutName = flag.String("layout", "default", "имя раскладки")
		seed       = flag.Int64("seed", -1, "сид генерации (-1 = из раскладки)")
		scale      = flag.Float64("scale", 0, "ячеек на мировую единицу (0 = из раскладки)")
		output     = flag.String("o", "level.lvl", "файл для записи уровня")
		input      = flag.String("i", "level.lvl", "файл уровня для чтения")
		x          = flag.Float64("x", 0, "мировая координата X (для sample)")
		y          = flag.Float64("y", 0, "мировая координата Y (для sample)")
	)
	flag.Parse()

	switch *command {
	case "generate":
		if err := generate(*configPath, *layoutName, *seed, *scale, *output); err != nil {
			log.Fatalf("❌ Generate failed: %v", err)
		}

	case "inspect":
		if err := inspect(*input); err != nil {
			log.Fatalf("❌ Inspect failed: %v", err)
		}

	case "sample":
		if err := sample(*input, vec.Vec2Float{X: *x, Y: *y}); err != nil {
			log.Fatalf("❌ Sample failed: %v", err)
		}

	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: generate, inspect, sample")
		os.Exit(1)
	}
}

// generate собирает уровень по раскладке и пишет его в файл
func generate(configPath, layoutName string, seed int64, scale float64, output string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg == nil {
		cfg = config.Default()
	}

	layout, ok := cfg.Layouts[layoutName]
	if !ok {
		return fmt.Errorf("layout %q not found", layoutName)
	}

	effSeed := layout.Seed
	if seed >= 0 {
		effSeed = seed
	}
	effScale := layout.Scale
	if scale > 0 {
		effScale = scale
	}

	lvl, err := api.BuildLevel(layout, effSeed, effScale)
	if err != nil {
		return err
	}

	blob, err := level.EncodeLevel(lvl)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	if err := os.WriteFile(output, blob, 0644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	texSize := lvl.TextureSize()
	fmt.Printf("🗺️  Layout %q, seed %d, scale %g\n", layoutName, effSeed, effScale)
	fmt.Printf("   Nodes: %d, edges: %d\n", lvl.NodeCount(), lvl.EdgeCount())
	fmt.Printf("   Fields: %dx%d cells\n", texSize.X, texSize.Y)
	fmt.Printf("   Written: %s (%d bytes)\n", output, len(blob))
	return nil
}

// inspect выводит сводку по файлу уровня
func inspect(input string) error {
	lvl, err := readLevel(input)
	if err != nil {
		return err
	}

	bounds := lvl.Bounds()
	texSize := lvl.TextureSize()
	fmt.Printf("📋 %s\n", input)
	fmt.Printf("   Bounds: (%.1f, %.1f) - (%.1f, %.1f)\n", bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	fmt.Printf("   Scale: %g cells/unit, pixel %.3f units\n", lvl.Scale(), lvl.PixelSize())
	fmt.Printf("   Fields: %dx%d cells\n", texSize.X, texSize.Y)
	fmt.Printf("   Nodes: %d, edges: %d\n", lvl.NodeCount(), lvl.EdgeCount())
	return nil
}

// sample выводит значения полей в мировой точке
func sample(input string, pos vec.Vec2Float) error {
	lvl, err := readLevel(input)
	if err != nil {
		return err
	}

	biomes := lvl.Biome(pos)
	normal := lvl.Normal2D(pos)
	fmt.Printf("📍 (%.2f, %.2f)\n", pos.X, pos.Y)
	fmt.Printf("   Height: %.4f\n", lvl.Height(pos))
	fmt.Printf("   Normal: (%.3f, %.3f)\n", normal.X, normal.Y)
	fmt.Printf("   Radius: %.3f\n", biomes.Radius)
	for i, w := range biomes.Weights {
		if w > 0.01 {
			fmt.Printf("   Biome %s: %.3f\n", level.Biome(i), w)
		}
	}
	return nil
}

func readLevel(input string) (*level.Level, error) {
	blob, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", input, err)
	}
	lvl, err := level.DecodeLevel(blob)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return lvl, nil
}
