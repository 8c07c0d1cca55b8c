package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	layout, ok := cfg.Layouts["default"]
	if !ok {
		t.Fatal("Встроенная раскладка default отсутствует")
	}
	if layout.Scale != 4.0 {
		t.Errorf("Неверный масштаб по умолчанию: %g", layout.Scale)
	}
	if len(layout.Parts) != 7 {
		t.Errorf("Неверное количество частей: %d, ожидалось 7", len(layout.Parts))
	}

	// Встроенная раскладка должна проходить собственную валидацию
	if err := cfg.validate(); err != nil {
		t.Errorf("Раскладка по умолчанию не проходит валидацию: %v", err)
	}

	if layout.Parts[0].After != "" {
		t.Error("Первая часть не должна иметь 'after'")
	}
	for _, p := range layout.Parts[1:] {
		if p.After == "" {
			t.Errorf("Часть %q без 'after'", p.Name)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	yamlData := `
server:
  rest_port: 9000
storage:
  path: /tmp/levels-test
cache:
  redis_addr: localhost:6379
layouts:
  small:
    scale: 2.0
    seed: 7
    parts:
      - name: room
        biome: forest
        width: 40
        height: 40
        count: 10
        fill_ratio: 0.5
      - name: annex
        biome: cave
        width: 20
        height: 20
        count: 5
        fill_ratio: 0.3
        after: room
        align: right
`
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(yamlData), 0644); err != nil {
		t.Fatalf("Не удалось записать конфиг: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Ошибка загрузки конфига: %v", err)
	}

	if cfg.Server.GetRESTPort() != 9000 {
		t.Errorf("Неверный REST порт: %d", cfg.Server.GetRESTPort())
	}
	if cfg.Storage.GetStoragePath() != "/tmp/levels-test" {
		t.Errorf("Неверный путь хранилища: %s", cfg.Storage.GetStoragePath())
	}
	if cfg.Cache.RedisAddr != "localhost:6379" {
		t.Errorf("Неверный адрес Redis: %s", cfg.Cache.RedisAddr)
	}

	layout, ok := cfg.Layouts["small"]
	if !ok {
		t.Fatal("Раскладка small отсутствует")
	}
	if layout.Seed != 7 || layout.Scale != 2.0 {
		t.Errorf("Неверные параметры раскладки: %+v", layout)
	}
	if len(layout.Parts) != 2 {
		t.Fatalf("Неверное количество частей: %d", len(layout.Parts))
	}
	if layout.Parts[1].After != "room" || layout.Parts[1].Align != "right" {
		t.Errorf("Неверное размещение части: %+v", layout.Parts[1])
	}
}

func TestLoadUnsetReturnsNil(t *testing.T) {
	t.Setenv("LEVELGEN_CONFIG", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Отсутствие конфига не должно быть ошибкой: %v", err)
	}
	if cfg != nil {
		t.Fatal("Ожидался nil при незаданном конфиге")
	}
}

func TestLoadFromEnv(t *testing.T) {
	yamlData := `
layouts:
  env-layout:
    scale: 1.0
    parts:
      - name: solo
        biome: home
        width: 10
        height: 10
        count: 3
        fill_ratio: 0.5
`
	path := filepath.Join(t.TempDir(), "env-config.yml")
	if err := os.WriteFile(path, []byte(yamlData), 0644); err != nil {
		t.Fatalf("Не удалось записать конфиг: %v", err)
	}
	t.Setenv("LEVELGEN_CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Ошибка загрузки конфига из ENV: %v", err)
	}
	if cfg == nil {
		t.Fatal("Конфиг из ENV не загружен")
	}
	if _, ok := cfg.Layouts["env-layout"]; !ok {
		t.Error("Раскладка env-layout отсутствует")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "no-such-file.yml"))
	if err == nil {
		t.Fatal("Ожидалась ошибка при отсутствующем файле")
	}
}

func TestValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{
			name: "no parts",
			yaml: `
layouts:
  bad:
    scale: 1.0
    parts: []
`,
		},
		{
			name: "unnamed part",
			yaml: `
layouts:
  bad:
    parts:
      - biome: forest
        width: 10
        height: 10
        count: 3
`,
		},
		{
			name: "duplicate part name",
			yaml: `
layouts:
  bad:
    parts:
      - name: room
        biome: forest
        width: 10
        height: 10
        count: 3
      - name: room
        biome: cave
        width: 10
        height: 10
        count: 3
        after: room
        align: right
`,
		},
		{
			name: "first part with after",
			yaml: `
layouts:
  bad:
    parts:
      - name: room
        biome: forest
        width: 10
        height: 10
        count: 3
        after: elsewhere
        align: right
`,
		},
		{
			name: "missing after",
			yaml: `
layouts:
  bad:
    parts:
      - name: room
        biome: forest
        width: 10
        height: 10
        count: 3
      - name: annex
        biome: cave
        width: 10
        height: 10
        count: 3
`,
		},
		{
			name: "after references unknown part",
			yaml: `
layouts:
  bad:
    parts:
      - name: room
        biome: forest
        width: 10
        height: 10
        count: 3
      - name: annex
        biome: cave
        width: 10
        height: 10
        count: 3
        after: nowhere
        align: left
`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yml")
			if err := os.WriteFile(path, []byte(tc.yaml), 0644); err != nil {
				t.Fatalf("Не удалось записать конфиг: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Ожидалась ошибка валидации")
			}
		})
	}
}

func TestPortEnvFallbacks(t *testing.T) {
	t.Setenv("LEVELGEN_REST_PORT", "9999")
	t.Setenv("LEVELGEN_METRICS_PORT", "8889")

	// Конфиг имеет приоритет над ENV
	s := ServerConfig{RESTPort: 7000}
	if got := s.GetRESTPort(); got != 7000 {
		t.Errorf("Порт из конфига должен иметь приоритет: %d", got)
	}

	// Незаданный порт берётся из ENV
	s = ServerConfig{}
	if got := s.GetRESTPort(); got != 9999 {
		t.Errorf("Порт должен браться из ENV: %d", got)
	}
	if got := s.GetMetricsPort(); got != 8889 {
		t.Errorf("Порт метрик должен браться из ENV: %d", got)
	}

	// Невалидный ENV игнорируется в пользу дефолта
	t.Setenv("LEVELGEN_REST_PORT", "not-a-port")
	if got := s.GetRESTPort(); got != 8088 {
		t.Errorf("Ожидался порт по умолчанию: %d", got)
	}

	t.Setenv("LEVELGEN_STORAGE_PATH", "/var/lib/levels")
	st := StorageConfig{}
	if got := st.GetStoragePath(); got != "/var/lib/levels" {
		t.Errorf("Путь должен браться из ENV: %s", got)
	}
}
