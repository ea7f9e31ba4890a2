package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Load lê path (YAML ou JSON, pela extensão) sobre Default().
//
// Campos ausentes ficam com o valor padrão. As regras são tratadas em bloco:
// se o arquivo declarar ratelimit.global ou ratelimit.routes, as regras padrão
// são descartadas e valem só as do arquivo. Chaves desconhecidas são erro.
// path vazio devolve Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, cfg.Validate()
	}

	parser, err := parserFor(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return parse(data, parser)
}

// Parse lê data no formato indicado ("yaml", "yml" ou "json").
func Parse(data []byte, format string) (Config, error) {
	parser, err := parserFor("config." + strings.TrimPrefix(format, "."))
	if err != nil {
		return Config{}, err
	}
	return parse(data, parser)
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}
}

func parse(data []byte, parser koanf.Parser) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	cfg := Default()
	if k.Exists("ratelimit.global") || k.Exists("ratelimit.routes") {
		cfg.RateLimit.Global = nil
		cfg.RateLimit.Routes = nil
	}

	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		},
	})
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
