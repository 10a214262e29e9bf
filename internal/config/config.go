package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"spotrelay/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix     = "SPOTRELAY"
	EnvConfigPath = "SPOTRELAY_CONFIG"
	DefaultPath   = "configs/config.yaml"
)

// envKeys 允许仅通过环境变量提供的键（未出现在配置文件中也能生效）。
var envKeys = []string{
	"app.env",
	"app.log_level",
	"app.http_addr",
	"app.log_path",
	"exchange.rest_base_url",
	"exchange.api_key",
	"exchange.api_secret",
	"exchange.recv_window_ms",
	"exchange.timeout_seconds",
	"exchange.max_retries",
	"exchange.proxy.enabled",
	"exchange.proxy.rest_url",
	"positions.quote_assets",
	"positions.fee_rate",
	"positions.min_value",
	"positions.max_concurrency",
	"notify.telegram.enabled",
	"notify.telegram.bot_token",
	"notify.telegram.chat_id",
}

// ResolvePath 返回配置文件路径：显式参数 > SPOTRELAY_CONFIG > 默认路径。
func ResolvePath(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	return DefaultPath
}

func Load(path string) (*Config, error) {
	files, err := resolveConfigIncludes(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigType("yaml")
	for _, file := range files {
		if err := mergeConfigFile(v, file); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", file, err)
		}
	}
	bindEnv(v)
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	setKeys := make(keySet)
	collectSettingsKeys(v.AllSettings(), setKeys)
	cfg.applyDefaults(setKeys)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
}

// Watch 监听配置文件变化，重新加载成功后回调 fn；加载失败时保留旧配置。
// include 进来的文件不在监听范围内。
func Watch(path string, fn func(*Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	v := viper.New()
	v.SetConfigFile(abs)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("watch config failed (%s): %w", abs, err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(abs)
		if err != nil {
			logger.Errorf("[config] reload %s failed: %v", evt.Name, err)
			return
		}
		logger.Infof("[config] reloaded %s", evt.Name)
		if fn != nil {
			fn(cfg)
		}
	})
	v.WatchConfig()
	return nil
}

func mergeConfigFile(v *viper.Viper, path string) error {
	tmp := viper.New()
	tmp.SetConfigFile(path)
	if err := tmp.ReadInConfig(); err != nil {
		return err
	}
	return v.MergeConfigMap(tmp.AllSettings())
}

func resolveConfigIncludes(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	stack := make(map[string]bool)
	files, err := collectConfigFiles(abs, seen, stack)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return []string{abs}, nil
	}
	return files, nil
}

func collectConfigFiles(path string, seen, stack map[string]bool) ([]string, error) {
	path = filepath.Clean(path)
	if stack[path] {
		return nil, fmt.Errorf("include cycle detected: %s", path)
	}
	if seen[path] {
		return nil, nil
	}
	stack[path] = true
	includes, err := parseIncludeList(path)
	if err != nil {
		return nil, fmt.Errorf("parsing include failed (%s): %w", path, err)
	}
	dir := filepath.Dir(path)
	var ordered []string
	for _, inc := range includes {
		incPath := inc
		if !filepath.IsAbs(inc) {
			incPath = filepath.Join(dir, inc)
		}
		sub, err := collectConfigFiles(incPath, seen, stack)
		if err != nil {
			return nil, err
		}
		ordered = append(ordered, sub...)
	}
	delete(stack, path)
	seen[path] = true
	return append(ordered, path), nil
}

// includeHeader 只解析 include 字段；其余内容交给 viper。
type includeHeader struct {
	Include yaml.Node `yaml:"include"`
}

func parseIncludeList(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var hdr includeHeader
	if err := yaml.Unmarshal(raw, &hdr); err != nil {
		return nil, err
	}
	var items []string
	switch hdr.Include.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		if hdr.Include.Tag == "!!null" {
			return nil, nil
		}
		items = []string{hdr.Include.Value}
	case yaml.SequenceNode:
		for _, item := range hdr.Include.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return nil, fmt.Errorf("include only supports strings")
			}
			items = append(items, item.Value)
		}
	default:
		return nil, fmt.Errorf("include must be a string array")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out, nil
}

// collectSettingsKeys 记录配置文件或环境变量中显式出现的键（小写点路径），
// applyDefaults 不会覆盖这些键。
func collectSettingsKeys(settings map[string]any, dest keySet) {
	if dest == nil || len(settings) == 0 {
		return
	}
	flattenConfigKeys("", settings, dest)
}

func flattenConfigKeys(prefix string, node any, dest keySet) {
	child := func(k string) string {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || prefix == "" {
			return k
		}
		return prefix + "." + k
	}
	switch val := node.(type) {
	case map[string]any:
		if prefix != "" {
			dest.mark(prefix)
		}
		for k, v := range val {
			if next := child(k); next != "" {
				flattenConfigKeys(next, v, dest)
			}
		}
	case map[any]any:
		if prefix != "" {
			dest.mark(prefix)
		}
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			if next := child(ks); next != "" {
				flattenConfigKeys(next, v, dest)
			}
		}
	case nil:
		// yaml 中写了 key 但没有值（如 `max_retries:`）视为未设置
	default:
		if prefix != "" {
			dest.mark(prefix)
		}
	}
}
