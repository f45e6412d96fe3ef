// Package config loads thorium.yml (plus THORIUM_* environment overrides)
// into the single Config struct every cmd/thorium-* entrypoint wires its
// store clients and control loop from, via viper's config-file +
// AutomaticEnv layering shared across all five binaries.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/thorium-platform/thorium/errs"
	"github.com/thorium-platform/thorium/model"
)

// Config is the single YAML-loaded configuration surface every component
// reads at startup.
type Config struct {
	Namespace string `mapstructure:"namespace"`

	MDS struct {
		ConnString string `mapstructure:"conn_string"`
	} `mapstructure:"mds"`

	CS struct {
		RedisURL string `mapstructure:"redis_url"`
	} `mapstructure:"cs"`

	BS struct {
		Endpoint     string `mapstructure:"endpoint"`
		Region       string `mapstructure:"region"`
		Bucket       string `mapstructure:"bucket"`
		AccessKey    string `mapstructure:"access_key"`
		SecretKey    string `mapstructure:"secret_key"`
		UsePathStyle bool   `mapstructure:"use_path_style"`
	} `mapstructure:"bs"`

	SS struct {
		URL      string `mapstructure:"url"`
		Database string `mapstructure:"database"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
	} `mapstructure:"ss"`

	API struct {
		BaseURL string        `mapstructure:"base_url"`
		Token   string        `mapstructure:"token"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"api"`

	Retention struct {
		Events        time.Duration `mapstructure:"events"`
		Logs          time.Duration `mapstructure:"logs"`
		Notifications time.Duration `mapstructure:"notifications"`
	} `mapstructure:"retention"`

	Partitions struct {
		Tags  time.Duration `mapstructure:"tags"`
		Files time.Duration `mapstructure:"files"`
		Logs  time.Duration `mapstructure:"logs"`
	} `mapstructure:"partitions"`

	MaxTriggerDepth int `mapstructure:"max_trigger_depth"`

	SystemSettings struct {
		Reserved          model.Resources `mapstructure:"reserved"`
		FairShareCap      model.Resources `mapstructure:"fairshare_cap"`
		ScaleDownGrace    time.Duration   `mapstructure:"scale_down_grace"`
		NodeHealthTimeout time.Duration   `mapstructure:"node_health_timeout"`
	} `mapstructure:"system_settings"`

	Log struct {
		Level  string `mapstructure:"level"`
		Pretty bool   `mapstructure:"pretty"`
	} `mapstructure:"log"`

	MetricsNamespace string `mapstructure:"metrics_namespace"`
}

// Defaults applied to every Config before the file/env layers overlay it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("namespace", "thorium")
	v.SetDefault("mds.conn_string", "postgres://localhost:5432/thorium")
	v.SetDefault("cs.redis_url", "redis://localhost:6379/0")
	v.SetDefault("bs.use_path_style", true)
	v.SetDefault("ss.database", "thorium")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("retention.events", 72*time.Hour)
	v.SetDefault("retention.logs", 30*24*time.Hour)
	v.SetDefault("retention.notifications", 7*24*time.Hour)
	v.SetDefault("partitions.tags", time.Hour)
	v.SetDefault("partitions.files", time.Hour)
	v.SetDefault("partitions.logs", time.Hour)
	v.SetDefault("max_trigger_depth", 5)
	v.SetDefault("system_settings.scale_down_grace", 5*time.Minute)
	v.SetDefault("system_settings.node_health_timeout", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics_namespace", "thorium")
}

// Load reads thorium.yml from path (or searches ".", "/etc/thorium" when
// path is empty) and overlays THORIUM_* environment variables, with the
// environment always taking precedence over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("thorium")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/thorium")
	}

	v.SetEnvPrefix("THORIUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errs.Wrap(errs.Internal, "read thorium.yml", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errs.Wrap(errs.Internal, "unmarshal config", err)
	}
	return &cfg, nil
}
