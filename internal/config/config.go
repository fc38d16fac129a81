package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Cron       CronConfig       `mapstructure:"cron"`
	Gamma      GammaConfig      `mapstructure:"gamma"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Search     SearchConfig     `mapstructure:"search"`
	TTS        TTSConfig        `mapstructure:"tts"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Chain      ChainConfig      `mapstructure:"chain"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
	Seed       SeedConfig       `mapstructure:"seed"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

// DBConfig carries two DSNs: the read role used by list/get paths and the
// admin role used for briefing inserts and agent writes. AdminDSN falls back
// to DSN when empty.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	AdminDSN        string        `mapstructure:"admin_dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type CronConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ENSRetry     string `mapstructure:"ens_retry"`
	BalanceCheck string `mapstructure:"balance_check"`
}

type GammaConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Limit   int           `mapstructure:"limit"`
}

type LLMConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	Timeout      time.Duration `mapstructure:"timeout"`
	ScriptFormat string        `mapstructure:"script_format"`
}

type SearchConfig struct {
	APIKey           string        `mapstructure:"api_key"`
	BaseURL          string        `mapstructure:"base_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxResults       int           `mapstructure:"max_results"`
	MaxTokensPerPage int           `mapstructure:"max_tokens_per_page"`
	RequestsPerSec   float64       `mapstructure:"requests_per_sec"`
}

type TTSConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	ModelID      string        `mapstructure:"model_id"`
	OutputFormat string        `mapstructure:"output_format"`
	DefaultVoice string        `mapstructure:"default_voice"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	URL        string        `mapstructure:"url"`
	ServiceKey string        `mapstructure:"service_key"`
	Bucket     string        `mapstructure:"bucket"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type ChainConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	RPCURL              string        `mapstructure:"rpc_url"`
	RegistrarAddress    string        `mapstructure:"registrar_address"`
	RegistrarPrivateKey string        `mapstructure:"registrar_private_key"`
	MasterMnemonic      string        `mapstructure:"master_mnemonic"`
	ParentDomain        string        `mapstructure:"parent_domain"`
	GasMarginPct        int64         `mapstructure:"gas_margin_pct"`
	MinBalanceEth       float64       `mapstructure:"min_balance_eth"`
	ConfirmationTimeout time.Duration `mapstructure:"confirmation_timeout"`
}

type PipelineConfig struct {
	FreshnessMinutes int `mapstructure:"freshness_minutes"`
	HistoryLimit     int `mapstructure:"history_limit"`
	MaxSearchQueries int `mapstructure:"max_search_queries"`
}

type SentryConfig struct {
	DSN string `mapstructure:"dsn"`
}

type SeedConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type MiddlewareConfig struct {
	AdminToken string `mapstructure:"admin_token"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ODDLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":3001")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.admin_dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", "10m")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.ens_retry", "@every 15m")
	v.SetDefault("cron.balance_check", "@every 1h")
	v.SetDefault("gamma.base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("gamma.timeout", "15s")
	v.SetDefault("gamma.limit", 5)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4.1-mini-2025-04-14")
	v.SetDefault("llm.timeout", "90s")
	v.SetDefault("llm.script_format", "structured")
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.base_url", "https://api.perplexity.ai")
	v.SetDefault("search.timeout", "20s")
	v.SetDefault("search.max_results", 3)
	v.SetDefault("search.max_tokens_per_page", 300)
	v.SetDefault("search.requests_per_sec", 2.0)
	v.SetDefault("tts.api_key", "")
	v.SetDefault("tts.base_url", "https://api.elevenlabs.io")
	v.SetDefault("tts.model_id", "eleven_flash_v2_5")
	v.SetDefault("tts.output_format", "mp3_44100_128")
	v.SetDefault("tts.default_voice", "gnPxliFHTp6OK6tcoA6i")
	v.SetDefault("tts.timeout", "120s")
	v.SetDefault("storage.url", "")
	v.SetDefault("storage.service_key", "")
	v.SetDefault("storage.bucket", "briefing-audio")
	v.SetDefault("storage.timeout", "60s")
	v.SetDefault("chain.enabled", false)
	v.SetDefault("chain.rpc_url", "https://mainnet.base.org")
	v.SetDefault("chain.registrar_address", "0x3596e71996193D6467D9098401452937a199C200")
	v.SetDefault("chain.registrar_private_key", "")
	v.SetDefault("chain.master_mnemonic", "")
	v.SetDefault("chain.parent_domain", "oddly.eth")
	v.SetDefault("chain.gas_margin_pct", 20)
	v.SetDefault("chain.min_balance_eth", 0.001)
	v.SetDefault("chain.confirmation_timeout", "3m")
	v.SetDefault("pipeline.freshness_minutes", 30)
	v.SetDefault("pipeline.history_limit", 10)
	v.SetDefault("pipeline.max_search_queries", 5)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("seed.enabled", false)
	v.SetDefault("middleware.admin_token", "")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.DB.AdminDSN) == "" {
		cfg.DB.AdminDSN = cfg.DB.DSN
	}

	return cfg, nil
}

// GenerationTTL bounds one briefing build. It covers the slowest run the
// configured client timeouts allow (two LLM calls and one search per query)
// and never drops below redis.lock_ttl.
func (c Config) GenerationTTL() time.Duration {
	queries := c.Pipeline.MaxSearchQueries
	if queries <= 0 {
		queries = 5
	}
	worst := c.Gamma.Timeout +
		2*c.LLM.Timeout +
		time.Duration(queries)*c.Search.Timeout +
		c.TTS.Timeout +
		c.Storage.Timeout +
		time.Minute
	if c.Redis.LockTTL > worst {
		return c.Redis.LockTTL
	}
	return worst
}
