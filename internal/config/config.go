package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	clientv3 "go.etcd.io/etcd/client/v3"
	"gopkg.in/yaml.v3"
)

// Config 服务配置（Nacos / etcd / 本地文件 三种来源结构一致）
// 时间类字段统一使用秒或毫秒，见字段注释
type Config struct {
	Server struct {
		Port     int    `yaml:"port" json:"port"`
		LogLevel string `yaml:"log_level" json:"log_level"`
		// 关闭时等待在途请求的最长时间（秒）
		ShutdownTimeoutSec int `yaml:"shutdown_timeout_sec" json:"shutdown_timeout_sec"`
	} `yaml:"server" json:"server"`

	Database struct {
		DSN                string `yaml:"dsn" json:"dsn"`
		MaxOpenConns       int    `yaml:"max_open_conns" json:"max_open_conns"`
		MaxIdleConns       int    `yaml:"max_idle_conns" json:"max_idle_conns"`
		ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_sec" json:"conn_max_lifetime_sec"`
	} `yaml:"database" json:"database"`

	Redis struct {
		Addr     string `yaml:"addr" json:"addr"`
		Password string `yaml:"password" json:"password"`
		DB       int    `yaml:"db" json:"db"`
	} `yaml:"redis" json:"redis"`

	RocketMQ struct {
		Endpoint       string `yaml:"endpoint" json:"endpoint"`
		AccessKey      string `yaml:"access_key" json:"access_key"`
		SecretKey      string `yaml:"secret_key" json:"secret_key"`
		ProducerTopics string `yaml:"producer_topics" json:"producer_topics"`
		ConsumerGroup  string `yaml:"consumer_group" json:"consumer_group"`
		ConsumeTopics  string `yaml:"consume_topics" json:"consume_topics"`
	} `yaml:"rocketmq" json:"rocketmq"`

	Observability struct {
		EnableProm bool `yaml:"enable_prom" json:"enable_prom"`
	} `yaml:"observability" json:"observability"`

	Auth struct {
		DemoMode bool `yaml:"demo_mode" json:"demo_mode"` // 演示模式：开放 POST /jwt 签发令牌
		JWT      struct {
			Secret         string `yaml:"secret" json:"secret"`
			AccessTokenTTL int    `yaml:"access_token_ttl" json:"access_token_ttl"` // 秒
			Issuer         string `yaml:"issuer" json:"issuer"`
		} `yaml:"jwt" json:"jwt"`
		// 角色缓存时间（秒），0 表示不缓存
		RoleCacheTTL int `yaml:"role_cache_ttl" json:"role_cache_ttl"`
	} `yaml:"auth" json:"auth"`

	Payment struct {
		Provider   string `yaml:"provider" json:"provider"` // stripe | stub
		APIBase    string `yaml:"api_base" json:"api_base"`
		SecretKey  string `yaml:"secret_key" json:"secret_key"`
		Currency   string `yaml:"currency" json:"currency"`
		SuccessURL string `yaml:"success_url" json:"success_url"`
		CancelURL  string `yaml:"cancel_url" json:"cancel_url"`
		TimeoutMs  int    `yaml:"timeout_ms" json:"timeout_ms"`
	} `yaml:"payment" json:"payment"`

	RateLimit struct {
		Enabled bool `yaml:"enabled" json:"enabled"`
		Global  struct {
			RequestsPerSecond int `yaml:"requests_per_second" json:"requests_per_second"`
		} `yaml:"global" json:"global"`
		ByIP struct {
			RequestsPerSecond int `yaml:"requests_per_second" json:"requests_per_second"`
			WindowSeconds     int `yaml:"window_seconds" json:"window_seconds"`
		} `yaml:"by_ip" json:"by_ip"`
		ByUser struct {
			RequestsPerSecond int `yaml:"requests_per_second" json:"requests_per_second"`
			WindowSeconds     int `yaml:"window_seconds" json:"window_seconds"`
		} `yaml:"by_user" json:"by_user"`
	} `yaml:"rate_limit" json:"rate_limit"`

	CORS struct {
		Enabled          bool     `yaml:"enabled" json:"enabled"`
		AllowedOrigins   []string `yaml:"allowed_origins" json:"allowed_origins"`
		AllowedMethods   []string `yaml:"allowed_methods" json:"allowed_methods"`
		AllowedHeaders   []string `yaml:"allowed_headers" json:"allowed_headers"`
		ExposedHeaders   []string `yaml:"exposed_headers" json:"exposed_headers"`
		AllowCredentials bool     `yaml:"allow_credentials" json:"allow_credentials"`
		MaxAge           int      `yaml:"max_age" json:"max_age"`
	} `yaml:"cors" json:"cors"`

	// 动态配置：功能开关与业务阈值（支持热更新）
	FeatureFlags map[string]bool  `yaml:"feature_flags" json:"feature_flags"`
	Thresholds   map[string]int64 `yaml:"thresholds" json:"thresholds"`
}

// ApplyDefaults 为未配置的字段填充默认值
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.ShutdownTimeoutSec <= 0 {
		c.Server.ShutdownTimeoutSec = 10
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 50
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Auth.JWT.AccessTokenTTL == 0 {
		c.Auth.JWT.AccessTokenTTL = 7 * 24 * 3600
	}
	if c.Auth.JWT.Issuer == "" {
		c.Auth.JWT.Issuer = "contesthub"
	}
	if c.Payment.Provider == "" {
		c.Payment.Provider = "stub"
	}
	if c.Payment.APIBase == "" {
		c.Payment.APIBase = "https://api.stripe.com"
	}
	if c.Payment.Currency == "" {
		c.Payment.Currency = "usd"
	}
	if c.Payment.TimeoutMs <= 0 {
		c.Payment.TimeoutMs = 8000
	}
}

// Load 配置加载优先级：Nacos → etcd → 本地文件（兜底）
// 环境变量：
//   - NACOS_SERVER_ADDR / NACOS_DATA_ID / NACOS_NAMESPACE / NACOS_GROUP
//   - ETCD_ENDPOINTS / ETCD_CONFIG_KEY
//   - CONFIG_FILE: 本地配置文件（默认 config/dev.yaml）
func Load(ctx context.Context) (*Config, error) {
	if strings.TrimSpace(os.Getenv("NACOS_SERVER_ADDR")) != "" {
		cfg, err := loadFromNacos(ctx)
		if err == nil {
			fmt.Printf("[Config] loaded from nacos: dataId=%s\n", os.Getenv("NACOS_DATA_ID"))
			cfg.ApplyDefaults()
			return cfg, nil
		}
		fmt.Printf("[Config] nacos load failed, falling back: error=%v\n", err)
	}

	if strings.TrimSpace(os.Getenv("ETCD_ENDPOINTS")) != "" {
		cfg, err := loadFromEtcd(ctx)
		if err == nil {
			fmt.Printf("[Config] loaded from etcd: key=%s\n", os.Getenv("ETCD_CONFIG_KEY"))
			cfg.ApplyDefaults()
			return cfg, nil
		}
		fmt.Printf("[Config] etcd load failed, falling back: error=%v\n", err)
	}

	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "config/dev.yaml"
	}
	cfg, err := LoadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from remote sources and local file (%s): %w", configFile, err)
	}
	fmt.Printf("[Config] loaded from file: %s\n", configFile)
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

// LoadFile 从本地 JSON 或 YAML 文件加载配置，并填充默认值
func LoadFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := parse(filepath.Ext(filePath), data)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// parse 按扩展名解析；未知扩展名先试 YAML 再试 JSON
func parse(ext string, data []byte) (*Config, error) {
	var cfg Config
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			if err2 := json.Unmarshal(data, &cfg); err2 != nil {
				return nil, fmt.Errorf("failed to parse config (tried YAML and JSON): yaml_err=%v, json_err=%v", err, err2)
			}
		}
	}
	return &cfg, nil
}

func loadFromEtcd(ctx context.Context) (*Config, error) {
	endpoints := strings.Split(os.Getenv("ETCD_ENDPOINTS"), ",")
	for i := range endpoints {
		endpoints[i] = strings.TrimSpace(endpoints[i])
	}
	if len(endpoints) == 0 || endpoints[0] == "" {
		return nil, errors.New("empty ETCD_ENDPOINTS")
	}
	key := strings.TrimSpace(os.Getenv("ETCD_CONFIG_KEY"))
	if key == "" {
		return nil, errors.New("ETCD_CONFIG_KEY not set")
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
		Username:    os.Getenv("ETCD_USERNAME"),
		Password:    os.Getenv("ETCD_PASSWORD"),
	})
	if err != nil {
		return nil, fmt.Errorf("etcd connect failed: %w", err)
	}
	defer cli.Close()

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	resp, err := cli.Get(ctx2, key)
	if err != nil {
		return nil, fmt.Errorf("etcd get failed: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("etcd key not found: %s", key)
	}
	return parse(filepath.Ext(key), resp.Kvs[0].Value)
}

// nacosParams 从环境变量读取 Nacos 连接参数
func nacosParams() (vo.NacosClientParam, string, string, error) {
	serverAddr := strings.TrimSpace(os.Getenv("NACOS_SERVER_ADDR"))
	if serverAddr == "" {
		return vo.NacosClientParam{}, "", "", errors.New("NACOS_SERVER_ADDR not set")
	}
	dataID := strings.TrimSpace(os.Getenv("NACOS_DATA_ID"))
	if dataID == "" {
		return vo.NacosClientParam{}, "", "", errors.New("NACOS_DATA_ID not set")
	}
	group := getEnvOrDefault("NACOS_GROUP", "DEFAULT_GROUP")

	timeoutMS := 5000
	if t, err := strconv.Atoi(strings.TrimSpace(os.Getenv("NACOS_TIMEOUT_MS"))); err == nil && t > 0 {
		timeoutMS = t
	}

	var serverConfigs []constant.ServerConfig
	for _, addr := range strings.Split(serverAddr, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		parts := strings.Split(addr, ":")
		if len(parts) != 2 {
			return vo.NacosClientParam{}, "", "", fmt.Errorf("invalid NACOS_SERVER_ADDR format: %s (expected host:port)", addr)
		}
		port, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return vo.NacosClientParam{}, "", "", fmt.Errorf("invalid port in NACOS_SERVER_ADDR: %s", parts[1])
		}
		serverConfigs = append(serverConfigs, constant.ServerConfig{IpAddr: parts[0], Port: port})
	}
	if len(serverConfigs) == 0 {
		return vo.NacosClientParam{}, "", "", errors.New("no valid server address in NACOS_SERVER_ADDR")
	}

	clientConfig := constant.ClientConfig{
		NamespaceId:         getEnvOrDefault("NACOS_NAMESPACE", "public"),
		TimeoutMs:           uint64(timeoutMS),
		NotLoadCacheAtStart: true,
		LogDir:              "/tmp/nacos/log",
		CacheDir:            "/tmp/nacos/cache",
		LogLevel:            "warn",
	}
	if u, p := strings.TrimSpace(os.Getenv("NACOS_USERNAME")), strings.TrimSpace(os.Getenv("NACOS_PASSWORD")); u != "" && p != "" {
		clientConfig.Username = u
		clientConfig.Password = p
	}

	return vo.NacosClientParam{ClientConfig: &clientConfig, ServerConfigs: serverConfigs}, dataID, group, nil
}

func loadFromNacos(_ context.Context) (*Config, error) {
	param, dataID, group, err := nacosParams()
	if err != nil {
		return nil, err
	}
	configClient, err := clients.NewConfigClient(param)
	if err != nil {
		return nil, fmt.Errorf("failed to create nacos config client: %w", err)
	}
	content, err := configClient.GetConfig(vo.ConfigParam{DataId: dataID, Group: group})
	if err != nil {
		return nil, fmt.Errorf("failed to get config from nacos: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("nacos config is empty: dataId=%s, group=%s", dataID, group)
	}
	return parse(filepath.Ext(dataID), []byte(content))
}
