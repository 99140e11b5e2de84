package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// KeywordGroup 一组同义关键词及其加减分
type KeywordGroup struct {
	Name     string   `yaml:"name"`
	Synonyms []string `yaml:"synonyms"`
	Boost    float64  `yaml:"boost"`
}

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Addr string `yaml:"-"` // 不从配置文件读取，而是在加载后计算
	} `yaml:"server"`
	SiliconFlow struct {
		APIKey          string `yaml:"api_key"`
		Model           string `yaml:"model"`
		BaseURL         string `yaml:"base_url"`
		MaxTokenLength  int    `yaml:"max_token_length"` // 上下文最大token数
		TimeoutSec      int    `yaml:"timeout_sec"`
		EmbeddingModel  string `yaml:"embedding_model"`
		EmbeddingOn     bool   `yaml:"embedding_enabled"`
		EmbedTimeoutSec int    `yaml:"embedding_timeout_sec"`
	} `yaml:"siliconflow"`
	Log struct {
		Level    string `yaml:"level"`
		Format   string `yaml:"format"`
		Output   string `yaml:"output"`
		FilePath string `yaml:"file_path"`
	} `yaml:"log"`

	DB struct {
		Host            string `yaml:"host"`
		Port            int    `yaml:"port"`
		Username        string `yaml:"username"`
		Password        string `yaml:"password"`
		Database        string `yaml:"database"`
		Charset         string `yaml:"charset"`
		ParseTime       bool   `yaml:"parse_time"`
		DSN             string `yaml:"-"`                 // 不从配置文件读取，而是在加载后计算
		MaxOpenConns    int    `yaml:"max_open_conns"`    // 最大打开连接数
		MaxIdleConns    int    `yaml:"max_idle_conns"`    // 最大空闲连接数
		ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // 连接最大生命周期（分钟）
	} `yaml:"database"`
	Sheets struct {
		Names             []string `yaml:"names"`              // 作为上下文的工作表
		ReferenceSheet    string   `yaml:"reference_sheet"`    // 参考行所在工作表
		DescriptionColumn string   `yaml:"description_column"` // 描述列
		ImageColumn       string   `yaml:"image_column"`       // 图片列
	} `yaml:"sheets"`
	Rate struct {
		TTLSec            int    `yaml:"ttl_sec"`         // 汇率缓存有效期（秒）
		TimeoutSec        int    `yaml:"timeout_sec"`     // 单次请求超时（秒）
		MaxRetries        int    `yaml:"max_retries"`     // 429 时最大重试次数
		BackoffBaseMillis int    `yaml:"backoff_base_ms"` // 指数退避基数（毫秒）
		PrimaryURL        string `yaml:"primary_url"`     // AwesomeAPI
		SecondaryURL      string `yaml:"secondary_url"`   // Yahoo Finance chart
		RedisAddr         string `yaml:"redis_addr"`      // 为空则使用进程内存
		RedisPassword     string `yaml:"redis_password"`
		RedisDB           int    `yaml:"redis_db"`
		RedisKey          string `yaml:"redis_key"`       // 汇率存储键
		Disclaimer        string `yaml:"disclaimer"`      // 换算后附加的说明
		CurrencyPrefix    string `yaml:"currency_prefix"` // 本地货币符号
	} `yaml:"rate"`
	Relevance struct {
		Mode            string         `yaml:"mode"`             // single / multi
		SingleThreshold float64        `yaml:"single_threshold"` // 单结果阈值
		MultiThreshold  float64        `yaml:"multi_threshold"`  // 多结果阈值
		MultiTopK       int            `yaml:"multi_topk"`       // 多结果数量
		MinLength       int            `yaml:"min_length"`       // 描述最短字符数
		ShortPenalty    float64        `yaml:"short_penalty"`
		DomainPenalty   float64        `yaml:"domain_penalty"`
		Countries       []KeywordGroup `yaml:"countries"`
		Domain          []string       `yaml:"domain_keywords"`
		Brands          KeywordGroup   `yaml:"brands"`
	} `yaml:"relevance"`
	Images struct {
		SplitMode  string `yaml:"split_mode"`  // whitespace / delimited
		TimeoutSec int    `yaml:"timeout_sec"` // 下载超时（秒）
		MaxBytes   int64  `yaml:"max_bytes"`   // 单张图片最大字节数
	} `yaml:"images"`
}

func Load() *Config {
	// 首先尝试加载.env文件中的环境变量
	_ = godotenv.Load() // 忽略错误，如果.env文件不存在，继续使用系统环境变量

	path := getenv("CONFIG_PATH", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		// 如果config.yaml不存在，则完全从环境变量加载配置
		return loadFromEnv()
	}

	cfg, err := Parse(data)
	if err != nil {
		log.Printf("Error loading %s: %v, falling back to environment variables", path, err)
		return loadFromEnv()
	}
	log.Printf("Loading configuration from %s", path)
	applyEnvOverrides(cfg)
	cfg.buildDSN()
	return cfg
}

// Parse 解析 YAML 配置并填充默认值
func Parse(data []byte) (*Config, error) {
	var cfg Config
	cfg.SiliconFlow.EmbeddingOn = true // 未配置 embedding_enabled 时默认启用
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

func loadFromEnv() *Config {
	var cfg Config

	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		cfg.DB.DSN = dsn
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Rate.RedisAddr = addr
	}
	cfg.SiliconFlow.EmbeddingOn = os.Getenv("EMBEDDING_ENABLED") != "false"

	cfg.ApplyDefaults()
	applyEnvOverrides(&cfg)
	cfg.buildDSN()

	log.Println("配置从环境变量加载，部分配置可能缺失")
	return &cfg
}

// applyEnvOverrides 从环境变量中加载敏感信息
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_USERNAME"); v != "" {
		cfg.DB.Username = v
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		cfg.DB.Password = v
	}
	if v := os.Getenv("SILICONFLOW_API_KEY"); v != "" {
		cfg.SiliconFlow.APIKey = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Rate.RedisPassword = v
	}
}

// buildDSN 计算 DB.DSN 字段
func (c *Config) buildDSN() {
	if c.DB.DSN != "" || c.DB.Host == "" {
		return
	}
	parseTime := ""
	if c.DB.ParseTime {
		parseTime = "&parseTime=true"
	}
	c.DB.DSN = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s%s",
		c.DB.Username,
		c.DB.Password,
		c.DB.Host,
		c.DB.Port,
		c.DB.Database,
		c.DB.Charset,
		parseTime)
}

// ApplyDefaults 为未配置的字段填充默认值
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	c.Server.Addr = fmt.Sprintf(":%d", c.Server.Port)

	if c.SiliconFlow.BaseURL == "" {
		c.SiliconFlow.BaseURL = "https://api.siliconflow.cn/v1"
	}
	if c.SiliconFlow.Model == "" {
		c.SiliconFlow.Model = "Qwen/Qwen2.5-7B-Instruct"
	}
	if c.SiliconFlow.EmbeddingModel == "" {
		c.SiliconFlow.EmbeddingModel = "BAAI/bge-m3"
	}
	if c.SiliconFlow.MaxTokenLength <= 0 {
		c.SiliconFlow.MaxTokenLength = 6000
	}
	if c.SiliconFlow.TimeoutSec <= 0 {
		c.SiliconFlow.TimeoutSec = 20
	}
	if c.SiliconFlow.EmbedTimeoutSec <= 0 {
		c.SiliconFlow.EmbedTimeoutSec = 10
	}

	if c.DB.Charset == "" {
		c.DB.Charset = "utf8mb4"
	}

	if len(c.Sheets.Names) == 0 {
		c.Sheets.Names = []string{"erros", "trabalhos", "dacen", "psi", "gerais"}
	}
	if c.Sheets.ReferenceSheet == "" {
		c.Sheets.ReferenceSheet = "gerais"
	}
	if c.Sheets.DescriptionColumn == "" {
		c.Sheets.DescriptionColumn = "Informações"
	}
	if c.Sheets.ImageColumn == "" {
		c.Sheets.ImageColumn = "Imagem"
	}

	if c.Rate.TTLSec <= 0 {
		c.Rate.TTLSec = 600
	}
	if c.Rate.TimeoutSec <= 0 {
		c.Rate.TimeoutSec = 5
	}
	if c.Rate.MaxRetries <= 0 {
		c.Rate.MaxRetries = 3
	}
	if c.Rate.BackoffBaseMillis <= 0 {
		c.Rate.BackoffBaseMillis = 2000
	}
	if c.Rate.PrimaryURL == "" {
		c.Rate.PrimaryURL = "https://economia.awesomeapi.com.br"
	}
	if c.Rate.SecondaryURL == "" {
		c.Rate.SecondaryURL = "https://query1.finance.yahoo.com"
	}
	if c.Rate.RedisKey == "" {
		c.Rate.RedisKey = "plasprint:rate:USD-BRL"
	}
	if c.Rate.Disclaimer == "" {
		c.Rate.Disclaimer = "(valores sem impostos)"
	}
	if c.Rate.CurrencyPrefix == "" {
		c.Rate.CurrencyPrefix = "R$"
	}

	if c.Relevance.Mode == "" {
		c.Relevance.Mode = "multi"
	}
	if c.Relevance.SingleThreshold == 0 {
		c.Relevance.SingleThreshold = 0.30
	}
	if c.Relevance.MultiThreshold == 0 {
		c.Relevance.MultiThreshold = 0.18
	}
	if c.Relevance.MultiTopK <= 0 {
		c.Relevance.MultiTopK = 3
	}
	if c.Relevance.MinLength <= 0 {
		c.Relevance.MinLength = 30
	}
	if c.Relevance.ShortPenalty == 0 {
		c.Relevance.ShortPenalty = 0.20
	}
	if c.Relevance.DomainPenalty == 0 {
		c.Relevance.DomainPenalty = 0.20
	}
	if len(c.Relevance.Countries) == 0 {
		c.Relevance.Countries = DefaultCountries()
	}
	if len(c.Relevance.Domain) == 0 {
		c.Relevance.Domain = DefaultDomainKeywords()
	}
	if len(c.Relevance.Brands.Synonyms) == 0 {
		c.Relevance.Brands = DefaultBrands()
	}

	if c.Images.SplitMode == "" {
		c.Images.SplitMode = "delimited"
	}
	if c.Images.TimeoutSec <= 0 {
		c.Images.TimeoutSec = 10
	}
	if c.Images.MaxBytes <= 0 {
		c.Images.MaxBytes = 10 << 20
	}
}

// DefaultCountries 默认国家关键词组
func DefaultCountries() []KeywordGroup {
	return []KeywordGroup{
		{Name: "brasil", Synonyms: []string{"brasil", "brazil", "brasileiro", "brasileira", "nacional"}, Boost: 0.12},
		{Name: "china", Synonyms: []string{"china", "chines", "chinesa", "chinese"}, Boost: 0.12},
		{Name: "alemanha", Synonyms: []string{"alemanha", "germany", "alemao", "alema", "german"}, Boost: 0.12},
		{Name: "japao", Synonyms: []string{"japao", "japan", "japones", "japonesa", "japanese"}, Boost: 0.12},
		{Name: "italia", Synonyms: []string{"italia", "italy", "italiano", "italiana", "italian"}, Boost: 0.12},
		{Name: "eua", Synonyms: []string{"eua", "usa", "estados unidos", "americano", "americana"}, Boost: 0.12},
	}
}

// DefaultDomainKeywords 默认领域关键词（设备/打印机/机器）
func DefaultDomainKeywords() []string {
	return []string{
		"impressora", "impressao", "printer", "maquina", "machine", "equipamento", "equipment",
		"cabecote", "tinta", "serigrafia", "tampografia", "hot stamping", "uv",
	}
}

// DefaultBrands 默认品牌/型号关键词
func DefaultBrands() KeywordGroup {
	return KeywordGroup{
		Name:     "brands",
		Synonyms: []string{"epson", "ricoh", "konica", "mimaki", "roland", "kammann", "isimat", "tampoprint", "kyocera", "xaar"},
		Boost:    0.08,
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
