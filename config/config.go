package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
)

const (
	BlockTagLatest    = "latest"
	BlockTagSafe      = "safe"
	BlockTagFinalized = "finalized"
)

const (
	defaultRPCTimeout          = 30 * time.Second
	defaultMaxBlockRangeSize   = 500
	defaultScrapeInterval      = 3 * time.Minute
	defaultStartDelay          = 10 * time.Second
	defaultJobGasLimit         = 1_000_000
	defaultExecuteJobsInterval = time.Minute
	defaultCheckpointInterval  = time.Minute
	defaultMetricsHost         = ":2112"
)

var ErrInvalidConfig = errors.New("invalid config")

type RPCConfig struct {
	Hosts   []string      `yaml:"hosts"`
	Timeout time.Duration `yaml:"timeout"`
	RPS     float64       `yaml:"rps"`
}

type ChainConfig struct {
	ChainID uint64     `yaml:"chain_id"`
	RPC     *RPCConfig `yaml:"rpc"`
}

type RelayConfig struct {
	Addresses           []common.Address `yaml:"addresses"`
	Topics              [][]common.Hash  `yaml:"topics"`
	StartBlock          uint64           `yaml:"start_block"`
	StartFromHead       bool             `yaml:"start_from_head"`
	BlockTag            string           `yaml:"block_tag"`
	MaxBlockRangeSize   uint64           `yaml:"max_block_range_size"`
	ScrapeInterval      time.Duration    `yaml:"scrape_interval"`
	StartDelay          time.Duration    `yaml:"start_delay"`
	JobGasLimit         uint64           `yaml:"job_gas_limit"`
	DurableJobs         bool             `yaml:"durable_jobs"`
	ExecuteJobsInterval time.Duration    `yaml:"execute_jobs_interval"`
	CheckpointInterval  time.Duration    `yaml:"checkpoint_interval"`
}

type SignerConfig struct {
	URL            string          `yaml:"url"`
	PrivateKey     string          `yaml:"private_key"`
	KeyID          string          `yaml:"key_id"`
	DerivationPath []hexutil.Bytes `yaml:"derivation_path"`
	Timeout        time.Duration   `yaml:"timeout"`
}

func (c *SignerConfig) Path() [][]byte {
	path := make([][]byte, len(c.DerivationPath))
	for i, p := range c.DerivationPath {
		path[i] = p
	}
	return path
}

type DBConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       string `yaml:"database"`
}

type PresenterConfig struct {
	Host      string `yaml:"host"`
	AuthToken string `yaml:"auth_token"`
}

type MetricsConfig struct {
	Host string `yaml:"host"`
}

type Config struct {
	Chain     *ChainConfig     `yaml:"chain"`
	Relay     *RelayConfig     `yaml:"relay"`
	Signer    *SignerConfig    `yaml:"signer"`
	DBConfig  *DBConfig        `yaml:"postgres"`
	Presenter *PresenterConfig `yaml:"presenter"`
	Metrics   *MetricsConfig   `yaml:"metrics"`
	LogLevel  logrus.Level     `yaml:"log_level"`
}

func readYamlConfig(blob []byte) (*Config, error) {
	cfg := new(Config)
	if err := parseYaml(cfg, blob); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ReadConfig(blob []byte) (*Config, error) {
	return readYamlConfig(blob)
}

func ReadConfigWithEnv(blob []byte) (*Config, error) {
	return readYamlConfig([]byte(os.ExpandEnv(string(blob))))
}

func ReadConfigFromFile(path string) (*Config, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read config file: %w", err)
	}
	return ReadConfigWithEnv(blob)
}

func (cfg *Config) applyDefaults() {
	if cfg.Chain != nil && cfg.Chain.RPC != nil && cfg.Chain.RPC.Timeout == 0 {
		cfg.Chain.RPC.Timeout = defaultRPCTimeout
	}
	if r := cfg.Relay; r != nil {
		if r.BlockTag == "" {
			r.BlockTag = BlockTagFinalized
		}
		if r.MaxBlockRangeSize == 0 {
			r.MaxBlockRangeSize = defaultMaxBlockRangeSize
		}
		if r.ScrapeInterval == 0 {
			r.ScrapeInterval = defaultScrapeInterval
		}
		if r.StartDelay == 0 {
			r.StartDelay = defaultStartDelay
		}
		if r.JobGasLimit == 0 {
			r.JobGasLimit = defaultJobGasLimit
		}
		if r.ExecuteJobsInterval == 0 {
			r.ExecuteJobsInterval = defaultExecuteJobsInterval
		}
		if r.CheckpointInterval == 0 {
			r.CheckpointInterval = defaultCheckpointInterval
		}
	}
	if cfg.Signer != nil && cfg.Signer.Timeout == 0 {
		cfg.Signer.Timeout = defaultRPCTimeout
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{Host: defaultMetricsHost}
	}
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logrus.InfoLevel
	}
}

func (cfg *Config) Validate() error {
	if cfg.Chain == nil || cfg.Chain.RPC == nil || len(cfg.Chain.RPC.Hosts) == 0 {
		return fmt.Errorf("at least one rpc host is required: %w", ErrInvalidConfig)
	}
	if cfg.Chain.ChainID == 0 {
		return fmt.Errorf("chain_id is required: %w", ErrInvalidConfig)
	}
	if cfg.Relay == nil || len(cfg.Relay.Addresses) == 0 {
		return fmt.Errorf("at least one contract address is required: %w", ErrInvalidConfig)
	}
	switch cfg.Relay.BlockTag {
	case BlockTagLatest, BlockTagSafe, BlockTagFinalized:
	default:
		return fmt.Errorf("unknown block tag %q: %w", cfg.Relay.BlockTag, ErrInvalidConfig)
	}
	if cfg.Signer == nil {
		return fmt.Errorf("signer config is required: %w", ErrInvalidConfig)
	}
	if (cfg.Signer.URL == "") == (cfg.Signer.PrivateKey == "") {
		return fmt.Errorf("exactly one of signer url and private key must be set: %w", ErrInvalidConfig)
	}
	return nil
}
