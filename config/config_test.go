package config_test

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/omni/job-relay/config"
)

const testCfg = `
chain:
  chain_id: 100
  rpc:
    hosts:
      - https://rpc.gnosischain.com
      - https://gnosis-mainnet.example.org/v1/${RPC_API_KEY}
    timeout: 20s
    rps: 10
relay:
  addresses:
    - 0x75Df5AF045d91108662D8080fD1FEFAd6aA0bb59
  start_block: 7408640
  block_tag: safe
  max_block_range_size: 2000
  durable_jobs: true
signer:
  url: http://signer:8080
  key_id: relay-key
  derivation_path:
    - 0x2c
    - 0x3c
postgres:
  user: test_user
  password: test_password
  host: test_host
  port: 5432
  database: test_db
log_level: debug
presenter:
  host: 0.0.0.0:3333
  auth_token: ${PRESENTER_TOKEN}
`

//nolint:paralleltest
func TestReadConfigWithEnv(t *testing.T) {
	t.Setenv("RPC_API_KEY", "12345678")
	t.Setenv("PRESENTER_TOKEN", "secret")
	cfg, err := config.ReadConfigWithEnv([]byte(testCfg))
	require.NoError(t, err)
	require.Equal(t, &config.Config{
		Chain: &config.ChainConfig{
			ChainID: 100,
			RPC: &config.RPCConfig{
				Hosts: []string{
					"https://rpc.gnosischain.com",
					"https://gnosis-mainnet.example.org/v1/12345678",
				},
				Timeout: 20 * time.Second,
				RPS:     10,
			},
		},
		Relay: &config.RelayConfig{
			Addresses:           []common.Address{common.HexToAddress("0x75Df5AF045d91108662D8080fD1FEFAd6aA0bb59")},
			StartBlock:          7408640,
			BlockTag:            config.BlockTagSafe,
			MaxBlockRangeSize:   2000,
			ScrapeInterval:      3 * time.Minute,
			StartDelay:          10 * time.Second,
			JobGasLimit:         1_000_000,
			DurableJobs:         true,
			ExecuteJobsInterval: time.Minute,
			CheckpointInterval:  time.Minute,
		},
		Signer: &config.SignerConfig{
			URL:            "http://signer:8080",
			KeyID:          "relay-key",
			DerivationPath: []hexutil.Bytes{{0x2c}, {0x3c}},
			Timeout:        30 * time.Second,
		},
		DBConfig: &config.DBConfig{
			User:     "test_user",
			Password: "test_password",
			Host:     "test_host",
			Port:     5432,
			DB:       "test_db",
		},
		Presenter: &config.PresenterConfig{
			Host:      "0.0.0.0:3333",
			AuthToken: "secret",
		},
		Metrics:  &config.MetricsConfig{Host: ":2112"},
		LogLevel: logrus.DebugLevel,
	}, cfg)
	require.Equal(t, [][]byte{{0x2c}, {0x3c}}, cfg.Signer.Path())
}

func TestReadConfig_Invalid(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Name string
		Cfg  string
	}{
		{
			Name: "no rpc hosts",
			Cfg: `
chain:
  chain_id: 1
  rpc:
    hosts: []
relay:
  addresses: [0x75Df5AF045d91108662D8080fD1FEFAd6aA0bb59]
signer:
  private_key: abcd
`,
		},
		{
			Name: "unknown block tag",
			Cfg: `
chain:
  chain_id: 1
  rpc:
    hosts: [http://localhost:8545]
relay:
  addresses: [0x75Df5AF045d91108662D8080fD1FEFAd6aA0bb59]
  block_tag: pending
signer:
  private_key: abcd
`,
		},
		{
			Name: "both signer kinds",
			Cfg: `
chain:
  chain_id: 1
  rpc:
    hosts: [http://localhost:8545]
relay:
  addresses: [0x75Df5AF045d91108662D8080fD1FEFAd6aA0bb59]
signer:
  url: http://signer
  private_key: abcd
`,
		},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()
			_, err := config.ReadConfig([]byte(test.Cfg))
			require.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

func TestReadConfig_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.ReadConfig([]byte("chains: {}\n"))
	require.Error(t, err)
}
