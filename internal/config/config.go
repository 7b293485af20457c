package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var AppConfig Config

func InitConfig() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("Failed to load .env file: %v", err)
	}

	viper.AutomaticEnv()

	// Default config
	viper.SetDefault("HTTP_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DB_DIR", "/app/db")
	viper.SetDefault("NETWORK", "lash")
	viper.SetDefault("API_JWT_SECRET", "")
	viper.SetDefault("ELECTRUM_SERVERS", "")
	viper.SetDefault("ELECTRUM_CALL_TIMEOUT", "5s")
	viper.SetDefault("ELECTRUM_BROADCAST_TIMEOUT", "30s")
	viper.SetDefault("ELECTRUM_RETRY_ROUNDS", 3)
	viper.SetDefault("ELECTRUM_RETRY_DELAY", "1s")
	viper.SetDefault("ELECTRUM_USE_SCRIPTHASH", false)
	viper.SetDefault("ELECTRUM_TLS_SKIP_VERIFY", false)
	viper.SetDefault("FEE_PER_BYTE", 10)
	viper.SetDefault("FEE_MULTIPLIER", 1.5)
	viper.SetDefault("MIN_FEE", 10000)
	viper.SetDefault("DUST_THRESHOLD", 1000)
	viper.SetDefault("CHANGE_DUST_LIMIT", 1000)
	viper.SetDefault("MAX_INPUTS", 200)
	viper.SetDefault("MAX_BATCH_INPUTS", 25)
	viper.SetDefault("MAX_OUTPUTS", 50)
	viper.SetDefault("MAX_BATCH_OUTPUTS", 100)
	viper.SetDefault("MAX_FEE_ITERATIONS", 10)
	viper.SetDefault("REPLAY_GUARD_POLICY", "fail-open")
	viper.SetDefault("BALANCE_CONCURRENCY", 8)

	logLevel, err := logrus.ParseLevel(strings.ToLower(viper.GetString("LOG_LEVEL")))
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}

	network, err := GetNetParams(strings.ToLower(viper.GetString("NETWORK")))
	if err != nil {
		logrus.Fatalf("Invalid network: %v", err)
	}

	AppConfig = Config{
		HTTPPort:                 viper.GetString("HTTP_PORT"),
		LogLevel:                 logLevel,
		DbDir:                    viper.GetString("DB_DIR"),
		Network:                  network,
		APIJwtSecret:             viper.GetString("API_JWT_SECRET"),
		ElectrumServers:          SplitServers(viper.GetString("ELECTRUM_SERVERS")),
		ElectrumCallTimeout:      viper.GetDuration("ELECTRUM_CALL_TIMEOUT"),
		ElectrumBroadcastTimeout: viper.GetDuration("ELECTRUM_BROADCAST_TIMEOUT"),
		ElectrumRetryRounds:      viper.GetInt("ELECTRUM_RETRY_ROUNDS"),
		ElectrumRetryDelay:       viper.GetDuration("ELECTRUM_RETRY_DELAY"),
		ElectrumUseScriptHash:    viper.GetBool("ELECTRUM_USE_SCRIPTHASH"),
		ElectrumTLSSkipVerify:    viper.GetBool("ELECTRUM_TLS_SKIP_VERIFY"),
		FeePerByte:               viper.GetInt64("FEE_PER_BYTE"),
		FeeMultiplier:            viper.GetFloat64("FEE_MULTIPLIER"),
		MinFee:                   viper.GetInt64("MIN_FEE"),
		DustThreshold:            viper.GetInt64("DUST_THRESHOLD"),
		ChangeDustLimit:          viper.GetInt64("CHANGE_DUST_LIMIT"),
		MaxInputs:                viper.GetInt("MAX_INPUTS"),
		MaxBatchInputs:           viper.GetInt("MAX_BATCH_INPUTS"),
		MaxOutputs:               viper.GetInt("MAX_OUTPUTS"),
		MaxBatchOutputs:          viper.GetInt("MAX_BATCH_OUTPUTS"),
		MaxFeeIterations:         viper.GetInt("MAX_FEE_ITERATIONS"),
		ReplayGuardPolicy:        strings.ToLower(viper.GetString("REPLAY_GUARD_POLICY")),
		BalanceConcurrency:       viper.GetInt("BALANCE_CONCURRENCY"),
	}

	if AppConfig.MaxBatchInputs > AppConfig.MaxInputs {
		logrus.Warnf("MAX_BATCH_INPUTS %d exceeds MAX_INPUTS %d, clamping", AppConfig.MaxBatchInputs, AppConfig.MaxInputs)
		AppConfig.MaxBatchInputs = AppConfig.MaxInputs
	}
	if AppConfig.FeeMultiplier < 1 {
		logrus.Warnf("FEE_MULTIPLIER %.2f is below 1, set to 1", AppConfig.FeeMultiplier)
		AppConfig.FeeMultiplier = 1
	}
	if len(AppConfig.ElectrumServers) == 0 {
		logrus.Warnf("ELECTRUM_SERVERS is empty, every request must carry its own server list")
	}

	logrus.Infof("Init config, Network %s, ElectrumServers %d, ReplayGuardPolicy %s, MaxInputs %d/%d",
		AppConfig.Network.Name, len(AppConfig.ElectrumServers), AppConfig.ReplayGuardPolicy,
		AppConfig.MaxInputs, AppConfig.MaxBatchInputs)

	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(AppConfig.LogLevel)
}

// SplitServers parses a comma separated server list, dropping blanks.
func SplitServers(s string) []string {
	var servers []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			servers = append(servers, part)
		}
	}
	return servers
}

type Config struct {
	HTTPPort                 string
	LogLevel                 logrus.Level
	DbDir                    string
	Network                  *NetParams
	APIJwtSecret             string
	ElectrumServers          []string
	ElectrumCallTimeout      time.Duration
	ElectrumBroadcastTimeout time.Duration
	ElectrumRetryRounds      int
	ElectrumRetryDelay       time.Duration
	ElectrumUseScriptHash    bool
	ElectrumTLSSkipVerify    bool
	FeePerByte               int64
	FeeMultiplier            float64
	MinFee                   int64
	DustThreshold            int64
	ChangeDustLimit          int64
	MaxInputs                int
	MaxBatchInputs           int
	MaxOutputs               int
	MaxBatchOutputs          int
	MaxFeeIterations         int
	ReplayGuardPolicy        string
	BalanceConcurrency       int
}
