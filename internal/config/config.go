package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Redis    RedisConfig
	Chain    ChainConfig
	Schedule ScheduleConfig
	IPFS     IPFSConfig
	Server   ServerConfig
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

type ChainConfig struct {
	RPCURL            string `mapstructure:"rpc_url"`
	IDRegistryAddress string `mapstructure:"id_registry_address"`
	PayoutPrivateKey  string `mapstructure:"payout_private_key"`
	ChainID           int64  `mapstructure:"chain_id"`
}

type ScheduleConfig struct {
	StartTimestamp  int64 `mapstructure:"start_timestamp"`
	SlotDurationSec int64 `mapstructure:"slot_duration_sec"`
}

type IPFSConfig struct {
	GatewayURL string `mapstructure:"gateway_url"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("redis.addr", "redis:6379")
	v.SetDefault("schedule.slot_duration_sec", 60)
	v.SetDefault("ipfs.gateway_url", "https://gateway.pinata.cloud")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	_ = v.ReadInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit env bindings
	bindings := map[string]string{
		"redis.addr":                 "REDIS_ADDR",
		"redis.password":             "REDIS_PASSWORD",
		"chain.rpc_url":              "RPC_URL",
		"chain.id_registry_address":  "ID_REGISTRY_ADDRESS",
		"chain.payout_private_key":   "PAYOUT_SIGNING_KEY",
		"chain.chain_id":             "CHAIN_ID",
		"schedule.start_timestamp":   "SLOT_START_TIMESTAMP",
		"schedule.slot_duration_sec": "SLOT_DURATION_SEC",
		"ipfs.gateway_url":           "IPFS_GATEWAY_URL",
		"server.port":                "PORT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	type req struct {
		val  string
		name string
	}
	for _, r := range []req{
		{c.Chain.RPCURL, "RPC_URL"},
		{c.Chain.IDRegistryAddress, "ID_REGISTRY_ADDRESS"},
		{c.Chain.PayoutPrivateKey, "PAYOUT_SIGNING_KEY"},
	} {
		if r.val == "" {
			return fmt.Errorf("required config missing: %s", r.name)
		}
	}
	if c.Chain.ChainID == 0 {
		return fmt.Errorf("required config missing: CHAIN_ID")
	}
	if c.Schedule.StartTimestamp <= 0 {
		return fmt.Errorf("required config missing: SLOT_START_TIMESTAMP")
	}
	if c.Schedule.SlotDurationSec <= 0 {
		return fmt.Errorf("SLOT_DURATION_SEC must be positive")
	}
	return nil
}
