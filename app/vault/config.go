package main

import (
	"math/big"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/xerrors"

	"github.com/x-xyz/nftvault/base/curve"
	"github.com/x-xyz/nftvault/base/database/mongoclient"
	"github.com/x-xyz/nftvault/base/database/redisclient"
	"github.com/x-xyz/nftvault/base/log"
	"github.com/x-xyz/nftvault/base/metrics"
	"github.com/x-xyz/nftvault/base/tracker"
	"github.com/x-xyz/nftvault/domain"
	"github.com/x-xyz/nftvault/domain/vault"
	"github.com/x-xyz/nftvault/service/rail/evm"
)

const (
	railMemory = "memory"
	railEvm    = "evm"
)

type vaultConfig struct {
	Address            string        `mapstructure:"address"`
	Owner              string        `mapstructure:"owner"`
	K                  string        `mapstructure:"k"`
	FeeRate            string        `mapstructure:"feeRate"`
	MaxSupply          string        `mapstructure:"maxSupply"`
	MinSellPrice       string        `mapstructure:"minSellPrice"`
	MaxAuctionDuration time.Duration `mapstructure:"maxAuctionDuration"`
	RewardPercentage   uint64        `mapstructure:"rewardPercentage"`
	AllowList          []string      `mapstructure:"allowList"`
}

// devConfig seeds the memory rail
type devConfig struct {
	// Fund maps an account to the asset it starts with
	Fund map[string]string `mapstructure:"fund"`
	// NFTs maps a token id to its first owner
	NFTs map[string]string `mapstructure:"nfts"`
}

type config struct {
	Debug   bool           `mapstructure:"debug"`
	Log     log.Config     `mapstructure:"log"`
	Metrics metrics.Config `mapstructure:"metrics"`
	Server  struct {
		Address  string        `mapstructure:"address"`
		CacheTTL time.Duration `mapstructure:"cacheTTL"`
	} `mapstructure:"server"`

	Rail  string      `mapstructure:"rail"`
	Vault vaultConfig `mapstructure:"vault"`
	Evm   evm.Config  `mapstructure:"evm"`
	Dev   devConfig   `mapstructure:"dev"`
	// Tracker watches collection transfers into the vault, evm rail only
	Tracker tracker.Config `mapstructure:"tracker"`

	// empty uri disables the backend
	Mongo      mongoclient.Config `mapstructure:"mongo"`
	CheckIndex bool               `mapstructure:"checkIndex"`
	Redis      redisclient.Config `mapstructure:"redis"`

	Events struct {
		QueueLength  int           `mapstructure:"queueLength"`
		CacheTTL     time.Duration `mapstructure:"cacheTTL"`
		LocalCacheMB int           `mapstructure:"localCacheMB"`
	} `mapstructure:"events"`
}

func loadConfig(v *viper.Viper) (*config, error) {
	cfg := &config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, xerrors.Errorf("unmarshal config: %w", err)
	}
	cfg.Rail = strings.ToLower(cfg.Rail)
	if cfg.Rail == "" {
		cfg.Rail = railMemory
	}
	if cfg.Rail != railMemory && cfg.Rail != railEvm {
		return nil, xerrors.Errorf("rail %q: %w", cfg.Rail, domain.ErrBadParamInput)
	}
	if cfg.Tracker.Enabled && cfg.Rail != railEvm {
		return nil, xerrors.Errorf("tracker needs the evm rail: %w", domain.ErrBadParamInput)
	}
	return cfg, nil
}

// vaultParams builds the vault config. address is the vault account, which
// the evm rail derives from the key rather than reading it from the file.
// protected lists contracts holding vault assets, empty entries are skipped.
func (c *config) vaultParams(address domain.Address, protected ...domain.Address) (vault.Config, error) {
	params, err := curve.ParseParams(c.Vault.K, c.Vault.FeeRate)
	if err != nil {
		return vault.Config{}, err
	}
	minSell, err := optionalAmount(c.Vault.MinSellPrice)
	if err != nil {
		return vault.Config{}, xerrors.Errorf("minSellPrice: %w", err)
	}
	maxSupply, err := optionalAmount(c.Vault.MaxSupply)
	if err != nil {
		return vault.Config{}, xerrors.Errorf("maxSupply: %w", err)
	}
	allow := make([]domain.Address, 0, len(c.Vault.AllowList))
	for _, a := range c.Vault.AllowList {
		addr := domain.Address(a)
		if !addr.IsValid() {
			return vault.Config{}, xerrors.Errorf("allowList %q: %w", a, domain.ErrInvalidAddress)
		}
		allow = append(allow, addr.ToLower())
	}
	var prot []domain.Address
	for _, a := range protected {
		if a != "" {
			prot = append(prot, a.ToLower())
		}
	}

	res := vault.Config{
		Address:            address.ToLower(),
		Owner:              domain.Address(c.Vault.Owner).ToLower(),
		Curve:              params,
		MaxSupply:          maxSupply,
		MinSellPrice:       minSell,
		MaxAuctionDuration: c.Vault.MaxAuctionDuration,
		RewardPercentage:   c.Vault.RewardPercentage,
		AllowList:          allow,
		Protected:          prot,
	}
	return res, res.Validate()
}

func optionalAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	return domain.ParseAmount(s)
}
