package config

import (
	"errors"
	"fmt"

	"github.com/andrew-solarstorm/go-packages/common"
	"github.com/gagliardetto/solana-go"
)

type AMMConfig struct {
	// ProgramID seeds the deterministic pair addresses. Empty derives a fixed default.
	ProgramID string

	// FeeController may change the fee recipient and hand over its own role.
	FeeController string

	// Pauser may stop and resume pair creation.
	Pauser string

	// FeeRecipient receives protocol fee shares. Empty keeps protocol fees off.
	FeeRecipient string

	// NativeSymbol and NativeDecimals describe the wrapped native asset.
	// Default: "WNATIVE", 9
	NativeSymbol   string
	NativeDecimals int

	// DBPath is the path to the BoltDB file for engine state.
	// Default: "./data/amm.db"
	DBPath string

	// PersistenceEnabled controls whether state is persisted to disk.
	// Default: true
	PersistenceEnabled bool

	// PersistInterval is how often dirty state is batch-saved to disk (in seconds).
	// Default: 30
	PersistInterval int

	// ObservationInterval is how often cumulative prices are sampled (in seconds).
	// Default: 60
	ObservationInterval int

	// ObservationCapacity is the number of samples kept per pair.
	// Default: 120
	ObservationCapacity int

	// TWAPMaxElapsed caps the seconds credited to one accumulator update.
	// Default: 3600
	TWAPMaxElapsed int

	// TWAPMinChangeBps is the reserve change below which accumulators do not advance.
	// Default: 10
	TWAPMinChangeBps int

	// MinSwapOutput is the dust floor for swap outputs, in base units.
	// Default: 100
	MinSwapOutput int

	// MaxSwapOutputBps caps one output as a share of its reserve.
	// Default: 5000
	MaxSwapOutputBps int

	// MaxSwapInputBps caps one inferred input as a share of its reserve.
	// Default: 2000
	MaxSwapInputBps int
}

func (c *AMMConfig) Key() string {
	return AMM_CONFIG_KEY
}

func (c *AMMConfig) Load() error {
	c.ProgramID = common.GetEnvOrDefault("AMM_PROGRAM_ID", "")
	c.FeeController = common.GetEnvOrDefault("AMM_FEE_CONTROLLER", "")
	c.Pauser = common.GetEnvOrDefault("AMM_PAUSER", "")
	c.FeeRecipient = common.GetEnvOrDefault("AMM_FEE_RECIPIENT", "")
	c.NativeSymbol = common.GetEnvOrDefault("AMM_NATIVE_SYMBOL", "WNATIVE")
	c.NativeDecimals = common.GetEnvOrDefaultInt("AMM_NATIVE_DECIMALS", 9)
	c.DBPath = common.GetEnvOrDefault("AMM_DB_PATH", "./data/amm.db")
	c.PersistenceEnabled = common.GetEnvOrDefault("AMM_PERSISTENCE_ENABLED", "true") == "true"
	c.PersistInterval = common.GetEnvOrDefaultInt("AMM_PERSIST_INTERVAL", 30)
	c.ObservationInterval = common.GetEnvOrDefaultInt("AMM_OBSERVATION_INTERVAL", 60)
	c.ObservationCapacity = common.GetEnvOrDefaultInt("AMM_OBSERVATION_CAPACITY", 120)
	c.TWAPMaxElapsed = common.GetEnvOrDefaultInt("AMM_TWAP_MAX_ELAPSED", 3600)
	c.TWAPMinChangeBps = common.GetEnvOrDefaultInt("AMM_TWAP_MIN_CHANGE_BPS", 10)
	c.MinSwapOutput = common.GetEnvOrDefaultInt("AMM_MIN_SWAP_OUTPUT", 100)
	c.MaxSwapOutputBps = common.GetEnvOrDefaultInt("AMM_MAX_SWAP_OUTPUT_BPS", 5000)
	c.MaxSwapInputBps = common.GetEnvOrDefaultInt("AMM_MAX_SWAP_INPUT_BPS", 2000)
	return c.Validate()
}

func (c *AMMConfig) Validate() error {
	for name, v := range map[string]string{
		"AMM_PROGRAM_ID":     c.ProgramID,
		"AMM_FEE_CONTROLLER": c.FeeController,
		"AMM_PAUSER":         c.Pauser,
		"AMM_FEE_RECIPIENT":  c.FeeRecipient,
	} {
		if v == "" {
			continue
		}
		if _, err := solana.PublicKeyFromBase58(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if c.NativeDecimals < 0 || c.NativeDecimals > 255 {
		return errors.New("invalid native decimals")
	}
	if c.PersistInterval <= 0 || c.ObservationInterval <= 0 || c.ObservationCapacity < 2 {
		return errors.New("invalid persistence or observation interval")
	}
	if c.TWAPMaxElapsed <= 0 || c.TWAPMinChangeBps < 0 || c.TWAPMinChangeBps > 10000 {
		return errors.New("invalid twap config")
	}
	if c.MinSwapOutput < 0 ||
		c.MaxSwapOutputBps <= 0 || c.MaxSwapOutputBps > 10000 ||
		c.MaxSwapInputBps <= 0 || c.MaxSwapInputBps > 10000 {
		return errors.New("invalid swap limits")
	}
	return nil
}
