package main

import (
	"github.com/hxuan190/amm-engine/internal/amm"
	"github.com/hxuan190/amm-engine/internal/common"
	"github.com/hxuan190/amm-engine/internal/config"
	"github.com/hxuan190/amm-engine/internal/http"

	gocommon "github.com/andrew-solarstorm/go-packages/common"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"
)

// @title AMM Engine API
// @version 1.0
// @description Read-only API over a constant-product automated market maker.
// @description
// @description ## - Features
// @description - **Pairs**: Reserves, spot prices, share supply and cumulative price accumulators
// @description - **TWAP**: Time-weighted average prices from sampled accumulators
// @description - **Quotes**: Exact-in and exact-out pricing along any multi-hop path
// @description
// @description ## - Usage Tips
// @description - Amounts are integers in base units
// @description - Every hop charges a 0.3% fee on its input
// @description - Exact-out quotes round each hop's input up, exact-in quotes round outputs down
// @description - Default slippage is 50 bps (0.5%)
// @description - Rate limit is per client IP and configurable (default 10 requests/second, burst 20)
// @BasePath /
// @schemes http https
// @tag.name pairs
// @tag.description Pair state and time-weighted average prices
// @tag.name registry
// @tag.description Protocol fee and pause configuration
// @tag.name quote
// @tag.description Multi-hop swap quotes with price impact analysis

func main() {
	// load env; a missing .env is fine when the environment is set directly
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file loaded")
	}
	common.ConfigureLogging(gocommon.GetEnvOrDefault("LOG_LEVEL", "INFO"), gocommon.GetEnvOrDefault("ENV", "dev"))

	// di container config
	conf := container.NewConf(
		&config.GeneralConfig{},
		&config.AMMConfig{},
	)

	// di container
	dic, err := container.New(
		// config
		conf,

		// services
		&amm.Service{},

		&http.HTTPService{},
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to create di container")
		return
	}

	// Run waits for SIGINT/SIGTERM
	if err := dic.Run(); err != nil {
		log.Error().Err(err).Msg("failed to run di container")
		return
	}

	// Run doesn't call Stop(), we must do it manually
	log.Info().Msg("Shutting down services...")
	if err := dic.Stop(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("Shutdown complete")
}
