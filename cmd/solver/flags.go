package main

import (
	"github.com/aman-zulfiqar/escrow-solver/internal/cache"
	"github.com/aman-zulfiqar/escrow-solver/internal/ledger"
	"github.com/urfave/cli/v2"
)

const (
	scriptHashFlagName = "script-hash"
	networkFlagName    = "network"
	redisAddrFlagName  = "redis-addr"
	channelFlagName    = "channel"
	kindFlagName       = "kind"
	envFileFlagName    = "env-file"
)

var (
	envFileFlag = &cli.StringFlag{
		Name:  envFileFlagName,
		Usage: "path of a .env file to load before reading the environment",
	}
	scriptHashFlag = &cli.StringFlag{
		Name:     scriptHashFlagName,
		Usage:    "hex escrow validator hash (28 bytes)",
		EnvVars:  []string{"ESCROW_SCRIPT_HASH"},
		Required: true,
	}
	networkFlag = &cli.StringFlag{
		Name:    networkFlagName,
		Usage:   "mainnet or testnet",
		Value:   string(ledger.Testnet),
		EnvVars: []string{"NETWORK"},
	}
	redisAddrFlag = &cli.StringFlag{
		Name:     redisAddrFlagName,
		Usage:    "redis address the solver publishes events to",
		EnvVars:  []string{"REDIS_ADDR"},
		Required: true,
	}
	channelFlag = &cli.StringFlag{
		Name:  channelFlagName,
		Usage: "channel to subscribe to",
		Value: cache.ChannelAll,
	}
	kindFlag = &cli.StringFlag{
		Name:  kindFlagName,
		Usage: "only follow one event kind (settlement, reclaim, cancel, interval)",
	}
)
