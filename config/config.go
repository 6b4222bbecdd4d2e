// (c) 2019-2020, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads the mempool's operating parameters. The mempool
// itself takes a plain Config value; this package is only concerned with
// getting one from the environment, a file, or flags, the way the rest of
// the node does it.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the tunables the spec assigns to the mempool facade.
type Config struct {
	// EnableFeeEscalation turns on same-slot replace-by-fee. When false, any
	// (address, nonce) collision is a DuplicateNonce error.
	EnableFeeEscalation bool

	// FeeEscalationPercentage is the minimum percentage by which both tip
	// and max L2 gas price must exceed the existing transaction for a
	// replacement to be accepted.
	FeeEscalationPercentage uint8

	// TransactionTTL bounds how long an unstaged transaction may sit in the
	// pool before it is evicted as stale.
	TransactionTTL time.Duration
}

// Default returns the conservative defaults used when nothing else is
// configured: fee escalation off, one hour TTL.
func Default() Config {
	return Config{
		EnableFeeEscalation:     false,
		FeeEscalationPercentage: 10,
		TransactionTTL:          time.Hour,
	}
}

// RegisterFlags wires the config fields to a pflag.FlagSet, so a binary
// embedding the mempool can expose them on its own command line.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Bool("mempool.enable-fee-escalation", false, "allow replace-by-fee on nonce collisions")
	fs.Uint8("mempool.fee-escalation-percentage", 10, "minimum percentage bump required to replace a queued transaction")
	fs.Duration("mempool.transaction-ttl", time.Hour, "maximum time an unstaged transaction may remain in the pool")
}

// Load reads mempool.* settings from v, falling back to Default for any key
// that isn't set. v is expected to already have flags, environment, and any
// config file bound (see viper.BindPFlags / viper.SetEnvPrefix upstream).
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	if v == nil {
		return cfg, nil
	}
	if v.IsSet("mempool.enable-fee-escalation") {
		cfg.EnableFeeEscalation = v.GetBool("mempool.enable-fee-escalation")
	}
	if v.IsSet("mempool.fee-escalation-percentage") {
		pct := v.GetUint("mempool.fee-escalation-percentage")
		if pct > 255 {
			return Config{}, fmt.Errorf("mempool.fee-escalation-percentage %d out of range", pct)
		}
		cfg.FeeEscalationPercentage = uint8(pct)
	}
	if v.IsSet("mempool.transaction-ttl") {
		cfg.TransactionTTL = v.GetDuration("mempool.transaction-ttl")
	}
	return cfg, nil
}
