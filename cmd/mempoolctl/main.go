// (c) 2019-2020, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// mempoolctl is a standalone debug tool for exercising the sequencer
// mempool outside of a running node.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"

	"github.com/luxfi/seq-mempool/clock"
	"github.com/luxfi/seq-mempool/config"
	"github.com/luxfi/seq-mempool/log"
	"github.com/luxfi/seq-mempool/mempool"
	"github.com/luxfi/seq-mempool/metrics"
)

const clientIdentifier = "mempoolctl"

var app = &cli.App{
	Name:    clientIdentifier,
	Usage:   "inspect and exercise the sequencer transaction mempool",
	Version: "1.0.0",
}

func init() {
	app.Commands = []*cli.Command{
		demoCommand,
	}
	app.Before = func(ctx *cli.Context) error {
		log.SetDefault(log.NewLogger(log.NewTerminalHandler(os.Stderr, true)))
		return nil
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var demoCommand = &cli.Command{
	Name:  "demo",
	Usage: "run the gap-closure and rewind walkthrough against a fresh mempool",
	Flags: []cli.Flag{
		&cli.Uint64Flag{
			Name:  "threshold",
			Usage: "initial gas price threshold",
			Value: 1,
		},
	},
	Action: runDemo,
}

func runDemo(ctx *cli.Context) error {
	cfg := config.Default()
	clk := clock.NewMock(time.Now())
	threshold := uint256.NewInt(ctx.Uint64("threshold"))
	sink := metrics.NewPrometheus("mempoolctl", nil)
	m := mempool.New(cfg, clk, threshold, sink, nil)

	var addrA mempool.Address
	addrA[19] = 0xA

	tx5 := mempool.Transaction{
		ContractAddress: addrA,
		Nonce:           5,
		Tip:             10,
		MaxL2GasPrice:   uint256.NewInt(100),
	}
	tx5.TxHash[31] = 5
	tx6 := mempool.Transaction{
		ContractAddress: addrA,
		Nonce:           6,
		Tip:             20,
		MaxL2GasPrice:   uint256.NewInt(100),
	}
	tx6.TxHash[31] = 6

	accountState := mempool.AccountState{Address: addrA, Nonce: 5}

	if err := m.AddTx(mempool.AddTxArgs{Tx: tx5, AccountState: accountState}); err != nil {
		return err
	}
	if err := m.AddTx(mempool.AddTxArgs{Tx: tx6, AccountState: accountState}); err != nil {
		return err
	}
	fmt.Printf("ready=%d pending=%d pool=%d\n", m.PriorityQueueLen(), m.PendingQueueLen(), m.TxPoolLen())

	txs, err := m.GetTxs(2)
	if err != nil {
		return err
	}
	fmt.Printf("get_txs returned %d transactions\n", len(txs))

	m.CommitBlock(mempool.CommitBlockArgs{AddressToNonce: map[mempool.Address]mempool.Nonce{}})
	fmt.Printf("after empty commit_block, ready=%d (rewind restores nonce 5)\n", m.PriorityQueueLen())
	return nil
}
