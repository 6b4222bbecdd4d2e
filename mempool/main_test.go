// (c) 2019-2020, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mempool

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain uses goleak to verify tests in this package do not leak
// goroutines. The mempool spawns none of its own, so no ignores are needed.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
