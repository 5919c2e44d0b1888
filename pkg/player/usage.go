// SPDX-License-Identifier: GPL-2.0-or-later

package player

import (
	"errors"
	"sync/atomic"
)

// ErrExclusive another player holds the usage token.
var ErrExclusive = errors.New("another player is in use")

// Usage is shared by players that must not be open at the same time.
type Usage struct {
	owned atomic.Bool
}

// NewUsage returns an unowned token.
func NewUsage() *Usage {
	return &Usage{}
}

// InUse returns true while a player holds the token.
func (u *Usage) InUse() bool {
	return u.owned.Load()
}

func (u *Usage) acquire() bool {
	return u.owned.CompareAndSwap(false, true)
}

func (u *Usage) release() {
	u.owned.Store(false)
}
