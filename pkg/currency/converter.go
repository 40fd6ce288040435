// Package currency renders USD amounts in the shopper's chosen display currency.
package currency

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

type Mode string

const (
	USD   Mode = "USD"
	Local Mode = "LOCAL"
)

const LocalPrefix = "Bs. "

// DefaultFallbackRate is used when neither the server nor history provide a rate.
var DefaultFallbackRate = decimal.NewFromFloat(142.00)

func ParseMode(raw string) (Mode, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(USD):
		return USD, true
	case string(Local), "VES", "BS":
		return Local, true
	}
	return "", false
}

// Converter is the single source of truth for price display.
type Converter struct {
	mu        sync.RWMutex
	fallback  decimal.Decimal
	lastKnown decimal.Decimal
}

func NewConverter(fallback decimal.Decimal) *Converter {
	if !fallback.IsPositive() {
		fallback = DefaultFallbackRate
	}
	return &Converter{fallback: fallback}
}

// Remember records a server-provided rate as the last known global rate.
func (c *Converter) Remember(rate decimal.Decimal) {
	if !rate.IsPositive() {
		return
	}
	c.mu.Lock()
	c.lastKnown = rate
	c.mu.Unlock()
}

func (c *Converter) LastKnown() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastKnown
}

// Resolve picks the configuration rate, then the last known rate, then the fallback.
func (c *Converter) Resolve(configRate decimal.Decimal) decimal.Decimal {
	if configRate.IsPositive() {
		return configRate
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastKnown.IsPositive() {
		return c.lastKnown
	}
	return c.fallback
}

// Format renders amountUSD for mode using an already resolved rate.
func Format(amountUSD decimal.Decimal, mode Mode, rate decimal.Decimal) string {
	if mode == Local {
		return LocalPrefix + amountUSD.Mul(rate).StringFixed(2)
	}
	return "$" + amountUSD.StringFixed(2)
}

// Display resolves the rate from configRate and formats amountUSD.
func (c *Converter) Display(amountUSD decimal.Decimal, mode Mode, configRate decimal.Decimal) string {
	return Format(amountUSD, mode, c.Resolve(configRate))
}

func (m Mode) String() string {
	return string(m)
}

func (m Mode) Label() string {
	if m == Local {
		return "Bs."
	}
	return fmt.Sprintf("%s $", USD)
}
