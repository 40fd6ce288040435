package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StoreConfig is the payload of GET /config.
type StoreConfig struct {
	Rate      decimal.Decimal `json:"tasa_usd_ves"`
	PagoMovil string          `json:"pago_movil"`
	Binance   string          `json:"binance"`
	Logo      string          `json:"logo"`
	Carousel1 string          `json:"carousel1"`
	Carousel2 string          `json:"carousel2"`
	Carousel3 string          `json:"carousel3"`
}

// Carousel returns the configured slide images, skipping empty slots.
func (c *StoreConfig) Carousel() []string {
	var slides []string
	for _, s := range []string{c.Carousel1, c.Carousel2, c.Carousel3} {
		if s != "" {
			slides = append(slides, s)
		}
	}
	return slides
}

// PaymentInstructions returns the text shown for method.
func (c *StoreConfig) PaymentInstructions(method PaymentMethod) string {
	switch method {
	case PaymentPagoMovil:
		return c.PagoMovil
	case PaymentBinance:
		return c.Binance
	}
	return ""
}

// CatalogSnapshot is the cached structural catalog. Its Config.Rate is always zero.
type CatalogSnapshot struct {
	Config   StoreConfig
	Products []Product
	StoredAt time.Time
}
