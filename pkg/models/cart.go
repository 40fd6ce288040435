package models

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// CartLine is one distinct cart entry. Precio is the USD unit price.
type CartLine struct {
	ID             int64           `json:"id"`
	ProductoID     int             `json:"productoId"`
	ProductoNombre string          `json:"productoNombre"`
	PaqueteNombre  string          `json:"paqueteNombre"`
	Precio         decimal.Decimal `json:"precio"`
	Cantidad       int             `json:"cantidad"`
	UsuarioID      string          `json:"usuarioId"`
	Imagen         string          `json:"imagen"`
}

// LineKey is the merge identity of a line.
type LineKey struct {
	ProductoID    int
	PaqueteNombre string
	UsuarioID     string
}

func (l *CartLine) Key() LineKey {
	return LineKey{ProductoID: l.ProductoID, PaqueteNombre: l.PaqueteNombre, UsuarioID: l.UsuarioID}
}

func (l *CartLine) Subtotal() decimal.Decimal {
	return l.Precio.Mul(decimal.NewFromInt(int64(l.Cantidad)))
}

// ParseLineID accepts ids coming from the UI as strings.
func ParseLineID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
