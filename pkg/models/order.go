package models

import (
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentPagoMovil PaymentMethod = "pago_movil"
	PaymentBinance   PaymentMethod = "binance"
)

// OrderRequest is the body of POST /orden, one per cart line.
type OrderRequest struct {
	JuegoID        int             `json:"juego_id"`
	Paquete        string          `json:"paquete"`
	Monto          decimal.Decimal `json:"monto"`
	UsuarioEmail   string          `json:"usuario_email"`
	UsuarioID      string          `json:"usuario_id"`
	MetodoPago     PaymentMethod   `json:"metodo_pago"`
	ReferenciaPago string          `json:"referencia_pago"`
}

// NewOrderRequest builds the order for one line; Monto is precio × cantidad.
func NewOrderRequest(line CartLine, email string, method PaymentMethod, reference string) OrderRequest {
	return OrderRequest{
		JuegoID:        line.ProductoID,
		Paquete:        line.PaqueteNombre,
		Monto:          line.Subtotal(),
		UsuarioEmail:   email,
		UsuarioID:      line.UsuarioID,
		MetodoPago:     method,
		ReferenciaPago: reference,
	}
}

// PurchaseRecord is one entry of GET /usuario/historial.
type PurchaseRecord struct {
	ID         FlexibleID      `json:"id"`
	Producto   string          `json:"producto"`
	Paquete    string          `json:"paquete"`
	Monto      decimal.Decimal `json:"monto"`
	Estado     string          `json:"estado"`
	MetodoPago string          `json:"metodo_pago"`
	Referencia string          `json:"referencia_pago"`
	Fecha      string          `json:"fecha"`
}
