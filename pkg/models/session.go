package models

import (
	"strings"

	"julianmorley.ca/con-plar/topup-storefront/pkg/global"
)

// Session mirrors the server's view of the logged-in user. It is not authoritative.
type Session struct {
	UserID  FlexibleID `json:"user_id"`
	Email   string     `json:"user_email"`
	Name    string     `json:"user_name"`
	IsAdmin bool       `json:"es_admin"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

var loginMessages = global.FieldMessages{
	"email.required":    "El correo es obligatorio",
	"email.email":       "Ingresa un correo válido",
	"password.required": "La contraseña es obligatoria",
}

func (r LoginRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	return global.ValidateStruct(r, loginMessages)
}

type RegisterRequest struct {
	Nombre   string `json:"nombre" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Telefono string `json:"telefono" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

var registerMessages = global.FieldMessages{
	"nombre.required":   "El nombre es obligatorio",
	"email.required":    "El correo es obligatorio",
	"email.email":       "Ingresa un correo válido",
	"telefono.required": "El teléfono es obligatorio",
	"password.required": "La contraseña es obligatoria",
	"password.min":      "La contraseña debe tener al menos 6 caracteres",
}

func (r RegisterRequest) Validate() error {
	r.Nombre = strings.TrimSpace(r.Nombre)
	r.Email = strings.TrimSpace(r.Email)
	r.Telefono = strings.TrimSpace(r.Telefono)
	return global.ValidateStruct(r, registerMessages)
}
