package models

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Category groups the catalog. Games need the buyer's in-game id on every line.
type Category string

const (
	CategoryGames     Category = "juegos"
	CategoryGiftCards Category = "gift-cards"
	CategoryOther     Category = "other"
)

func (c *Category) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = ParseCategory(raw)
	return nil
}

func ParseCategory(raw string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case CategoryGames:
		return CategoryGames
	case CategoryGiftCards:
		return CategoryGiftCards
	default:
		return CategoryOther
	}
}

func (c Category) RequiresPlayerID() bool {
	return c == CategoryGames
}

// FlexibleID accepts an id sent either as a JSON string or a JSON number.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexibleID(n.String())
	return nil
}

// Package is a purchasable variant of a product. Prices are always USD.
type Package struct {
	ID     FlexibleID      `json:"id"`
	Nombre string          `json:"nombre"`
	Precio decimal.Decimal `json:"precio"`
}

// Product is immutable once fetched.
type Product struct {
	ID          int       `json:"id"`
	Nombre      string    `json:"nombre"`
	Descripcion string    `json:"descripcion"`
	Categoria   Category  `json:"categoria"`
	Imagen      string    `json:"imagen"`
	Etiquetas   string    `json:"etiquetas"`
	Paquetes    []Package `json:"paquetes"`
}

// Tags splits the comma-separated etiquetas field.
func (p *Product) Tags() []string {
	var tags []string
	for _, tag := range strings.Split(p.Etiquetas, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func (p *Product) FindPackage(id string) *Package {
	for i := range p.Paquetes {
		if string(p.Paquetes[i].ID) == id {
			return &p.Paquetes[i]
		}
	}
	return nil
}

// MinPrice is the cheapest package price, used for "from" prices on catalog cards.
func (p *Product) MinPrice() (decimal.Decimal, bool) {
	if len(p.Paquetes) == 0 {
		return decimal.Zero, false
	}
	minPrice := p.Paquetes[0].Precio
	for _, pkg := range p.Paquetes[1:] {
		if pkg.Precio.LessThan(minPrice) {
			minPrice = pkg.Precio
		}
	}
	return minPrice, true
}

// Matches reports whether the product belongs to category (empty matches all)
// and contains query in its name or tags.
func (p *Product) Matches(category Category, query string) bool {
	if category != "" && p.Categoria != category {
		return false
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(p.Nombre), query) {
		return true
	}
	for _, tag := range p.Tags() {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}
