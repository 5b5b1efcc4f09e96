package sale

import (
	"github.com/shopspring/decimal"
)

type Package struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
}

type Category struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Packages []Package `json:"packages"`
}

// Detail stored for plain airtime recharges
const RechargeDetail = "Saldo Regular"

var catalog = []Category{
	{ID: "todo_incluido", Label: "TODO INCLUIDO", Packages: []Package{
		{ID: "sb_1d", Name: "Superpack 1 día", Price: decimal.NewFromInt(25)},
		{ID: "sb_3d", Name: "Superpack 3 días", Price: decimal.NewFromInt(50)},
		{ID: "sb_7d", Name: "Superpack 7 días", Price: decimal.NewFromInt(110)},
	}},
	{ID: "internet", Label: "INTERNET", Packages: []Package{
		{ID: "int_1d", Name: "Internet 1 día", Price: decimal.NewFromInt(20)},
		{ID: "int_5gb", Name: "5GB - 3 días", Price: decimal.NewFromInt(45)},
	}},
	{ID: "minutos", Label: "MINUTOS", Packages: []Package{
		{ID: "voice_unlim", Name: "Llamadas Ilimitadas", Price: decimal.NewFromInt(40)},
	}},
	{ID: "redes_sociales", Label: "REDES SOCIALES", Packages: []Package{
		{ID: "fb_unlim", Name: "Facebook Ilimitado", Price: decimal.NewFromInt(15)},
	}},
}

var packagesByID = func() map[string]Package {
	m := make(map[string]Package)
	for _, c := range catalog {
		for _, p := range c.Packages {
			p.Category = c.ID
			m[p.ID] = p
		}
	}
	return m
}()

// Catalog grouped by category, in display order. The result is a copy
func Catalog() []Category {
	out := make([]Category, 0, len(catalog))
	for _, c := range catalog {
		packages := make([]Package, 0, len(c.Packages))
		for _, p := range c.Packages {
			p.Category = c.ID
			packages = append(packages, p)
		}
		out = append(out, Category{ID: c.ID, Label: c.Label, Packages: packages})
	}
	return out
}

func FindPackage(id string) (Package, bool) {
	p, ok := packagesByID[id]
	return p, ok
}
