package domain

type Product struct {
	ID           int
	Name         string
	Price        int64
	InitialStock int64
}

// ProductStock is a catalog entry with its live remaining quantity.
type ProductStock struct {
	Product
	CurrentQuantity int64
}

type Catalog struct {
	products []Product
	byID     map[int]Product
}

func NewCatalog(products []Product) *Catalog {
	c := &Catalog{
		products: append([]Product(nil), products...),
		byID:     make(map[int]Product, len(products)),
	}
	for _, p := range products {
		c.byID[p.ID] = p
	}
	return c
}

func (c *Catalog) Products() []Product {
	return append([]Product(nil), c.products...)
}

func (c *Catalog) Find(id int) (Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}

func DefaultCatalog() *Catalog {
	return NewCatalog([]Product{
		{ID: 1, Name: "Suitcase 250", Price: 50, InitialStock: 4},
		{ID: 2, Name: "Suitcase 450", Price: 100, InitialStock: 10},
		{ID: 3, Name: "Suitcase 650", Price: 350, InitialStock: 2},
		{ID: 4, Name: "Suitcase 1050", Price: 550, InitialStock: 5},
	})
}
