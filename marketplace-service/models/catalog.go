package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemKind selects which catalog an item lives in.
type ItemKind string

const (
	KindProduct      ItemKind = "product"
	KindWasteProduct ItemKind = "waste_product"
)

func (k ItemKind) Valid() bool {
	return k == KindProduct || k == KindWasteProduct
}

func KindOf(isWasteProduct bool) ItemKind {
	if isWasteProduct {
		return KindWasteProduct
	}
	return KindProduct
}

type ProductCategory string

const (
	CategoryGrains      ProductCategory = "grains"
	CategoryVegetables  ProductCategory = "vegetables"
	CategoryFruits      ProductCategory = "fruits"
	CategoryDairy       ProductCategory = "dairy"
	CategoryLivestock   ProductCategory = "livestock"
	CategorySeeds       ProductCategory = "seeds"
	CategoryFertilizers ProductCategory = "fertilizers"
	CategoryEquipment   ProductCategory = "equipment"
	CategoryOther       ProductCategory = "other"
)

func (c ProductCategory) Valid() bool {
	switch c {
	case CategoryGrains, CategoryVegetables, CategoryFruits, CategoryDairy, CategoryLivestock,
		CategorySeeds, CategoryFertilizers, CategoryEquipment, CategoryOther:
		return true
	}
	return false
}

type WasteType string

const (
	WasteCropResidue         WasteType = "crop_residue"
	WasteAnimal              WasteType = "animal_waste"
	WasteFood                WasteType = "food_waste"
	WasteIndustrialByproduct WasteType = "industrial_byproduct"
	WasteOrganicCompost      WasteType = "organic_compost"
	WasteOther               WasteType = "other"
)

func (t WasteType) Valid() bool {
	switch t {
	case WasteCropResidue, WasteAnimal, WasteFood, WasteIndustrialByproduct, WasteOrganicCompost, WasteOther:
		return true
	}
	return false
}

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    ProductCategory `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Unit        string          `json:"unit"`
	SellerID    string          `json:"sellerId"`
	SalesCount  int             `json:"salesCount"`
	Image       string          `json:"image,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type WasteProduct struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	Type            WasteType         `json:"type"`
	Quantity        decimal.Decimal   `json:"quantity"`
	Unit            string            `json:"unit"`
	Price           decimal.Decimal   `json:"price"`
	Location        string            `json:"location"`
	SellerID        string            `json:"sellerId"`
	PossibleUses    []string          `json:"possibleUses,omitempty"`
	NutrientContent map[string]string `json:"nutrientContent,omitempty"`
	SalesCount      int               `json:"salesCount"`
	Image           string            `json:"image,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// CatalogItem is the kind-independent view of a Product or WasteProduct that
// carts and orders work against.
type CatalogItem struct {
	Kind           ItemKind        `json:"kind"`
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	Available      decimal.Decimal `json:"availableQuantity"`
	Unit           string          `json:"unit"`
	SellerID       string          `json:"sellerId"`
	Classification string          `json:"classification"`
	Image          string          `json:"image,omitempty"`
}

// MaxUnits is the largest whole quantity that can be taken from the item.
func (c *CatalogItem) MaxUnits() int {
	if c.Available.Sign() <= 0 {
		return 0
	}
	return int(c.Available.Floor().IntPart())
}

func (p *Product) CatalogItem() CatalogItem {
	return CatalogItem{
		Kind:           KindProduct,
		ID:             p.ID,
		Name:           p.Name,
		Price:          p.Price,
		Available:      decimal.NewFromInt(int64(p.Stock)),
		Unit:           p.Unit,
		SellerID:       p.SellerID,
		Classification: string(p.Category),
		Image:          p.Image,
	}
}

func (w *WasteProduct) CatalogItem() CatalogItem {
	return CatalogItem{
		Kind:           KindWasteProduct,
		ID:             w.ID,
		Name:           w.Name,
		Price:          w.Price,
		Available:      w.Quantity,
		Unit:           w.Unit,
		SellerID:       w.SellerID,
		Classification: string(w.Type),
		Image:          w.Image,
	}
}

type CatalogFilter struct {
	SellerID       string
	Classification string
	Limit          int
	Offset         int
}
