package models

import (
	"time"
)

// Виды стоимости в списке затрат товара
const (
	CostKindLanded   = "LandedCost"
	CostKindFreight  = "Freight"
	CostKindSupplier = "Supplier"
)

// Ключи атрибутов состава ткани
const (
	AttrFabricContent     = "FabricContent"
	AttrFabricComposition = "FabricComposition"
)

// RawSourceItem представляет исходную запись товара из аналитического хранилища.
// Запись принадлежит хранилищу и доступна ядру только на чтение.
type RawSourceItem struct {
	Sku                 string            `json:"sku"`
	Name                string            `json:"name"`
	Description         string            `json:"description,omitempty"`
	PrimaryBarcode      string            `json:"primary_barcode,omitempty"`
	SecondaryBarcode    string            `json:"secondary_barcode,omitempty"`
	HtsCode             string            `json:"hts_code,omitempty"`
	CommodityCode       string            `json:"commodity_code,omitempty"`
	ChinaHtsCode        string            `json:"china_hts_code,omitempty"`
	CountryOfOriginCode string            `json:"country_of_origin_code,omitempty"`
	Prices              []Price           `json:"prices,omitempty"`
	Costs               []Cost            `json:"costs,omitempty"`
	Categories          []string          `json:"categories,omitempty"`
	Attributes          map[string]string `json:"attributes,omitempty"`
	Links               []Link            `json:"links,omitempty"`
	Images              []string          `json:"images,omitempty"`
	SourceSystem        string            `json:"source_system,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// Price представляет цену товара в одном прайс-листе
type Price struct {
	PriceList string  `json:"price_list"`
	Currency  string  `json:"currency"`
	Amount    float64 `json:"amount"`
}

// Cost представляет статью затрат товара
type Cost struct {
	Kind     string  `json:"kind"` // LandedCost, Freight, Supplier
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

// Link представляет внешнюю ссылку товара
type Link struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// SystemTimestamp представляет отметки времени товара в одной исходной системе
type SystemTimestamp struct {
	System    string    `json:"system"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UnifiedItem представляет каноническую модель товара, публикуемую в очередь.
// Инвариант: Sku, Name и CountryOfOriginCode непустые; все списки
// инициализированы пустыми, а не nil, чтобы потребители были защищены от null.
// После создания маппером не изменяется.
type UnifiedItem struct {
	Sku                 string            `json:"sku"`
	Name                string            `json:"name"`
	PrimaryBarcode      string            `json:"primary_barcode,omitempty"`
	AlternateBarcodes   []string          `json:"alternate_barcodes"`
	Description         string            `json:"description,omitempty"`
	HtsCode             string            `json:"hts_code,omitempty"`
	CommodityCode       string            `json:"commodity_code,omitempty"`
	ChinaHtsCode        string            `json:"china_hts_code,omitempty"`
	CountryOfOriginCode string            `json:"country_of_origin_code"`
	Prices              []Price           `json:"prices"`
	Costs               []Cost            `json:"costs"`
	Categories          []string          `json:"categories"`
	Attributes          map[string]string `json:"attributes"`
	Links               []Link            `json:"links"`
	Images              []string          `json:"images"`
	SystemTimestamps    []SystemTimestamp `json:"system_timestamps"`
}

// NewUnifiedItem создает каноническую модель с инициализированными списками
func NewUnifiedItem(sku, name, countryOfOriginCode string) *UnifiedItem {
	return &UnifiedItem{
		Sku:                 sku,
		Name:                name,
		CountryOfOriginCode: countryOfOriginCode,
		AlternateBarcodes:   []string{},
		Prices:              []Price{},
		Costs:               []Cost{},
		Categories:          []string{},
		Attributes:          map[string]string{},
		Links:               []Link{},
		Images:              []string{},
		SystemTimestamps:    []SystemTimestamp{},
	}
}

// HasTradeCodes сообщает, заполнен ли хотя бы один тарифный код записи
func (r *RawSourceItem) HasTradeCodes() bool {
	return r.HtsCode != "" || r.CommodityCode != "" || r.ChinaHtsCode != ""
}

// HasLandedCost сообщает, есть ли в списке затрат статья LandedCost
func (r *RawSourceItem) HasLandedCost() bool {
	for _, c := range r.Costs {
		if c.Kind == CostKindLanded {
			return true
		}
	}
	return false
}
