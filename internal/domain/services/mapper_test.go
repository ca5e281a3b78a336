package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athebyme/gomarket-platform/itemsync-service/internal/domain/models"
)

var testCutover = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestMapper() *ItemMapper {
	return NewItemMapper(testCutover, []string{"apparel", "clothing", "textile"})
}

func validRawItem(sku string) *models.RawSourceItem {
	return &models.RawSourceItem{
		Sku:                 sku,
		Name:                "Тестовый товар",
		PrimaryBarcode:      "4600000000001",
		CountryOfOriginCode: "RU",
		Description:         "Описание",
		Prices:              []models.Price{{PriceList: "retail", Currency: "RUB", Amount: 990}},
		Costs:               []models.Cost{{Kind: models.CostKindLanded, Currency: "RUB", Amount: 500}},
		Categories:          []string{"electronics"},
		Attributes:          map[string]string{"color": "black"},
		Links:               []models.Link{{Type: "site", URL: "https://example.com"}},
		Images:              []string{"https://example.com/1.jpg"},
		SourceSystem:        "warehouse",
		CreatedAt:           time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:           time.Date(2023, 3, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestMap_ValidItem(t *testing.T) {
	m := newTestMapper()

	outcome := m.Map(validRawItem("TEST-001"))

	require.True(t, outcome.Success())
	require.NotNil(t, outcome.Item)
	assert.Equal(t, "TEST-001", outcome.Item.Sku)
	assert.Equal(t, "4600000000001", outcome.Item.PrimaryBarcode)
	assert.Empty(t, outcome.Errors)
	assert.Empty(t, outcome.SkippedFields)
}

func TestMap_MissingRequiredFieldsAccumulated(t *testing.T) {
	m := newTestMapper()

	raw := validRawItem("TEST-002")
	raw.Name = ""
	raw.CountryOfOriginCode = ""

	outcome := m.Map(raw)

	require.False(t, outcome.Success())
	assert.Nil(t, outcome.Item)
	require.Len(t, outcome.Errors, 2)
	assert.Contains(t, outcome.Errors[0], "Name")
	assert.Contains(t, outcome.Errors[1], "CountryOfOriginCode")
}

func TestMap_CountryAndLandedCostBothReported(t *testing.T) {
	m := newTestMapper()

	raw := validRawItem("TEST-003")
	raw.CountryOfOriginCode = ""
	raw.HtsCode = "8517.12"
	raw.Costs = nil

	outcome := m.Map(raw)

	require.False(t, outcome.Success())
	require.Len(t, outcome.Errors, 2)

	joined := outcome.Errors[0] + " " + outcome.Errors[1]
	assert.Contains(t, joined, "CountryOfOriginCode")
	assert.Contains(t, joined, "LandedCost")
}

func TestMap_TradeCodesRequireLandedCost(t *testing.T) {
	m := newTestMapper()

	raw := validRawItem("NO-LANDED-COST")
	raw.CommodityCode = "85171200"
	raw.Costs = []models.Cost{{Kind: models.CostKindFreight, Currency: "RUB", Amount: 100}}

	outcome := m.Map(raw)

	require.False(t, outcome.Success())
	require.Len(t, outcome.Errors, 1)
	assert.Contains(t, outcome.Errors[0], "LandedCost")
}

func TestMap_ApparelRequiresFabricAttributes(t *testing.T) {
	m := newTestMapper()

	raw := validRawItem("SHIRT-001")
	raw.Categories = []string{"Apparel/Shirts"}
	raw.Attributes = map[string]string{"size": "M"}

	outcome := m.Map(raw)

	require.False(t, outcome.Success())
	require.Len(t, outcome.Errors, 1)
	assert.Contains(t, outcome.Errors[0], "FabricContent")
	assert.Contains(t, outcome.Errors[0], "FabricComposition")
}

func TestMap_ApparelWithFabricContentPasses(t *testing.T) {
	m := newTestMapper()

	raw := validRawItem("SHIRT-002")
	raw.Categories = []string{"Clothing/Tops"}
	raw.Attributes = map[string]string{models.AttrFabricContent: "100% cotton"}

	outcome := m.Map(raw)
	assert.True(t, outcome.Success())
}

func TestMap_BarcodeFallbackBeforeCutover(t *testing.T) {
	m := newTestMapper()

	raw := validRawItem("OLD-001")
	raw.PrimaryBarcode = ""
	raw.SecondaryBarcode = "4600000000002"
	raw.CreatedAt = testCutover.AddDate(-1, 0, 0)

	outcome := m.Map(raw)

	require.True(t, outcome.Success())
	assert.Equal(t, "4600000000002", outcome.Item.PrimaryBarcode)
	assert.Empty(t, outcome.Item.AlternateBarcodes)
	assert.NotContains(t, outcome.SkippedFields, "primary_barcode")
}

func TestMap_NoBarcodeFallbackAfterCutover(t *testing.T) {
	m := newTestMapper()

	raw := validRawItem("NEW-001")
	raw.PrimaryBarcode = ""
	raw.SecondaryBarcode = "4600000000002"
	raw.CreatedAt = testCutover.AddDate(1, 0, 0)

	outcome := m.Map(raw)

	// После переключения отсутствие штрихкода не ошибка, а пропущенное поле
	require.True(t, outcome.Success())
	assert.Empty(t, outcome.Item.PrimaryBarcode)
	assert.Contains(t, outcome.SkippedFields, "primary_barcode")
	assert.Equal(t, []string{"4600000000002"}, outcome.Item.AlternateBarcodes)
}

func TestMap_OptionalAbsencesAreSkippedFields(t *testing.T) {
	m := newTestMapper()

	raw := &models.RawSourceItem{
		Sku:                 "BARE-001",
		Name:                "Минимальный товар",
		PrimaryBarcode:      "4600000000003",
		CountryOfOriginCode: "CN",
		CreatedAt:           time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	outcome := m.Map(raw)

	require.True(t, outcome.Success())
	assert.ElementsMatch(t, outcome.SkippedFields,
		[]string{"description", "prices", "costs", "categories", "attributes", "links", "images"})
}

func TestMap_Deterministic(t *testing.T) {
	m := newTestMapper()

	raw := validRawItem("TEST-004")
	raw.CountryOfOriginCode = ""
	raw.HtsCode = "8517.12"
	raw.Costs = nil

	first := m.Map(raw)
	second := m.Map(raw)

	assert.Equal(t, first, second)
}

func TestMap_ListsNeverNil(t *testing.T) {
	m := newTestMapper()

	raw := &models.RawSourceItem{
		Sku:                 "BARE-002",
		Name:                "Товар",
		PrimaryBarcode:      "4600000000004",
		CountryOfOriginCode: "RU",
	}

	outcome := m.Map(raw)

	require.True(t, outcome.Success())
	item := outcome.Item
	assert.NotNil(t, item.AlternateBarcodes)
	assert.NotNil(t, item.Prices)
	assert.NotNil(t, item.Costs)
	assert.NotNil(t, item.Categories)
	assert.NotNil(t, item.Attributes)
	assert.NotNil(t, item.Links)
	assert.NotNil(t, item.Images)
	assert.NotNil(t, item.SystemTimestamps)
}
