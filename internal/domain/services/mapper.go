package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/athebyme/gomarket-platform/itemsync-service/internal/domain/models"
)

// ItemMapper преобразует исходную запись хранилища в каноническую модель товара.
// Маппинг детерминирован и тотален: одна и та же запись всегда дает один и тот же
// результат, все нарушенные правила собираются в один список без раннего выхода.
type ItemMapper struct {
	barcodeCutover    time.Time
	apparelCategories []string // в нижнем регистре
}

// NewItemMapper создает маппер с бизнес-константами из конфигурации
func NewItemMapper(barcodeCutover time.Time, apparelCategories []string) *ItemMapper {
	lowered := make([]string, 0, len(apparelCategories))
	for _, c := range apparelCategories {
		lowered = append(lowered, strings.ToLower(strings.TrimSpace(c)))
	}
	return &ItemMapper{
		barcodeCutover:    barcodeCutover,
		apparelCategories: lowered,
	}
}

// Map производит ровно один MappingOutcome на запись.
// Исходная запись не изменяется; при ошибках валидации каноническая модель
// не создается даже частично.
func (m *ItemMapper) Map(raw *models.RawSourceItem) *models.MappingOutcome {
	outcome := &models.MappingOutcome{Sku: raw.Sku}

	var errs []string

	// Обязательные поля проверяются все разом
	if strings.TrimSpace(raw.Sku) == "" {
		errs = append(errs, "обязательное поле Sku отсутствует")
	}
	if strings.TrimSpace(raw.Name) == "" {
		errs = append(errs, "обязательное поле Name отсутствует")
	}
	if strings.TrimSpace(raw.CountryOfOriginCode) == "" {
		errs = append(errs, "обязательное поле CountryOfOriginCode отсутствует")
	}

	// Тарифные коды требуют статью затрат LandedCost
	if raw.HasTradeCodes() && !raw.HasLandedCost() {
		errs = append(errs, fmt.Sprintf(
			"запись %s содержит тарифные коды, но не содержит статью затрат LandedCost", raw.Sku))
	}

	// Одежда и текстиль требуют состав ткани
	if m.isApparel(raw.Categories) && !hasFabricAttributes(raw.Attributes) {
		errs = append(errs, fmt.Sprintf(
			"категория товара %s требует атрибут FabricContent или FabricComposition", raw.Sku))
	}

	primaryBarcode, barcodeSkipped := m.selectBarcode(raw)

	var skipped []string
	if barcodeSkipped {
		skipped = append(skipped, "primary_barcode")
	}
	if raw.Description == "" {
		skipped = append(skipped, "description")
	}
	if len(raw.Prices) == 0 {
		skipped = append(skipped, "prices")
	}
	if len(raw.Costs) == 0 {
		skipped = append(skipped, "costs")
	}
	if len(raw.Categories) == 0 {
		skipped = append(skipped, "categories")
	}
	if len(raw.Attributes) == 0 {
		skipped = append(skipped, "attributes")
	}
	if len(raw.Links) == 0 {
		skipped = append(skipped, "links")
	}
	if len(raw.Images) == 0 {
		skipped = append(skipped, "images")
	}

	if len(errs) > 0 {
		outcome.Errors = errs
		return outcome
	}

	item := models.NewUnifiedItem(raw.Sku, raw.Name, raw.CountryOfOriginCode)
	item.Description = raw.Description
	item.PrimaryBarcode = primaryBarcode
	if raw.SecondaryBarcode != "" && raw.SecondaryBarcode != primaryBarcode {
		item.AlternateBarcodes = append(item.AlternateBarcodes, raw.SecondaryBarcode)
	}
	item.HtsCode = raw.HtsCode
	item.CommodityCode = raw.CommodityCode
	item.ChinaHtsCode = raw.ChinaHtsCode
	item.Prices = append(item.Prices, raw.Prices...)
	item.Costs = append(item.Costs, raw.Costs...)
	item.Categories = append(item.Categories, raw.Categories...)
	for k, v := range raw.Attributes {
		item.Attributes[k] = v
	}
	item.Links = append(item.Links, raw.Links...)
	item.Images = append(item.Images, raw.Images...)
	if raw.SourceSystem != "" {
		item.SystemTimestamps = append(item.SystemTimestamps, models.SystemTimestamp{
			System:    raw.SourceSystem,
			CreatedAt: raw.CreatedAt,
			UpdatedAt: raw.UpdatedAt,
		})
	}

	outcome.Item = item
	outcome.SkippedFields = skipped
	return outcome
}

// selectBarcode применяет правило переключения штрихкодов.
// До даты переключения при пустом основном штрихкоде подставляется запасной;
// после переключения подстановки нет, отсутствие штрихкода лишь помечается
// пропущенным полем.
func (m *ItemMapper) selectBarcode(raw *models.RawSourceItem) (barcode string, skipped bool) {
	if raw.PrimaryBarcode != "" {
		return raw.PrimaryBarcode, false
	}
	if raw.CreatedAt.Before(m.barcodeCutover) && raw.SecondaryBarcode != "" {
		return raw.SecondaryBarcode, false
	}
	return "", true
}

func (m *ItemMapper) isApparel(categories []string) bool {
	for _, category := range categories {
		lowered := strings.ToLower(category)
		for _, marker := range m.apparelCategories {
			if marker != "" && strings.Contains(lowered, marker) {
				return true
			}
		}
	}
	return false
}

func hasFabricAttributes(attrs map[string]string) bool {
	return attrs[models.AttrFabricContent] != "" || attrs[models.AttrFabricComposition] != ""
}
