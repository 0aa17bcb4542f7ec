package models

// PriceQuote одна запись снимка цен из внешнего источника.
// Цена хранится строкой в том виде, в котором её отдал источник.
type PriceQuote struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}
