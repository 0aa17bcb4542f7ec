package alert

import "errors"

var (
	// ErrFeedUnavailable снимок цен не получен, цикл завершается без уведомлений.
	ErrFeedUnavailable = errors.New("price feed unavailable")
	// ErrPriceParse цена совпавшей записи снимка не разбирается, подписка пропускается.
	ErrPriceParse = errors.New("unparsable feed price")
	// ErrAddressUnresolved у пользователя нет адреса для уведомлений.
	ErrAddressUnresolved = errors.New("notification address unresolved")
	// ErrSendFailed транспорт не принял уведомление.
	ErrSendFailed = errors.New("notification send failed")
)
