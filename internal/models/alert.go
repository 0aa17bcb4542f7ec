package models

// AlertMessage сообщение о сработавшей подписке, которое движок
// публикует в брокер, а сервис отправки доставляет получателю.
type AlertMessage struct {
	CycleID        string `json:"cycle_id"`
	SubscriptionID int64  `json:"subscription_id"`
	UserID         int64  `json:"user_id"`
	Recipient      string `json:"recipient"`
	Symbol         string `json:"symbol"`
	Price          string `json:"price"`
	Text           string `json:"text"`
}
