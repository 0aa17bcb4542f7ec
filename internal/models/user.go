// Package models содержит доменную модель пользователя системы,
// включающую данные учётной записи, хэш пароля и адрес для уведомлений.
// Структура используется в бизнес‑логике и при работе с хранилищем.
package models

// User представляет зарегистрированного пользователя системы.
type User struct {
	ID           int64  // Идентификатор пользователя
	Username     string // Имя пользователя (уникальное)
	PasswordHash string // Хэш пароля пользователя, наружу не отдаётся
	TelegramID   *int64 // Чат в Telegram для уведомлений, nil если не указан
}
