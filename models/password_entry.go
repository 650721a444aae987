package models

import "time"

// TimestampLayout is the ISO-8601 form used for every timestamp the API emits.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// PasswordEntry is one stored credential. ID and CreatedAt never change after creation.
type PasswordEntry struct {
	ID        string `json:"id"`
	Service   string `json:"service"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	CreatedAt string `json:"createdAt"`
}

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
