package models

import "time"

type Notification struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	NotificationReference string     `gorm:"uniqueIndex;not null" json:"notification_reference"`
	Title                 string     `json:"title"`
	Body                  string     `json:"body"`
	To                    string     `gorm:"column:to_email" json:"to"`
	From                  string     `gorm:"column:from_email" json:"from"`
	Icon                  string     `json:"icon"`
	Link                  string     `json:"link"`
	SentOn                time.Time  `json:"sent_on"`
	OpenedOn              *time.Time `json:"opened_on"`
}
