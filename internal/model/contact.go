package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/schema"
)

// Contact is one tracked LinkedIn profile belonging to one owner.
type Contact struct {
	ID          string        `json:"id" gorm:"primaryKey;type:text"`
	OwnerID     string        `json:"owner_id" gorm:"column:owner_id;type:text;not null;uniqueIndex:idx_contacts_owner_url,priority:1"`
	LinkedinURL string        `json:"linkedin_url" gorm:"column:linkedin_url;type:text;not null;uniqueIndex:idx_contacts_owner_url,priority:2;index:idx_contacts_linkedin_url"`
	Name        string        `json:"name" gorm:"type:text;not null"`
	Status      ContactStatus `json:"status" gorm:"type:text;not null;default:Pending"`

	Company      *string `json:"company" gorm:"type:text"`
	Role         *string `json:"role" gorm:"type:text"`
	Location     *string `json:"location" gorm:"type:text"`
	ProfileImage *string `json:"profile_image" gorm:"type:text"`
	Email        *string `json:"email" gorm:"type:text"`
	Phone        *string `json:"phone" gorm:"type:text"`

	ConnectionSentAt *time.Time `json:"connection_sent_at"`
	ConnectedAt      *time.Time `json:"connected_at"`
	LastMessagedAt   *time.Time `json:"last_messaged_at"`
	LastRepliedAt    *time.Time `json:"last_replied_at"`
	ViewedProfileAt  *time.Time `json:"viewed_profile_at"`

	NextFollowup     *datatypes.Date `json:"next_followup" gorm:"type:date;index"`
	Notes            *string         `json:"notes" gorm:"type:text"`
	AutoFollowupDays int             `json:"auto_followup_days" gorm:"not null;default:2"`

	LastEvent datatypes.JSON `json:"last_event,omitempty" gorm:"type:jsonb;column:last_event"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the Contact model, respecting the Namer.
func (Contact) TableName(namer schema.Namer) string {
	return namer.TableName("contacts")
}

// ContactUpsertColumns are the columns overwritten when a save lands on an
// existing (owner_id, linkedin_url) row. id, owner_id, created_at, notes and
// auto_followup_days are left alone.
func ContactUpsertColumns() []string {
	return []string{
		"name",
		"status",
		"company",
		"role",
		"location",
		"profile_image",
		"email",
		"phone",
		"connection_sent_at",
		"connected_at",
		"last_messaged_at",
		"last_replied_at",
		"viewed_profile_at",
		"next_followup",
		"last_event",
		"updated_at",
	}
}

// FollowupDate converts a calendar day into the stored follow-up representation.
func FollowupDate(day time.Time) *datatypes.Date {
	y, m, d := day.Date()
	date := datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
	return &date
}
