package models

import (
	"context"
	"time"

	"bitbucket.org/greenops/fieldops_backend/utils"
	"gorm.io/gorm"
)

type History struct {
	ID            int       `gorm:"primary_key" json:"id"`
	ClientId      string    `gorm:"index;size:36;not null" json:"client_id"`
	SiteId        string    `gorm:"index;size:36" json:"site_id"`
	ActionType    string    `gorm:"size:10;not null" json:"action_type"`
	Before        string    `gorm:"type:text" json:"before"`
	After         string    `gorm:"type:text" json:"after"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	ReferenceID   string    `gorm:"index;size:36" json:"reference_id"`
	ReferenceType string    `gorm:"size:64" json:"reference_type"`
	FieldId       string    `gorm:"size:64" json:"field_id"`
	CorrelationId string    `gorm:"size:64" json:"correlation_id"`
	UserId        int       `gorm:"index" json:"user_id"`
	UserName      string    `gorm:"size:100" json:"user_name"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// newHistory builds a history row. Client, user and correlation id come
// from ctx; the client id of the site is used when ctx carries none.
func newHistory(ctx context.Context,
	site *Site,
	actionType string,
	referenceId string,
	referenceType string,
	fieldId string,
	before interface{},
	after interface{},
	description string) History {

	b, _ := utils.MarshalToJSON(before)
	a, _ := utils.MarshalToJSON(after)

	clientId, ok := utils.GetClientIdFromContext(ctx)
	if !ok || clientId == "" {
		clientId = site.ClientId
	}
	userId, _ := utils.GetUserIdFromContext(ctx)
	userName, _ := utils.GetUserNameFromContext(ctx)
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	return History{
		ClientId:      clientId,
		SiteId:        site.ID,
		ActionType:    actionType,
		Before:        b,
		After:         a,
		Description:   description,
		ReferenceID:   referenceId,
		ReferenceType: referenceType,
		FieldId:       fieldId,
		CorrelationId: correlationId,
		UserId:        userId,
		UserName:      userName,
	}
}

func createHistory(tx *gorm.DB,
	site *Site,
	actionType string,
	referenceId string,
	referenceType string,
	fieldId string,
	before interface{},
	after interface{},
	description string) error {

	ctx := tx.Statement.Context
	history := newHistory(ctx, site, actionType, referenceId, referenceType, fieldId, before, after, description)
	return tx.Create(&history).Error
}
