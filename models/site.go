package models

import (
	"context"
	"errors"
	"strings"
	"time"
	_ "time/tzdata"

	"bitbucket.org/greenops/fieldops_backend/config"
	"bitbucket.org/greenops/fieldops_backend/utils"
	"github.com/shopspring/decimal"
)

type Client struct {
	ID        string    `gorm:"primary_key;size:36" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Site is one renewable-energy plant of a client. AllowedEditDays is the
// edit window applied to every table of the site.
type Site struct {
	ID              string          `gorm:"primary_key;size:36" json:"id"`
	ClientId        string          `gorm:"index;size:36;not null" json:"client_id"`
	Name            string          `gorm:"size:100;not null" json:"name"`
	Timezone        string          `gorm:"size:64;not null" json:"timezone"`
	AllowedEditDays int             `gorm:"not null" json:"allowed_edit_days"`
	TotalModules    int64           `gorm:"not null;default:0" json:"total_modules"`
	CapacityKw      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"capacity_kw"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// EditWindow returns the site's edit policy. An unknown timezone falls back
// to the default one.
func (s *Site) EditWindow() EditWindow {
	loc, err := utils.LoadLocation(s.Timezone)
	if err != nil {
		loc, _ = utils.LoadLocation(utils.DefaultTimezone)
	}
	return EditWindow{AllowedEditDays: s.AllowedEditDays, Location: loc}
}

type NewSite struct {
	ID              string          `json:"id" validate:"omitempty,max=36"`
	ClientId        string          `json:"client_id" validate:"required,max=36"`
	Name            string          `json:"name" validate:"required,max=100"`
	Timezone        string          `json:"timezone" validate:"omitempty,timezone"`
	AllowedEditDays *int            `json:"allowed_edit_days" validate:"omitempty,min=0,max=3650"`
	TotalModules    int64           `json:"total_modules" validate:"min=0"`
	CapacityKw      decimal.Decimal `json:"capacity_kw"`
}

// NewSiteModel validates input and fills the defaults of a new site.
func NewSiteModel(input *NewSite, newId func() string) (*Site, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	site := Site{
		ID:              strings.TrimSpace(input.ID),
		ClientId:        input.ClientId,
		Name:            strings.TrimSpace(input.Name),
		Timezone:        input.Timezone,
		AllowedEditDays: utils.DereferencePtr(input.AllowedEditDays, config.DefaultAllowedEditDays()),
		TotalModules:    input.TotalModules,
		CapacityKw:      input.CapacityKw,
	}
	if site.ID == "" {
		site.ID = newId()
	}
	if site.Timezone == "" {
		site.Timezone = utils.DefaultTimezone
	}
	return &site, nil
}

var ErrNothingToUpdate = errors.New("nothing to update")

// NewSiteSettings is a partial update of a site's table settings.
type NewSiteSettings struct {
	Name            *string `json:"name" validate:"omitempty,min=1,max=100"`
	Timezone        *string `json:"timezone" validate:"omitempty,timezone"`
	AllowedEditDays *int    `json:"allowed_edit_days" validate:"omitempty,min=0,max=3650"`
	TotalModules    *int64  `json:"total_modules" validate:"omitempty,min=0"`
}

func (input *NewSiteSettings) validate() error {
	if input.Name == nil && input.Timezone == nil && input.AllowedEditDays == nil && input.TotalModules == nil {
		return ErrNothingToUpdate
	}
	return utils.ValidateStruct(input)
}

// apply copies the set fields onto site and returns the changed columns.
func (input *NewSiteSettings) apply(site *Site) map[string]interface{} {
	changes := make(map[string]interface{})
	if input.Name != nil {
		site.Name = strings.TrimSpace(*input.Name)
		changes["Name"] = site.Name
	}
	if input.Timezone != nil {
		site.Timezone = *input.Timezone
		changes["Timezone"] = site.Timezone
	}
	if input.AllowedEditDays != nil {
		site.AllowedEditDays = *input.AllowedEditDays
		changes["AllowedEditDays"] = site.AllowedEditDays
	}
	if input.TotalModules != nil {
		site.TotalModules = *input.TotalModules
		changes["TotalModules"] = site.TotalModules
	}
	return changes
}

// checkSiteScope hides sites of other clients, following the same scope
// rules as the database client guard.
func checkSiteScope(ctx context.Context, site *Site) error {
	if clientId, scoped := config.ClientScope(ctx); scoped && site.ClientId != clientId {
		return utils.ErrorRecordNotFound
	}
	return nil
}
