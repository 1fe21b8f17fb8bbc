package models

import (
	"time"

	"github.com/google/uuid"
)

// ServiceTime is a single recurring service entry extracted from a church website.
type ServiceTime struct {
	Day  string `json:"day"`
	Time string `json:"time"`
	Name string `json:"name,omitempty"` // e.g. "Traditional Worship", "Sunday School"
}

// Church is the persisted representation of a church listing.
type Church struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Address   string    `json:"address,omitempty"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	StateAbbr string    `json:"state_abbr,omitempty"`
	Zip       string    `json:"zip,omitempty"`
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lng"`

	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	Website      string `json:"website,omitempty"`
	Denomination string `json:"denomination,omitempty"`

	// (Source, SourceID) is the natural external key.
	Source   string `json:"source"`
	SourceID string `json:"source_id"`

	// AI-enriched fields. Empty until enrichment runs.
	Description          string        `json:"description,omitempty"`
	WhatToExpect         string        `json:"what_to_expect,omitempty"`
	WorshipStyles        []string      `json:"worship_styles,omitempty"`
	ServiceTimes         []ServiceTime `json:"service_times,omitempty"`
	HasYouthMinistry     bool          `json:"has_youth_ministry"`
	HasChildrensMinistry bool          `json:"has_childrens_ministry"`
	HasSmallGroups       bool          `json:"has_small_groups"`
	PastorName           string        `json:"pastor_name,omitempty"`
	FoundedYear          int           `json:"founded_year,omitempty"`

	Embedding []float32 `json:"-"`

	AIGeneratedAt *time.Time `json:"ai_generated_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
