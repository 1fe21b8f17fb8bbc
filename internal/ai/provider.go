package ai

import (
	"context"
	"errors"
	"log"

	"github.com/derek/church-finder/internal/config"
	"github.com/derek/church-finder/internal/models"
)

// ErrNotConfigured means no AI provider had credentials.
var ErrNotConfigured = errors.New("no AI provider configured")

// Completer is a text-completion backend. Complete sends one prompt and
// returns the raw model output.
type Completer interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embedder turns text into a vector for semantic search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChurchContext carries everything the model gets to see about a church.
type ChurchContext struct {
	Name         string
	City         string
	State        string
	Denomination string
	Website      string
	WebsiteText  string
}

// Extraction holds structured facts pulled from a church website. Pointer
// booleans distinguish "the site says no" from "the site does not say".
type Extraction struct {
	Denomination         string               `json:"denomination"`
	ServiceTimes         []models.ServiceTime `json:"service_times"`
	WorshipStyles        []string             `json:"worship_styles"`
	PastorName           string               `json:"pastor_name"`
	FoundedYear          int                  `json:"founded_year"`
	HasYouthMinistry     *bool                `json:"has_youth_ministry"`
	HasChildrensMinistry *bool                `json:"has_childrens_ministry"`
	HasSmallGroups       *bool                `json:"has_small_groups"`
	Email                string               `json:"email"`
	Phone                string               `json:"phone"`
}

// Generated holds the free-text sections the model writes.
type Generated struct {
	Description  string `json:"description"`
	WhatToExpect string `json:"what_to_expect"`
}

// NewCompleterFromConfig picks the first completion backend with
// credentials, Anthropic before OpenAI.
func NewCompleterFromConfig(cfg *config.Config) (Completer, error) {
	if cfg.AnthropicAPIKey != "" {
		log.Printf("[AI] Using Anthropic (%s)", cfg.AnthropicModel)
		return NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel), nil
	}
	if cfg.OpenAIAPIKey != "" {
		log.Printf("[AI] Using OpenAI (%s)", cfg.OpenAIModel)
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIEmbedModel), nil
	}
	return nil, ErrNotConfigured
}

// NewEmbedderFromConfig returns an embedder when OpenAI credentials exist,
// nil otherwise. Enrichment works without one; listings just lose semantic
// ordering.
func NewEmbedderFromConfig(cfg *config.Config) Embedder {
	if cfg.OpenAIAPIKey == "" {
		return nil
	}
	return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIEmbedModel)
}
