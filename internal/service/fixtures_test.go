package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/internal/scheduler"
)

const (
	exampleCatalogPath = "../../configs/catalog.example.yaml"
	exampleRulesPath   = "../../configs/rules.example.yaml"
)

func exampleCatalog(t *testing.T) models.Catalog {
	t.Helper()
	catalog, err := scheduler.LoadCatalog(exampleCatalogPath)
	require.NoError(t, err)
	return catalog
}

func exampleRules(t *testing.T) *scheduler.RuleBook {
	t.Helper()
	rules, err := scheduler.LoadRules(exampleRulesPath)
	require.NoError(t, err)
	return rules
}

func exampleOptions() models.GenerationOptions {
	return models.GenerationOptions{StartDate: "2025-10-01", EndDate: "2026-01-31", MaxPerWeek: 2}
}
