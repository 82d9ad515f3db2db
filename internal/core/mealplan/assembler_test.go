package mealplan

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlanIDFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^plan_\d+_[0-9a-f]{8}$`)
	first := NewPlanID()
	second := NewPlanID()
	assert.Regexp(t, pattern, first)
	assert.Regexp(t, pattern, second)
	assert.NotEqual(t, first, second)
}

func TestCollectRecipesPreservesOrder(t *testing.T) {
	days := scriptedBatchDays(0, 2, true)
	recipes := CollectRecipes(days)
	require.Len(t, recipes, 15)
	assert.Equal(t, "dish 0-0", recipes[0].Name)
	assert.Equal(t, "dish 0-4", recipes[4].Name)
	assert.Equal(t, "dish 2-4", recipes[14].Name)
}

func TestAssemblePlanKeepsDays(t *testing.T) {
	days := scriptedBatchDays(0, 6, false)
	plan := AssemblePlan(days)
	require.NotNil(t, plan)
	assert.NotEmpty(t, plan.ID)
	assert.Equal(t, days, plan.Days)
}
