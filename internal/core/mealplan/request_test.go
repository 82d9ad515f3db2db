package mealplan

import (
	"fmt"
	"testing"

	"mealplan-generator/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() *GenerateRequest {
	return &GenerateRequest{
		UserProfile: *testProfile(true),
		DeviceID:    "device-abc-123",
		Duration:    7,
	}
}

func TestValidateAcceptsValidRequest(t *testing.T) {
	assert.NoError(t, validRequest().Validate())
}

func TestValidateRejectsBadDeviceID(t *testing.T) {
	for _, deviceID := range []string{"", "has space", "semi;colon", "under_score", "日誌"} {
		req := validRequest()
		req.DeviceID = deviceID
		err := req.Validate()
		require.Error(t, err, "deviceID %q", deviceID)
		assert.True(t, common.IsValidationError(err))
		assert.Equal(t, "Invalid device ID", err.Error())
	}
}

func TestValidateProfileBounds(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(r *GenerateRequest)
		message string
	}{
		{"calories too low", func(r *GenerateRequest) { r.UserProfile.DailyCalorieTarget = 700 }, "Calorie target must be between 800 and 10000"},
		{"calories too high", func(r *GenerateRequest) { r.UserProfile.DailyCalorieTarget = 10001 }, "Calorie target must be between 800 and 10000"},
		{"age too low", func(r *GenerateRequest) { r.UserProfile.Age = 12 }, "Age must be between 13 and 120"},
		{"age too high", func(r *GenerateRequest) { r.UserProfile.Age = 121 }, "Age must be between 13 and 120"},
		{"weight out of range", func(r *GenerateRequest) { r.UserProfile.WeightKg = 10 }, "Weight must be between 20 and 500 kg"},
		{"height out of range", func(r *GenerateRequest) { r.UserProfile.HeightCm = 40 }, "Height must be between 50 and 300 cm"},
		{"protein out of range", func(r *GenerateRequest) { r.UserProfile.ProteinGrams = 1001 }, "Protein target must be between 0 and 1000 grams"},
		{"meals per day out of range", func(r *GenerateRequest) { r.UserProfile.MealsPerDay = 0 }, "Meals per day must be between 1 and 10"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(req)
			err := req.Validate()
			require.Error(t, err)
			assert.True(t, common.IsValidationError(err))
			assert.Equal(t, tc.message, err.Error())
		})
	}
}

func TestValidateExcludeListCap(t *testing.T) {
	req := validRequest()
	for i := 0; i <= maxExcludeRecipeNames; i++ {
		req.ExcludeRecipeNames = append(req.ExcludeRecipeNames, fmt.Sprintf("recipe %d", i))
	}
	err := req.Validate()
	require.Error(t, err)
	assert.Equal(t, "Too many excluded recipe names", err.Error())

	req.ExcludeRecipeNames = req.ExcludeRecipeNames[:maxExcludeRecipeNames]
	assert.NoError(t, req.Validate())
}
