package domain

import (
	"fmt"
	"math"
	"time"
)

type ListingStatus string

const (
	ListingAvailable ListingStatus = "available"
	ListingRequested ListingStatus = "requested"
	ListingCompleted ListingStatus = "completed"
	ListingExpired   ListingStatus = "expired"
)

func (s ListingStatus) Terminal() bool {
	return s == ListingCompleted || s == ListingExpired
}

type FoodType string

const (
	FoodVeg    FoodType = "veg"
	FoodNonVeg FoodType = "non-veg"
	FoodBoth   FoodType = "both"
)

func ParseFoodType(s string) (FoodType, error) {
	switch FoodType(s) {
	case FoodVeg, FoodNonVeg, FoodBoth:
		return FoodType(s), nil
	}
	return "", NewValidationError("food_type", fmt.Sprintf("must be one of veg, non-veg, both; got %q", s))
}

// AllowedExpiryHours is the closed set of shelf lives a donor may pick.
var AllowedExpiryHours = []int{2, 4, 6, 12, 24}

func ValidateExpiryHours(h int) error {
	for _, allowed := range AllowedExpiryHours {
		if h == allowed {
			return nil
		}
	}
	return NewValidationError("expiry_hours", fmt.Sprintf("must be one of %v; got %d", AllowedExpiryHours, h))
}

// ExpiresAt is the instant hours_remaining reaches zero.
func ExpiresAt(createdAt time.Time, expiryHours int) time.Time {
	return createdAt.Add(time.Duration(expiryHours) * time.Hour)
}

// HoursRemaining is max(0, expiryHours - hours elapsed since createdAt).
func HoursRemaining(createdAt time.Time, expiryHours int, now time.Time) float64 {
	left := ExpiresAt(createdAt, expiryHours).Sub(now).Hours()
	return math.Max(0, left)
}

// EffectiveStatus applies the expiry rule to a persisted status. Completion
// freezes state; anything else with no time left reads as expired.
func EffectiveStatus(stored ListingStatus, createdAt time.Time, expiryHours int, now time.Time) ListingStatus {
	if stored == ListingCompleted {
		return ListingCompleted
	}
	if HoursRemaining(createdAt, expiryHours, now) == 0 {
		return ListingExpired
	}
	return stored
}
