package conversation

import "testing"

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"massage", CategoryMassage},
		{" spa wellness ", CategoryMassage},
		{"WELLNESS", CategoryMassage},
		{"activities experiences", CategoryLocalTours},
		{"Business", CategoryConferenceRoom},
		{"FOOD_BEVERAGE", CategoryFoodBeverage},
		{"local tours", CategoryLocalTours},
		{"", ""},
		{"SOMETHING_ELSE", "SOMETHING_ELSE"},
	}
	for _, tt := range tests {
		if got := NormalizeCategory(tt.in); got != tt.want {
			t.Errorf("NormalizeCategory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsBookable(t *testing.T) {
	for _, category := range []string{"massage", "spa", "local tours", "dining", "conference room"} {
		if !IsBookable(category) {
			t.Errorf("IsBookable(%q) = false, want true", category)
		}
	}
	for _, category := range []string{"housekeeping", "maintenance", "food_beverage", "concierge", ""} {
		if IsBookable(category) {
			t.Errorf("IsBookable(%q) = true, want false", category)
		}
	}
}

func TestCategoriesOverlap(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"spa", "spa_services", true},
		{"spa_services", "spa services", true},
		{"massage", "MASSAGE", true},
		{"wellness", "massage", true}, // alias folds wellness into massage
		{"spa", "sparkling water", false},
		{"food_items", "FOOD_BEVERAGE", false},
		{"", "spa", false},
	}
	for _, tt := range tests {
		if got := categoriesOverlap(tt.a, tt.b); got != tt.want {
			t.Errorf("categoriesOverlap(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
