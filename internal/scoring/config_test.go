package scoring

import "testing"

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		weights map[Criterion]int
		wantErr bool
	}{
		{
			name: "default weights are valid",
			weights: map[Criterion]int{
				CriterionBudget:    30,
				CriterionType:      20,
				CriterionLocation:  20,
				CriterionRooms:     15,
				CriterionAmenities: 15,
			},
		},
		{
			name:    "empty weights rejected",
			weights: nil,
			wantErr: true,
		},
		{
			name: "sum below 100 rejected",
			weights: map[Criterion]int{
				CriterionBudget: 50,
				CriterionType:   40,
			},
			wantErr: true,
		},
		{
			name: "sum above 100 rejected",
			weights: map[Criterion]int{
				CriterionBudget: 60,
				CriterionType:   60,
			},
			wantErr: true,
		},
		{
			name: "negative weight rejected",
			weights: map[Criterion]int{
				CriterionBudget: 120,
				CriterionType:   -20,
			},
			wantErr: true,
		},
		{
			name: "unknown criterion rejected",
			weights: map[Criterion]int{
				Criterion("vibes"): 100,
			},
			wantErr: true,
		},
		{
			name: "subset of criteria summing to 100 is valid",
			weights: map[Criterion]int{
				CriterionBudget:   70,
				CriterionLocation: 30,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Config{Weights: tt.weights}.Validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestCombineConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     CombineConfig
		wantErr bool
	}{
		{name: "default blend", cfg: CombineConfig{Rule: 0.7, Semantic: 0.3}},
		{name: "rule only", cfg: CombineConfig{Rule: 1.0, Semantic: 0}},
		{name: "sum below one", cfg: CombineConfig{Rule: 0.5, Semantic: 0.3}, wantErr: true},
		{name: "sum above one", cfg: CombineConfig{Rule: 0.8, Semantic: 0.3}, wantErr: true},
		{name: "negative weight", cfg: CombineConfig{Rule: 1.3, Semantic: -0.3}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
