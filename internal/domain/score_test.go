package domain

import (
	"errors"
	"math"
	"testing"
)

func TestFinalScore(t *testing.T) {
	got := FinalScore(0.8, 50, 7.0)
	if math.Abs(got-280.0) > 1e-9 {
		t.Fatalf("ожидали 280.0, получили %v", got)
	}
	if FinalScore(0.9, 0, 8.0) != 0 {
		t.Fatalf("нулевая популярность должна обнулять итоговую оценку")
	}
	if FinalScore(0.9, 12, 0) != 0 {
		t.Fatalf("нулевой средний балл должен обнулять итоговую оценку")
	}
}

func TestValidateRating(t *testing.T) {
	valid := []float64{0, 0.5, 1, 2.5, 4.5, 5}
	for _, r := range valid {
		if err := ValidateRating(r); err != nil {
			t.Fatalf("оценка %v должна быть валидной: %v", r, err)
		}
	}
	invalid := []float64{-0.5, 5.5, 0.3, 4.75, 100}
	for _, r := range invalid {
		err := ValidateRating(r)
		if err == nil {
			t.Fatalf("оценка %v должна быть отклонена", r)
		}
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("ожидали ErrInvalidArgument, получили %v", err)
		}
	}
}
