package domain

import (
	"fmt"
	"math"
)

// starScale переводит предсказание модели из [0,1] в пятизвёздочную шкалу.
const starScale = 5

// FinalScore вычисляет итоговую оценку позиции выдачи. Чистая функция от
// предсказания модели, популярности и среднего балла; нулевая популярность
// или средний балл обнуляют результат.
func FinalScore(predicted, popularity, voteAverage float64) float64 {
	return predicted * starScale * popularity * voteAverage
}

// PredictedStarRating переводит предсказание модели в звёздный рейтинг.
func PredictedStarRating(predicted float64) float64 {
	return predicted * starScale
}

// PopularityScore — смешанный сигнал популярности для подборок по предпочтениям.
func PopularityScore(m Movie) float64 {
	return m.Popularity * m.VoteAverage
}

// ValidateRating проверяет, что оценка лежит в диапазоне 0..5 с шагом 0.5.
func ValidateRating(rating float64) error {
	if rating < 0 || rating > 5 {
		return fmt.Errorf("оценка %v вне диапазона 0..5: %w", rating, ErrInvalidArgument)
	}
	if scaled := rating * 2; scaled != math.Trunc(scaled) {
		return fmt.Errorf("оценка %v не кратна 0.5: %w", rating, ErrInvalidArgument)
	}
	return nil
}
