package recommend

import "trailer-api/internal/domain"

// scoredCandidate — кандидат после джойна и подсчёта итоговой оценки.
type scoredCandidate struct {
	movie     domain.Movie
	predicted float64
	final     float64
	watched   bool
}

// assemble переводит упорядоченных кандидатов в записи выдачи,
// сохраняя входной порядок. Чистое преобразование без побочных эффектов.
func assemble(candidates []scoredCandidate) []domain.RankedRecommendation {
	if len(candidates) == 0 {
		return nil
	}
	records := make([]domain.RankedRecommendation, 0, len(candidates))
	for _, c := range candidates {
		records = append(records, domain.RankedRecommendation{
			Movie:               c.movie,
			PredictedScore:      c.predicted,
			PredictedStarRating: domain.PredictedStarRating(c.predicted),
			FinalScore:          c.final,
			Watched:             c.watched,
		})
	}
	return records
}
