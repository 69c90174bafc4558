package recommend

import (
	"testing"

	"trailer-api/internal/domain"
)

func TestAssemblePreservesOrder(t *testing.T) {
	candidates := []scoredCandidate{
		{movie: domain.Movie{ID: 7, Title: "Седьмой"}, predicted: 0.4, final: 120, watched: true},
		{movie: domain.Movie{ID: 3, Title: "Третий"}, predicted: 0.9, final: 90, watched: false},
	}

	records := assemble(candidates)
	if len(records) != 2 {
		t.Fatalf("ожидали 2 записи, получили %d", len(records))
	}
	if records[0].ID != 7 || records[1].ID != 3 {
		t.Fatalf("сборщик не должен менять порядок кандидатов")
	}
	if records[0].PredictedStarRating != 2.0 {
		t.Fatalf("ожидали звёздный рейтинг 2.0, получили %v", records[0].PredictedStarRating)
	}
	if !records[0].Watched || records[1].Watched {
		t.Fatalf("флаг просмотра должен копироваться без изменений")
	}
}

func TestAssembleEmpty(t *testing.T) {
	if got := assemble(nil); got != nil {
		t.Fatalf("для пустого входа ожидали nil, получили %v", got)
	}
}
