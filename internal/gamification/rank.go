package gamification

// Rank is a Timo rank earned by completing activities.
type Rank struct {
	Number      int    `json:"number"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Detail      string `json:"detail"`
	Image       string `json:"image"`
}

var rankCatalog = []Rank{
	{
		Number:      1,
		Code:        "explorador",
		Name:        "Timo Explorador",
		Description: "Estás dando tus primeros pasos con Timo.",
		Detail:      "Ideal para quienes recién comienzan a completar actividades.",
		Image:       "Timo_explorador.png",
	},
	{
		Number:      2,
		Code:        "guardian",
		Name:        "Timo Guardián",
		Description: "Proteges el conocimiento junto a Timo.",
		Detail:      "Para estudiantes con muchas actividades resueltas.",
		Image:       "Timo_guardian.png",
	},
	{
		Number:      3,
		Code:        "guerrero",
		Name:        "Timo Guerrero",
		Description: "Ya conoces bien el mundo de LevelUp.",
		Detail:      "Para estudiantes que completan actividades con constancia.",
		Image:       "Timo_Guerrero.png",
	},
	{
		Number:      4,
		Code:        "legendario",
		Name:        "Timo Héroe Legendario",
		Description: "El rango más alto de LevelUp.",
		Detail:      "Solo para quienes han completado una gran cantidad de actividades.",
		Image:       "Timo_legendario.png",
	},
}

var rankBlurbs = map[int]string{
	1: "Estás empezando tu aventura. ¡Cada actividad te ayuda a explorar un nuevo rincón del conocimiento!",
	2: "Ya no solo exploras, ahora proteges lo que has aprendido. Eres un Guardián del Saber.",
	3: "Enfrentas desafíos más difíciles y no te rindes. ¡Los ejercicios son tus entrenamientos!",
	4: "Has superado montones de actividades. ¡Eres una leyenda en LevelUp!",
}

// rank thresholds: activities needed to reach ranks 2, 3 and 4.
var rankThresholds = []int{2, 4, 6}

// RankCatalog returns every rank in ascending order.
func RankCatalog() []Rank {
	out := make([]Rank, len(rankCatalog))
	copy(out, rankCatalog)
	return out
}

// RankNumber maps completed activities to a rank number from 1 to 4.
func RankNumber(activities int) int {
	for idx, threshold := range rankThresholds {
		if activities < threshold {
			return idx + 1
		}
	}
	return len(rankThresholds) + 1
}

// RankFor returns the rank reached with the given completed activities.
func RankFor(activities int) Rank {
	return rankCatalog[RankNumber(activities)-1]
}

// RankBlurb is the encouragement text shown on the student's portal.
func RankBlurb(activities int) string {
	return rankBlurbs[RankNumber(activities)]
}

// ActivitiesToNextRank is zero once the top rank is reached.
func ActivitiesToNextRank(activities int) int {
	for _, threshold := range rankThresholds {
		if activities < threshold {
			return threshold - activities
		}
	}
	return 0
}
