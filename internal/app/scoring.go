package app

import (
	"sort"

	"quizsync-service/internal/domain"
)

// Rank derives the leaderboard from the ledger, counting only teams that are
// currently registered and records of questionSetID. Every registered team
// appears, ordered by score descending; equal scores keep registry order
// (join time, then name).
func Rank(teams []domain.Team, records []domain.AnswerRecord, questionSetID string) []domain.LeaderboardEntry {
	ordered := append([]domain.Team(nil), teams...)
	sortTeams(ordered)

	totals := make(map[string]int, len(ordered))
	entries := make([]domain.LeaderboardEntry, 0, len(ordered))
	for _, team := range ordered {
		if _, dup := totals[team.Name]; dup {
			continue
		}
		totals[team.Name] = 0
		entries = append(entries, domain.LeaderboardEntry{TeamName: team.Name, SelfieRef: team.SelfieRef})
	}

	for _, record := range records {
		if _, registered := totals[record.TeamName]; !registered {
			continue
		}
		if record.QuestionSetID != questionSetID {
			continue
		}
		if record.Points < 0 {
			continue
		}
		totals[record.TeamName] += record.Points
	}

	for i := range entries {
		entries[i].Score = totals[entries[i].TeamName]
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	return entries
}

func sortTeams(teams []domain.Team) {
	sort.SliceStable(teams, func(i, j int) bool {
		if !teams[i].JoinedAt.Equal(teams[j].JoinedAt) {
			return teams[i].JoinedAt.Before(teams[j].JoinedAt)
		}
		return teams[i].Name < teams[j].Name
	})
}
