package app

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"quizsync-service/internal/domain"
)

// TeamService implements the join protocol. The team name is the identity
// key, so two teams joining under the same name overwrite each other and the
// last writer owns the slot.
type TeamService struct {
	key    string
	teams  TeamStore
	blobs  BlobStore
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewTeamService(key string, teams TeamStore, blobs BlobStore, logger *zap.SugaredLogger) *TeamService {
	return &TeamService{key: key, teams: teams, blobs: blobs, logger: logger, now: time.Now}
}

// Join validates the request, uploads the selfie and writes the team record.
// Nothing is written when validation or the upload fails.
func (s *TeamService) Join(ctx context.Context, name string, selfie []byte, contentType string) (domain.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Team{}, domain.ErrTeamNameRequired
	}
	if strings.ContainsAny(name, `/\`) || strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return domain.Team{}, domain.ErrInvalidTeamName
	}
	if len(selfie) == 0 {
		return domain.Team{}, domain.ErrSelfieRequired
	}

	objectPath := path.Join("selfies", s.key, name+selfieExtension(contentType))
	ref, err := s.blobs.Upload(ctx, objectPath, selfie, contentType)
	if err != nil {
		return domain.Team{}, fmt.Errorf("upload selfie: %w", err)
	}
	url, err := s.blobs.Resolve(ctx, ref)
	if err != nil {
		return domain.Team{}, fmt.Errorf("resolve selfie: %w", err)
	}

	team := domain.Team{Name: name, JoinedAt: s.now(), SelfieRef: url}
	if err := s.teams.PutTeam(ctx, team); err != nil {
		return domain.Team{}, fmt.Errorf("write team: %w", err)
	}
	s.logger.Infow("team joined", "session", s.key, "team", name)
	return team, nil
}

// Get returns a joined team or domain.ErrTeamNotFound.
func (s *TeamService) Get(ctx context.Context, name string) (domain.Team, error) {
	return s.teams.GetTeam(ctx, strings.TrimSpace(name))
}

// Remove drops a team from the registry. Its ledger records are kept but no
// longer count towards the leaderboard.
func (s *TeamService) Remove(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if _, err := s.teams.GetTeam(ctx, name); err != nil {
		return err
	}
	if err := s.teams.RemoveTeam(ctx, name); err != nil {
		return fmt.Errorf("remove team: %w", err)
	}
	s.logger.Infow("team removed", "session", s.key, "team", name)
	return nil
}

// List returns every joined team.
func (s *TeamService) List(ctx context.Context) ([]domain.Team, error) {
	teams, err := s.teams.ListTeams(ctx)
	if err != nil {
		return nil, err
	}
	sortTeams(teams)
	return teams, nil
}

func selfieExtension(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
