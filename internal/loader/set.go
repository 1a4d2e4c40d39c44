package loader

import (
	"sort"

	"github.com/draftroom/stats-cli/internal/config"
	"github.com/draftroom/stats-cli/internal/fetcher"
)

// Set indexes loaders by their dotted loader path.
type Set struct {
	loaders map[string]Loader
}

// NewSet builds an empty set.
func NewSet() *Set {
	return &Set{loaders: make(map[string]Loader)}
}

// Add registers a loader, replacing any existing one at the same path.
func (s *Set) Add(l Loader) {
	s.loaders[l.LoaderPath()] = l
}

// Get returns the loader at the given dotted path.
func (s *Set) Get(path string) (Loader, bool) {
	l, ok := s.loaders[path]
	return l, ok
}

// Paths returns the registered loader paths, sorted.
func (s *Set) Paths() []string {
	paths := make([]string, 0, len(s.loaders))
	for p := range s.loaders {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// DefaultSet wires every production loader against the configured providers.
func DefaultSet(cfg *config.Config) *Set {
	httpFetch := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:   cfg.Fetch.UserAgent,
		Timeout:     cfg.Fetch.Timeout(),
		RateLimits:  cfg.Fetch.RateLimits,
		DefaultRate: cfg.Fetch.DefaultRate,
	})
	ftpFetch := fetcher.NewFTPFetcher(fetcher.FTPOptions{
		Timeout:  cfg.Fetch.Timeout(),
		User:     cfg.Providers.Commish.User,
		Password: cfg.Providers.Commish.Password,
	})

	s := NewSet()
	s.Add(NewStatsfeedWeeklyStats(cfg.Providers.Statsfeed, httpFetch))
	s.Add(NewStatsfeedPlayers(cfg.Providers.Statsfeed, httpFetch))
	s.Add(NewLeagueHQRosters(cfg.Providers.LeagueHQ, httpFetch))
	s.Add(NewLeagueHQTeams(cfg.Providers.LeagueHQ, httpFetch))
	s.Add(NewValuatorPlayerValues(cfg.Providers.Valuator, httpFetch))
	s.Add(NewCommishDraftPicks(cfg.Providers.Commish, ftpFetch, cfg.Fetch.TempDir))
	return s
}
