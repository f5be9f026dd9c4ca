// Package fixtures loads contests, rosters, sessions and games from YAML
// files into a store, and generates synthetic leagues for local runs.
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/okian/riichi/internal/adapters/repository"
	"github.com/okian/riichi/internal/domain/model"
)

// File is the top level of a fixture document.
type File struct {
	Players  []model.Player `yaml:"players"`
	Contests []Contest      `yaml:"contests"`
}

// Contest is a contest with the sessions and games that belong to it.
type Contest struct {
	model.Contest `yaml:",inline"`
	Sessions      []model.Session    `yaml:"sessions"`
	Games         []model.GameResult `yaml:"games"`
}

// Writer is the part of the store a fixture is applied through.
type Writer interface {
	SaveContest(ctx context.Context, c model.Contest) (model.Contest, error)
	SaveSession(ctx context.Context, s model.Session) (model.Session, error)
	SavePlayer(ctx context.Context, p model.Player) (model.Player, error)
	RecordGame(ctx context.Context, g model.GameResult) (model.GameResult, error)
}

// Summary counts what Apply wrote.
type Summary struct {
	Players    int `json:"players"`
	Contests   int `json:"contests"`
	Sessions   int `json:"sessions"`
	Games      int `json:"games"`
	Duplicates int `json:"duplicates"`
}

// Parse decodes a fixture document.
func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return &f, nil
}

// LoadFile reads and decodes the fixture at path.
func LoadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer fh.Close()
	return Parse(fh)
}

// Apply writes f through w. Sessions and games inherit the id of the contest
// they are listed under; games already recorded are counted as duplicates.
func Apply(ctx context.Context, w Writer, f *File) (Summary, error) {
	var sum Summary
	for _, p := range f.Players {
		if _, err := w.SavePlayer(ctx, p); err != nil {
			return sum, fmt.Errorf("player %q: %w", p.ID, err)
		}
		sum.Players++
	}

	for _, c := range f.Contests {
		saved, err := w.SaveContest(ctx, c.Contest)
		if err != nil {
			return sum, fmt.Errorf("contest %q: %w", c.Name, err)
		}
		sum.Contests++

		for _, s := range c.Sessions {
			s.ContestID = saved.ID
			if _, err := w.SaveSession(ctx, s); err != nil {
				return sum, fmt.Errorf("session %q: %w", s.ID, err)
			}
			sum.Sessions++
		}

		for _, g := range c.Games {
			g.ContestID = saved.ID
			if g.ContestMajsoulID == 0 {
				g.ContestMajsoulID = saved.MajsoulID
			}
			_, err := w.RecordGame(ctx, g)
			if errors.Is(err, repository.ErrDuplicateGame) {
				sum.Duplicates++
				continue
			}
			if err != nil {
				return sum, fmt.Errorf("game %q: %w", g.MajsoulID, err)
			}
			sum.Games++
		}
	}
	return sum, nil
}
