package games

import (
	"errors"
	"fmt"
	"sort"

	"github.com/MJE43/levelup/internal/engine"
	"github.com/MJE43/levelup/internal/scripting"
)

var ErrGameNotFound = errors.New("game not found")

// GameSpec describes a registered game.
type GameSpec struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Levels      int    `json:"levels"`
}

// Env carries the collaborators content packs may need to build evaluators.
type Env struct {
	Executor scripting.Executor
}

// DefaultEnv returns an environment with a default-bounded sandbox.
func DefaultEnv() Env {
	return Env{Executor: scripting.NewSandbox(scripting.DefaultTimeout)}
}

// Game is a content pack: level data plus evaluators.
type Game interface {
	Spec() GameSpec
	Levels(env Env) []engine.Level
}

var registry = make(map[string]Game)

// RegisterGame adds a game to the registry.
func RegisterGame(g Game) {
	registry[g.Spec().ID] = g
}

// GetGame retrieves a game by id.
func GetGame(id string) (Game, bool) {
	g, ok := registry[id]
	return g, ok
}

// ListGames returns all registered games sorted by id.
func ListGames() []GameSpec {
	specs := make([]GameSpec, 0, len(registry))
	for _, g := range registry {
		specs = append(specs, g.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })
	return specs
}

// Load builds and validates the levels of a registered game.
func Load(id string, env Env) ([]engine.Level, error) {
	g, ok := GetGame(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}
	if env.Executor == nil {
		env = DefaultEnv()
	}
	levels := g.Levels(env)
	if err := engine.ValidateLevels(levels); err != nil {
		return nil, fmt.Errorf("game %s: %w", id, err)
	}
	return levels, nil
}

func init() {
	RegisterGame(&GauntletGame{})
	RegisterGame(&BigOGame{})
	RegisterGame(&SQLiGame{})
	RegisterGame(&FlexboxGame{})
	RegisterGame(&LexerGame{})
}
