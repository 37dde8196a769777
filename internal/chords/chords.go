// Package chords asks a text generator for a song's chord analysis and enriches the answer with playing hints.
package chords

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunefeed/internal/models"
	"github.com/desertthunder/tunefeed/internal/services"
	"github.com/desertthunder/tunefeed/internal/shared"
)

const promptTemplate = `As a musical expert, analyze the song "%s" by %s.
Please provide a detailed chord analysis including:
1. Song key
2. Verse chord progression
3. Chorus chord progression
4. Common chord substitutions
Return ONLY a JSON object with this structure:
{
  "key": "string",
  "chords": {
    "verse": ["array of chords"],
    "chorus": ["array of chords"]
  },
  "substitutions": ["array of alternative chords"]
}`

// Strumming patterns offered for every key: basic, ballad and rock.
var strummingPatterns = []string{"D DU UDU", "D D UDU", "DU DU UDU"}

var capoSuggestions = map[string]models.CapoSuggestion{
	"C": {Position: 0, AlternateKey: "C"},
	"G": {Position: 7, AlternateKey: "C"},
	"D": {Position: 2, AlternateKey: "C"},
}

var difficultyByComplexity = map[string]string{
	"beginner":     "easy",
	"intermediate": "medium",
	"advanced":     "hard",
}

// rawAnalysis is the JSON shape requested from the generator.
type rawAnalysis struct {
	Key    string `json:"key"`
	Chords *struct {
		Verse  []string `json:"verse"`
		Chorus []string `json:"chorus"`
	} `json:"chords"`
	Substitutions []string `json:"substitutions"`
}

// Service generates chord analyses.
type Service struct {
	generator services.TextGenerator
	logger    *log.Logger
}

func NewService(generator services.TextGenerator, logger *log.Logger) *Service {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Service{generator: generator, logger: shared.WithLogger(logger, "component", "chords")}
}

// Generate requests and enriches the chord analysis for a song.
func (s *Service) Generate(ctx context.Context, title, artist string) (*models.ChordAnalysis, error) {
	title, artist = strings.TrimSpace(title), strings.TrimSpace(artist)
	if title == "" || artist == "" {
		return nil, fmt.Errorf("%w: title and artist are required", shared.ErrMissingArgument)
	}

	s.logger.Info("generating chord progression", "title", title, "artist", artist)

	text, err := s.generator.Generate(ctx, fmt.Sprintf(promptTemplate, title, artist))
	if err != nil {
		return nil, fmt.Errorf("failed to generate chord progression: %w", err)
	}

	analysis, err := Parse(text)
	if err != nil {
		s.logger.Warn("unusable chord response", "error", err)
		return nil, err
	}

	analysis.Title = title
	analysis.Artist = artist
	return analysis, nil
}

// Parse extracts the JSON object between the first '{' and the last '}' of text, validates its shape
// and derives complexity, difficulty and recommendations.
func Parse(text string) (*models.ChordAnalysis, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in chord response", shared.ErrParseResponse)
	}

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: invalid chord JSON: %v", shared.ErrParseResponse, err)
	}
	if raw.Key == "" || raw.Chords == nil || raw.Chords.Verse == nil || raw.Chords.Chorus == nil {
		return nil, fmt.Errorf("%w: chord JSON missing key, chords.verse or chords.chorus", shared.ErrParseResponse)
	}

	substitutions := raw.Substitutions
	if substitutions == nil {
		substitutions = []string{}
	}

	complexity := Complexity(raw.Chords.Verse, raw.Chords.Chorus)
	return &models.ChordAnalysis{
		Key:           raw.Key,
		Progressions:  models.Progressions{Verse: raw.Chords.Verse, Chorus: raw.Chords.Chorus},
		Substitutions: substitutions,
		Complexity:    complexity,
		Difficulty:    Difficulty(complexity),
		Recommendations: models.Recommendations{
			Strumming: append([]string(nil), strummingPatterns...),
			Capo:      Capo(raw.Key),
		},
	}, nil
}

// Complexity grades a song by its number of distinct chords.
func Complexity(verse, chorus []string) string {
	unique := make(map[string]struct{}, len(verse)+len(chorus))
	for _, c := range verse {
		unique[c] = struct{}{}
	}
	for _, c := range chorus {
		unique[c] = struct{}{}
	}

	switch n := len(unique); {
	case n <= 4:
		return "beginner"
	case n <= 6:
		return "intermediate"
	default:
		return "advanced"
	}
}

// Difficulty maps a complexity grade to a difficulty label, defaulting to medium.
func Difficulty(complexity string) string {
	if d, ok := difficultyByComplexity[complexity]; ok {
		return d
	}
	return "medium"
}

// Capo suggests a capo position for key. Unknown keys get no capo.
func Capo(key string) models.CapoSuggestion {
	if c, ok := capoSuggestions[key]; ok {
		return c
	}
	return models.CapoSuggestion{Position: 0, AlternateKey: key}
}
