// package models defines the data model for the music metadata service
package models

// ReleaseSummary is a catalog new release enriched with its first track.
//
// Enrichment is best-effort: a release whose track lookup failed carries zero duration and popularity and no preview.
type ReleaseSummary struct {
	ID          string `json:"id"`
	Title       string `json:"name"`
	Artist      string `json:"artist"`
	AlbumName   string `json:"album"`
	ImageURL    string `json:"image,omitempty"`
	ReleaseDate string `json:"release_date"`
	PreviewURL  string `json:"preview_url,omitempty"`
	ExternalURL string `json:"external_url,omitempty"`
	TrackID     string `json:"track_id,omitempty"`
	DurationMS  int    `json:"duration_ms"`
	Popularity  int    `json:"popularity"`
}

// Valid reports whether the release carries an id.
func (r ReleaseSummary) Valid() bool {
	return r.ID != ""
}

// AlbumInfo is the album projection attached to a [TrackMatch].
type AlbumInfo struct {
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
	ImageURL    string `json:"image,omitempty"`
	Type        string `json:"type,omitempty"`
}

// TrackMatch is the best catalog hit for a title/artist query.
type TrackMatch struct {
	ID          string    `json:"id"`
	Title       string    `json:"name"`
	Artist      string    `json:"artist"`
	Album       AlbumInfo `json:"album"`
	PreviewURL  string    `json:"preview_url,omitempty"`
	ExternalURL string    `json:"external_url,omitempty"`
	Popularity  int       `json:"popularity"`
	Explicit    bool      `json:"explicit"`
	DurationMS  int       `json:"duration_ms"`
	Score       float64   `json:"match_score"`
}

// ChartTrack is an entry of the chart top tracks listing.
type ChartTrack struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Artist    string `json:"artist"`
	Image     string `json:"image"`
	Playcount string `json:"playcount"`
	Listeners string `json:"listeners"`
	URL       string `json:"url"`
}

// TrackDetails is chart collaborator metadata for a single track.
type TrackDetails struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Artist    string   `json:"artist"`
	Album     string   `json:"album,omitempty"`
	Image     string   `json:"image,omitempty"`
	Duration  string   `json:"duration,omitempty"` // m:ss
	Tags      []string `json:"tags"`
	Wiki      string   `json:"wiki,omitempty"`
	Summary   string   `json:"summary,omitempty"`
	Playcount string   `json:"playcount"`
	Listeners string   `json:"listeners"`
	URL       string   `json:"url"`
}

// Progressions holds the verse and chorus chord sequences.
type Progressions struct {
	Verse  []string `json:"verse"`
	Chorus []string `json:"chorus"`
}

// CapoSuggestion suggests a capo position that lets the song be played with easier shapes.
type CapoSuggestion struct {
	Position     int    `json:"position"`
	AlternateKey string `json:"alternateKey"`
}

// Recommendations are playing hints derived from the analysed key.
type Recommendations struct {
	Strumming []string       `json:"strumming"`
	Capo      CapoSuggestion `json:"capo"`
}

// ChordAnalysis is the enriched result of a chord suggestion request.
type ChordAnalysis struct {
	Title           string          `json:"title"`
	Artist          string          `json:"artist"`
	Key             string          `json:"key"`
	Progressions    Progressions    `json:"progressions"`
	Substitutions   []string        `json:"substitutions"`
	Complexity      string          `json:"complexity"`
	Difficulty      string          `json:"difficulty"`
	Recommendations Recommendations `json:"recommendations"`
}

// ProbeResult reports whether a single catalog endpoint answered.
type ProbeResult struct {
	Name   string `json:"name"`
	Status string `json:"status"` // working or failed
	Error  string `json:"error,omitempty"`
}
