// Package runway defines the core entity types shared across subsystems.
package runway

import (
	"fmt"
	"strings"
	"time"
)

// ImageType classifies a look image by the view it captures.
type ImageType string

// Image type values persisted with each image.
const (
	ImageFront  ImageType = "front"
	ImageBack   ImageType = "back"
	ImageDetail ImageType = "detail"
)

// ClassifyImage derives the image type from its alt text.
func ClassifyImage(altText string) ImageType {
	lower := strings.ToLower(altText)
	switch {
	case strings.Contains(lower, "back"):
		return ImageBack
	case strings.Contains(lower, "detail"):
		return ImageDetail
	default:
		return ImageFront
	}
}

// Image is a single photograph of a look. Images are never addressed
// independently; they live inside their Look.
type Image struct {
	URL        string    `json:"url"`
	LookNumber int       `json:"look_number"`
	AltText    string    `json:"alt_text,omitempty"`
	Type       ImageType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
}

// Look is one numbered outfit within a designer's show.
type Look struct {
	Number    int     `json:"look_number"`
	Completed bool    `json:"completed"`
	Images    []Image `json:"images"`
}

// Designer is one show/collection within a season, keyed by its URL,
// which is globally unique.
type Designer struct {
	Name           string `json:"name"`
	URL            string `json:"url"`
	TotalLooks     int    `json:"total_looks"`
	ExtractedLooks int    `json:"extracted_looks"`
	Completed      bool   `json:"completed"`
	Looks          []Look `json:"looks"`
}

// Season is one collection period, keyed by (name, year).
type Season struct {
	Name               string     `json:"season"`
	Year               string     `json:"year"`
	URL                string     `json:"url"`
	TotalDesigners     int        `json:"total_designers"`
	CompletedDesigners int        `json:"completed_designers"`
	Completed          bool       `json:"completed"`
	Designers          []Designer `json:"designers"`
}

// SeasonKey is the natural key of a Season. Positional indices are never
// used for addressing; concurrent inserts would silently invalidate them.
type SeasonKey struct {
	Name string
	Year string
}

// Key returns the season's natural key.
func (s Season) Key() SeasonKey {
	return SeasonKey{Name: s.Name, Year: s.Year}
}

func (k SeasonKey) String() string {
	return fmt.Sprintf("%s %s", k.Name, k.Year)
}

// Progress holds derived run-wide statistics. It is recomputed from the
// underlying collections on every write and never hand-edited.
type Progress struct {
	TotalSeasons         int        `json:"total_seasons"`
	CompletedSeasons     int        `json:"completed_seasons"`
	TotalDesigners       int        `json:"total_designers"`
	CompletedDesigners   int        `json:"completed_designers"`
	TotalLooks           int        `json:"total_looks"`
	ExtractedLooks       int        `json:"extracted_looks"`
	CompletionPercentage float64    `json:"completion_percentage"`
	ExtractionRate       float64    `json:"extraction_rate,omitempty"`
	EstimatedCompletion  *time.Time `json:"estimated_completion,omitempty"`
}

// Metadata describes one crawl instance.
type Metadata struct {
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
	InstanceID  string    `json:"instance_id,omitempty"`
	Progress    Progress  `json:"overall_progress"`
}

// Snapshot is the full hierarchical crawl state: metadata plus every
// season with its nested designers, looks, and images.
type Snapshot struct {
	Metadata Metadata `json:"metadata"`
	Seasons  []Season `json:"seasons"`
}

// NewSnapshot returns an empty snapshot stamped with the given time.
func NewSnapshot(now time.Time) Snapshot {
	return Snapshot{
		Metadata: Metadata{
			CreatedAt:   now,
			LastUpdated: now,
		},
	}
}

// FindSeason returns a pointer to the season with the given key, or nil.
func (s *Snapshot) FindSeason(key SeasonKey) *Season {
	for i := range s.Seasons {
		if s.Seasons[i].Key() == key {
			return &s.Seasons[i]
		}
	}
	return nil
}

// FindDesigner locates a designer by URL anywhere in the snapshot,
// returning the owning season as well. Designers are addressable
// independently of their hierarchical position.
func (s *Snapshot) FindDesigner(url string) (*Season, *Designer) {
	for i := range s.Seasons {
		for j := range s.Seasons[i].Designers {
			if s.Seasons[i].Designers[j].URL == url {
				return &s.Seasons[i], &s.Seasons[i].Designers[j]
			}
		}
	}
	return nil, nil
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Seasons = make([]Season, len(s.Seasons))
	for i, season := range s.Seasons {
		out.Seasons[i] = season.Clone()
	}
	return out
}

// Clone returns a deep copy of the season.
func (s Season) Clone() Season {
	out := s
	out.Designers = make([]Designer, len(s.Designers))
	for i, d := range s.Designers {
		out.Designers[i] = d.Clone()
	}
	return out
}

// Clone returns a deep copy of the designer.
func (d Designer) Clone() Designer {
	out := d
	out.Looks = make([]Look, len(d.Looks))
	for i, l := range d.Looks {
		out.Looks[i] = l
		out.Looks[i].Images = append([]Image(nil), l.Images...)
	}
	return out
}
