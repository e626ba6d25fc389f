package photos

import (
	"fmt"
	"time"

	"github.com/pysugar/photo-nexus/internal/db/models"
	"github.com/pysugar/photo-nexus/internal/drive"
)

// PhotoView is a photo as returned to callers.
type PhotoView struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	URL              string             `json:"url"`
	Status           models.PhotoStatus `json:"status,omitempty"`
	CreatedTime      *time.Time         `json:"created_time,omitempty"`
	MovedToLibraryAt *time.Time         `json:"moved_to_library_at,omitempty"`
	Size             int64              `json:"size,omitempty"`
}

// LibraryGroups nests photos by year, month and day, e.g.
// {"2024": {"01": {"05": [...]}}}.
type LibraryGroups map[string]map[string]map[string][]PhotoView

// Listing is the result of List.
type Listing struct {
	Filter  Filter        `json:"filter"`
	Photos  []PhotoView   `json:"photos"`
	Library LibraryGroups `json:"library,omitempty"`
}

func viewFromRow(p models.Photo) PhotoView {
	return PhotoView{
		ID:               p.PhotoID,
		Name:             p.PhotoName,
		URL:              p.PhotoURL,
		Status:           p.Status,
		CreatedTime:      p.CreatedTime,
		MovedToLibraryAt: p.MovedToLibraryAt,
	}
}

func viewFromObject(o drive.Object, status models.PhotoStatus) PhotoView {
	v := PhotoView{ID: o.ID, Name: o.Name, URL: o.URL, Status: status, Size: o.Size}
	if !o.CreatedTime.IsZero() {
		t := o.CreatedTime
		v.CreatedTime = &t
	}
	return v
}

// effectiveTime is the creation time, falling back to the library move time.
func (v PhotoView) effectiveTime() *time.Time {
	if v.CreatedTime != nil {
		return v.CreatedTime
	}
	return v.MovedToLibraryAt
}

// GroupLibrary buckets photos by the UTC date of their effective time. Input
// order is kept inside each day. Photos with no time at all are skipped.
func GroupLibrary(photos []PhotoView) LibraryGroups {
	groups := LibraryGroups{}
	for _, p := range photos {
		t := p.effectiveTime()
		if t == nil {
			continue
		}
		u := t.UTC()
		year := fmt.Sprintf("%04d", u.Year())
		month := fmt.Sprintf("%02d", int(u.Month()))
		day := fmt.Sprintf("%02d", u.Day())

		months, ok := groups[year]
		if !ok {
			months = map[string]map[string][]PhotoView{}
			groups[year] = months
		}
		days, ok := months[month]
		if !ok {
			days = map[string][]PhotoView{}
			months[month] = days
		}
		days[day] = append(days[day], p)
	}
	return groups
}
