package model

// ScheduleItem is one timed entry of the conference program as delivered by
// the spreadsheet API. TimeStart / TimeEnd are kept as raw strings because the
// export format is not guaranteed; internal/timeparse interprets them.
type ScheduleItem struct {
	Title        string `json:"title"`
	Venue        string `json:"venue"`
	TimeStart    string `json:"timestart"`
	TimeEnd      string `json:"timeend"`
	DateGroupKey string `json:"dategroupby"`

	Description string `json:"description,omitempty"`
	Speaker     string `json:"speaker,omitempty"`
}

// Venue is a named location that schedule items refer to by ID.
type Venue struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Address     string   `json:"address,omitempty"`
	Description string   `json:"description,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are known and
// non-zero.
func (v Venue) HasCoordinates() bool {
	return v.Latitude != nil && v.Longitude != nil && *v.Latitude != 0 && *v.Longitude != 0
}

// VenueName looks up a venue by id and falls back to the raw id when the
// venue is unknown or unnamed.
func VenueName(venues []Venue, id string) string {
	for _, v := range venues {
		if v.ID == id && v.Name != "" {
			return v.Name
		}
	}
	return id
}

// FaqItem is a single question/answer entry.
type FaqItem struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// FaqSection groups FAQ entries that share a category.
type FaqSection struct {
	Category string    `json:"category"`
	Items    []FaqItem `json:"items"`
}

// Speaker is a program participant.
type Speaker struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Bio   string `json:"bio,omitempty"`
	Image string `json:"image,omitempty"`
}

// Sightseeing is a point of interest shown on the sightseeing map.
type Sightseeing struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Address     string   `json:"address,omitempty"`
	Image       string   `json:"image,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// HasCoordinates reports whether the spot can be placed on a map.
func (s Sightseeing) HasCoordinates() bool {
	return s.Latitude != nil && s.Longitude != nil && *s.Latitude != 0 && *s.Longitude != 0
}

// TourStop is one numbered stop of the audio walking tour.
type TourStop struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Audio     string  `json:"audio,omitempty"`
}
