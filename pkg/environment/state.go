// Package environment models the season and weather cycles that gate which
// verses may be shown.
package environment

import (
	"fmt"
	"strings"
)

// Season is one of the four cyclic seasons. SeasonAny is only meaningful in
// conditions and is never the current season.
type Season int

const (
	SeasonAny Season = iota
	Spring
	Summer
	Autumn
	Winter
)

var seasonNames = map[Season]string{
	SeasonAny: "any",
	Spring:    "spring",
	Summer:    "summer",
	Autumn:    "autumn",
	Winter:    "winter",
}

func (s Season) String() string {
	if name, ok := seasonNames[s]; ok {
		return name
	}
	return fmt.Sprintf("season(%d)", int(s))
}

// Next returns the following season, wrapping Winter to Spring
func (s Season) Next() Season {
	if s >= Winter || s < Spring {
		return Spring
	}
	return s + 1
}

// ParseSeason parses a season name. The empty string and "none" mean SeasonAny.
func ParseSeason(name string) (Season, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "any", "none":
		return SeasonAny, nil
	case "spring":
		return Spring, nil
	case "summer":
		return Summer, nil
	case "autumn", "fall":
		return Autumn, nil
	case "winter":
		return Winter, nil
	}
	return SeasonAny, fmt.Errorf("unknown season %q", name)
}

func (s Season) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Season) UnmarshalText(text []byte) error {
	parsed, err := ParseSeason(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Weather is either sunny or rainy. WeatherAny is only meaningful in conditions.
type Weather int

const (
	WeatherAny Weather = iota
	Sunny
	Rainy
)

func (w Weather) String() string {
	switch w {
	case WeatherAny:
		return "any"
	case Sunny:
		return "sunny"
	case Rainy:
		return "rainy"
	default:
		return fmt.Sprintf("weather(%d)", int(w))
	}
}

// ParseWeather parses a weather name. The empty string and "none" mean WeatherAny.
func ParseWeather(name string) (Weather, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "any", "none":
		return WeatherAny, nil
	case "sunny":
		return Sunny, nil
	case "rainy":
		return Rainy, nil
	}
	return WeatherAny, fmt.Errorf("unknown weather %q", name)
}

func (w Weather) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

func (w *Weather) UnmarshalText(text []byte) error {
	parsed, err := ParseWeather(string(text))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// State is the current (season, weather) pair
type State struct {
	Season  Season  `json:"season"`
	Weather Weather `json:"weather"`
}

// Initial is the state every run starts in
func Initial() State {
	return State{Season: Spring, Weather: Sunny}
}

func (s State) String() string {
	return s.Season.String() + "/" + s.Weather.String()
}
