package storage

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jwebster45206/verse-engine/pkg/narrative"
	"github.com/jwebster45206/verse-engine/pkg/world"
)

// ValidateSite lists every problem found in a site definition
func ValidateSite(site *world.Site) []error {
	var errs []error
	if strings.TrimSpace(site.ID) == "" {
		errs = append(errs, fmt.Errorf("site has no id"))
	}
	if len(site.Items) == 0 {
		errs = append(errs, fmt.Errorf("site %s has no items", site.ID))
	}
	if site.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("site %s has a negative cooldown", site.ID))
	}
	errs = append(errs, validateItems("site "+site.ID, site.Items)...)
	return errs
}

// ValidateFarm lists every problem found in a farm definition
func ValidateFarm(farm *world.Farm) []error {
	var errs []error
	seen := make(map[string]bool)
	for _, id := range farm.Plots {
		if strings.TrimSpace(id) == "" {
			errs = append(errs, fmt.Errorf("farm has a plot with no id"))
			continue
		}
		if seen[id] {
			errs = append(errs, fmt.Errorf("farm plot %s is declared twice", id))
		}
		seen[id] = true
	}
	if len(farm.Rewards) > 0 && len(farm.Plots) < len(farm.Rewards) {
		errs = append(errs, fmt.Errorf("farm has %d rewards but only %d plots, no reward will be revealed",
			len(farm.Rewards), len(farm.Plots)))
	}
	if len(farm.Verses) < len(farm.Plots) {
		errs = append(errs, fmt.Errorf("farm has %d plots but only %d verses", len(farm.Plots), len(farm.Verses)))
	}

	items := append([]*narrative.Item{}, farm.Verses...)
	if farm.Closing != nil {
		items = append(items, farm.Closing)
	}
	errs = append(errs, validateItems("farm", items)...)
	return errs
}

func validateItems(owner string, items []*narrative.Item) []error {
	var errs []error
	ids := make(map[string]bool)
	for i, item := range items {
		if item == nil {
			errs = append(errs, fmt.Errorf("%s: item %d is null", owner, i))
			continue
		}
		if item.ID == "" {
			errs = append(errs, fmt.Errorf("%s: item %d has no id", owner, i))
		} else if ids[item.ID] {
			errs = append(errs, fmt.Errorf("%s: item %s is declared twice", owner, item.ID))
		}
		ids[item.ID] = true

		if item.PrimaryText == "" {
			errs = append(errs, fmt.Errorf("%s: item %s has no text", owner, item.ID))
		}
		if !utf8.ValidString(item.PrimaryText) || !utf8.ValidString(item.DescriptionText) {
			errs = append(errs, fmt.Errorf("%s: item %s is not valid UTF-8", owner, item.ID))
		}
		if !item.Emotion.Valid() {
			errs = append(errs, fmt.Errorf("%s: item %s has unknown emotion %q", owner, item.ID, item.Emotion))
		}
		if item.AudioSeconds < 0 {
			errs = append(errs, fmt.Errorf("%s: item %s has negative audio length", owner, item.ID))
		}
	}
	return errs
}
