package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jwebster45206/verse-engine/internal/storage"
)

func main() {
	dataDir := "data"
	if len(os.Args) > 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s [data-dir]\n", os.Args[0])
		os.Exit(1)
	}
	if len(os.Args) == 2 {
		dataDir = os.Args[1]
	}

	validator := &ContentValidator{
		content: storage.NewContent(dataDir, slog.New(slog.DiscardHandler)),
	}

	if err := validator.validateDir(dataDir); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Content is valid!")
}

type ContentValidator struct {
	content *storage.Content
	errors  []string
}

func (v *ContentValidator) validateDir(dataDir string) error {
	fmt.Printf("Validating %s...\n", dataDir)
	v.errors = nil
	ctx := context.Background()

	ids, err := v.content.ListSites(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		v.addError("no sites found in " + filepath.Join(dataDir, "sites"))
	}
	for _, id := range ids {
		v.validateID("site filename", id)
		v.validateStrict(filepath.Join(dataDir, "sites", id+".json"), &storage.SiteFile{})

		site, err := v.content.GetSite(ctx, id)
		if err != nil {
			v.addError(err.Error())
			continue
		}
		for _, e := range storage.ValidateSite(site) {
			v.addError(e.Error())
		}
		for _, item := range site.Items {
			if item != nil {
				v.validateID("item id in site "+id, item.ID)
			}
		}
	}

	farmPath := filepath.Join(dataDir, "farm.json")
	if v.validateStrict(farmPath, &storage.FarmFile{}) {
		farm, err := v.content.GetFarm(ctx)
		if err != nil {
			v.addError(err.Error())
		} else if farm != nil {
			for _, id := range farm.Plots {
				v.validateID("plot id", id)
			}
			for _, e := range storage.ValidateFarm(farm) {
				v.addError(e.Error())
			}
		}
	}

	actionsPath := filepath.Join(dataDir, "actions.json")
	if v.validateStrict(actionsPath, &[]storage.ActionFile{}) {
		actions, err := v.content.GetActions(ctx)
		if err != nil {
			v.addError(err.Error())
		}
		seen := make(map[string]bool)
		for _, a := range actions {
			v.validateID("action id", a.ID)
			if seen[a.ID] {
				v.addError(fmt.Sprintf("action %s is declared twice", a.ID))
			}
			seen[a.ID] = true
			if a.Duration <= 0 {
				v.addError(fmt.Sprintf("action %s needs a positive duration_seconds", a.ID))
			}
		}
	}

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", dataDir, strings.Join(v.errors, "\n"))
	}
	return nil
}

// validateStrict rejects unknown fields. It returns false when the file is
// absent or unusable.
func (v *ContentValidator) validateStrict(path string, target any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			v.addError(fmt.Sprintf("failed to read %s: %v", path, err))
		}
		return false
	}
	if !json.Valid(data) {
		v.addError(fmt.Sprintf("file %s contains invalid JSON", path))
		return false
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		v.addError(fmt.Sprintf("file %s failed strict JSON unmarshaling: %v", path, err))
		return false
	}
	return true
}

func (v *ContentValidator) validateID(fieldName, id string) {
	if id == "" {
		return
	}
	if !validIDRegex.MatchString(id) {
		v.addError(fmt.Sprintf("%s '%s' should be lowercase kebab-case", fieldName, id))
	}
}

func (v *ContentValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

var validIDRegex = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)
