// Package report persists the artifacts of a run: the id mappings, the
// temporary passwords and an optional run archive in MongoDB.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/SusheelSathyaraj/SchoolDataMigrator/migration"
	"github.com/pkg/errors"
)

// WriteMappings saves the id mappings, one object per entity keyed by the
// source id
func WriteMappings(path string, registry *migration.Registry) error {
	return writeJSON(path, registry, 0644)
}

// WritePasswords saves username to temporary password. The file is only
// readable by its owner.
func WritePasswords(path string, passwords map[string]string) error {
	if passwords == nil {
		passwords = map[string]string{}
	}
	return writeJSON(path, passwords, 0600)
}

func writeJSON(path string, v interface{}, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "failed to create directory %s", dir)
		}
	}

	if err := os.WriteFile(path, data, perm); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	// WriteFile keeps the mode of an existing file
	if err := os.Chmod(path, perm); err != nil {
		return errors.Wrapf(err, "failed to set permissions on %s", path)
	}
	return nil
}

// PrintNextSteps prints where the artifacts went and what is left to do by hand
func PrintNextSteps(w io.Writer, mappingsFile, passwordsFile string, orphans []migration.OrphanedIdentity) {
	fmt.Fprintf(w, "\nMappings saved to: %s\n", mappingsFile)
	fmt.Fprintf(w, "Temporary passwords saved to: %s\n", passwordsFile)

	if len(orphans) > 0 {
		fmt.Fprintf(w, "\n%d auth identities could not be removed after their profile failed:\n", len(orphans))
		for _, orphan := range orphans {
			fmt.Fprintf(w, " - %s (source id %d): %s\n", orphan.Username, orphan.SourceID, orphan.IdentityID)
		}
	}

	fmt.Fprintln(w, "\nIMPORTANT NEXT STEPS:")
	fmt.Fprintln(w, "  1. Upload media files to Supabase Storage")
	fmt.Fprintln(w, "  2. Share temporary passwords with users or ask them to reset")
	fmt.Fprintln(w, "  3. Verify data integrity in Supabase dashboard")
}
