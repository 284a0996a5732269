package database

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Migration is one numbered pair of SQL scripts shipped in the binary.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
	// Checksum of Up, recorded when applied so later edits are detected.
	Checksum string
}

func (m Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

//go:embed migrations/*.sql
var migrationFS embed.FS

var migrations = mustLoadMigrations(migrationFS)

func mustLoadMigrations(fsys fs.FS) []Migration {
	set, err := loadMigrations(fsys)
	if err != nil {
		panic(fmt.Sprintf("embedded migrations: %v", err))
	}
	return set
}

// loadMigrations reads migrations/NNNNNN_name.up.sql and its .down.sql twin.
func loadMigrations(fsys fs.FS) ([]Migration, error) {
	ups, err := fs.Glob(fsys, "migrations/*.up.sql")
	if err != nil {
		return nil, err
	}

	seen := make(map[int]string, len(ups))
	set := make([]Migration, 0, len(ups))
	for _, file := range ups {
		base := strings.TrimSuffix(path.Base(file), ".up.sql")
		rawVersion, name, ok := strings.Cut(base, "_")
		if !ok || name == "" {
			return nil, fmt.Errorf("%s: expected <version>_<name>.up.sql", file)
		}
		version, err := strconv.Atoi(rawVersion)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("%s: invalid version %q", file, rawVersion)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("%s: version %d already used by %s", file, version, prev)
		}
		seen[version] = file

		up, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, err
		}
		down, err := fs.ReadFile(fsys, path.Join("migrations", base+".down.sql"))
		if err != nil {
			return nil, fmt.Errorf("%s: missing down script: %w", file, err)
		}

		set = append(set, Migration{
			Version:  version,
			Name:     name,
			Up:       string(up),
			Down:     string(down),
			Checksum: checksum(string(up)),
		})
	}

	slices.SortFunc(set, func(a, b Migration) int { return a.Version - b.Version })
	return set, nil
}

func checksum(script string) string {
	return strconv.FormatUint(xxhash.Sum64String(script), 16)
}

// GetMigrations returns the embedded migrations ordered by version.
func GetMigrations() []Migration {
	return migrations
}

func GetMigrationByVersion(version int) *Migration {
	i := slices.IndexFunc(migrations, func(m Migration) bool { return m.Version == version })
	if i < 0 {
		return nil
	}
	m := migrations[i]
	return &m
}
