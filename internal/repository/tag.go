package repository

import (
	"strings"

	"zanhu/internal/models"

	"gorm.io/gorm"
)

// ParseTags splits a comma separated tag string, trimming blanks and dropping duplicates.
func ParseTags(raw string) []string {
	return NormalizeTags(strings.Split(raw, ","))
}

// NormalizeTags trims names and drops empties and duplicates, keeping first-seen order.
func NormalizeTags(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// resolveTags loads or creates a Tag row for every name.
func resolveTags(tx *gorm.DB, names []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(names))
	for _, name := range NormalizeTags(names) {
		var tag models.Tag
		if err := tx.Where(models.Tag{Name: name}).FirstOrCreate(&tag).Error; err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// countTags counts tag usage through a join table, optionally restricted by a condition on the owner table.
func countTags(db *gorm.DB, joinTable, ownerTable, ownerKey, where string, args ...interface{}) ([]models.TagCount, error) {
	var out []models.TagCount
	q := db.Table("tags").
		Select("tags.name AS name, COUNT(*) AS count").
		Joins("JOIN " + joinTable + " jt ON jt.tag_id = tags.id").
		Joins("JOIN " + ownerTable + " o ON o.id = jt." + ownerKey)
	if where != "" {
		q = q.Where(where, args...)
	}
	err := q.Group("tags.name").Order("count DESC").Order("tags.name ASC").Scan(&out).Error
	return out, err
}
