package photos

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/pysugar/photo-nexus/internal/db/models"
)

// Resolver maps a user-supplied identifier to one of the user's rows. It
// returns nil when nothing matches.
type Resolver func(ctx context.Context, db *gorm.DB, userID, identifier string) (*models.Photo, error)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ResolveIdentifier tries, in order, an exact object id, an exact name and a
// name substring. The first match wins; substring matches are ambiguous when
// several names share the fragment, and the oldest row is picked.
func ResolveIdentifier(ctx context.Context, db *gorm.DB, userID, identifier string) (*models.Photo, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil
	}
	attempts := []struct {
		query string
		arg   string
	}{
		{"photo_id = ?", identifier},
		{"photo_name = ?", identifier},
		{`photo_name LIKE ? ESCAPE '\'`, "%" + likeEscaper.Replace(identifier) + "%"},
	}
	for _, a := range attempts {
		var row models.Photo
		err := db.WithContext(ctx).Where("user_id = ?", userID).Where(a.query, a.arg).Order("id").Take(&row).Error
		if err == nil {
			return &row, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, nil
}
