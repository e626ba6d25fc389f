package token

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/pysugar/photo-nexus/internal/apperror"
	"github.com/pysugar/photo-nexus/internal/db/models"
	"github.com/pysugar/photo-nexus/internal/logging"
)

// RefreshWindow is how close to expiry a token may get before GetValid
// refreshes it.
const RefreshWindow = 5 * time.Minute

// proactiveWindow is used by the background loop, which runs far less often
// than requests arrive.
const proactiveWindow = 20 * time.Minute

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Record is the validated form of a stored DriveToken row.
type Record struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	Expiry       *time.Time
	Scope        string
}

// OAuth2 converts the record for use with provider SDKs.
func (r *Record) OAuth2() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    "Bearer",
	}
	if r.Expiry != nil {
		tok.Expiry = *r.Expiry
	}
	return tok
}

func recordFromRow(row *models.DriveToken) (*Record, error) {
	if strings.TrimSpace(row.AccessToken) == "" {
		return nil, apperror.ReauthRequired("stored credentials are incomplete")
	}
	rec := &Record{
		UserID:       row.UserID,
		AccessToken:  row.AccessToken,
		RefreshToken: row.RefreshToken,
		Scope:        row.Scope,
	}
	if row.Expiry != nil {
		t := time.UnixMilli(*row.Expiry).UTC()
		rec.Expiry = &t
	}
	return rec, nil
}

// Cache persists per-user Drive credentials and refreshes them on demand.
type Cache struct {
	db        *gorm.DB
	refresher Refresher
	flight    singleflight.Group
	now       func() time.Time
}

// NewCache creates a token cache backed by db.
func NewCache(db *gorm.DB, refresher Refresher) *Cache {
	return &Cache{db: db, refresher: refresher, now: time.Now}
}

// Save upserts tokens for userID. Refresh responses often omit the refresh
// token; an existing one is kept in that case.
func (c *Cache) Save(ctx context.Context, userID string, tok *oauth2.Token) error {
	if userID == "" || tok == nil || tok.AccessToken == "" {
		return apperror.InvalidInput("user id and access token are required")
	}
	row := models.DriveToken{
		UserID:       userID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       expiryMillis(tok.Expiry),
		Scope:        scopeOf(tok),
	}

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.DriveToken
		err := tx.Where("user_id = ?", userID).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&row).Error
		}
		if err != nil {
			return err
		}
		updates := map[string]any{
			"access_token": row.AccessToken,
			"expiry":       row.Expiry,
		}
		if row.RefreshToken != "" {
			updates["refresh_token"] = row.RefreshToken
		}
		if row.Scope != "" {
			updates["scope"] = row.Scope
		}
		return tx.Model(&existing).Updates(updates).Error
	})
	if err != nil {
		return apperror.Persistence("save Drive credentials", err)
	}
	return nil
}

// Load returns the stored record, or nil when the user never connected.
func (c *Cache) Load(ctx context.Context, userID string) (*Record, error) {
	var row models.DriveToken
	err := c.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Persistence("load Drive credentials", err)
	}
	return recordFromRow(&row)
}

// GetValid returns a usable record, refreshing it when it expires within
// RefreshWindow. It returns nil when no record exists.
func (c *Cache) GetValid(ctx context.Context, userID string) (*Record, error) {
	rec, err := c.Load(ctx, userID)
	if err != nil || rec == nil {
		return rec, err
	}
	if rec.Expiry == nil {
		return rec, nil
	}

	now := c.now()
	if rec.RefreshToken == "" {
		if !now.Before(*rec.Expiry) {
			return nil, apperror.ReauthRequired("access token expired and no refresh token is stored")
		}
		return rec, nil
	}
	if rec.Expiry.Sub(now) > RefreshWindow {
		return rec, nil
	}
	return c.refresh(ctx, rec)
}

func (c *Cache) refresh(ctx context.Context, rec *Record) (*Record, error) {
	v, err, _ := c.flight.Do(rec.UserID, func() (any, error) {
		tok, err := c.refresher.Refresh(ctx, rec.RefreshToken)
		if err != nil {
			return nil, apperror.TokenRefreshFailed(err)
		}
		if tok == nil || tok.AccessToken == "" {
			return nil, apperror.TokenRefreshFailed(errors.New("refresh response carried no access token"))
		}

		updated := *rec
		updated.AccessToken = tok.AccessToken
		updated.Expiry = nil
		if !tok.Expiry.IsZero() {
			t := tok.Expiry.UTC()
			updated.Expiry = &t
		}
		updates := map[string]any{
			"access_token": updated.AccessToken,
			"expiry":       expiryMillis(tok.Expiry),
		}
		if tok.RefreshToken != "" && tok.RefreshToken != rec.RefreshToken {
			updated.RefreshToken = tok.RefreshToken
			updates["refresh_token"] = tok.RefreshToken
		}
		if s := scopeOf(tok); s != "" {
			updated.Scope = s
			updates["scope"] = s
		}

		if err := c.db.WithContext(ctx).Model(&models.DriveToken{UserID: rec.UserID}).Updates(updates).Error; err != nil {
			return nil, apperror.Persistence("save refreshed Drive credentials", err)
		}
		logging.FromContext(ctx).Debug().
			Str("user_id", rec.UserID).
			Str("token", logging.MaskToken(updated.AccessToken)).
			Msg("refreshed drive token")
		return &updated, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Record), nil
}

// HasTokens reports whether userID has connected Drive.
func (c *Cache) HasTokens(ctx context.Context, userID string) (bool, error) {
	var count int64
	if err := c.db.WithContext(ctx).Model(&models.DriveToken{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return false, apperror.Persistence("check Drive connection", err)
	}
	return count > 0, nil
}

// Delete removes the user's credentials and reports whether a row existed.
func (c *Cache) Delete(ctx context.Context, userID string) (bool, error) {
	res := c.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.DriveToken{})
	if res.Error != nil {
		return false, apperror.Persistence("delete Drive credentials", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ConnectedUsers lists every user with stored credentials.
func (c *Cache) ConnectedUsers(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.db.WithContext(ctx).Model(&models.DriveToken{}).Order("user_id").Pluck("user_id", &ids).Error; err != nil {
		return nil, apperror.Persistence("list connected users", err)
	}
	return ids, nil
}

// StartRefreshLoop refreshes tokens nearing expiry until ctx is done.
func (c *Cache) StartRefreshLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.refreshExpiring(ctx)
			}
		}
	}()
	log.Info().Dur("interval", interval).Msg("drive token refresh loop started")
}

// refreshExpiring refreshes every record expiring within proactiveWindow.
// Records whose refresh token was revoked are removed so the user is asked
// to reconnect instead of failing on every request.
func (c *Cache) refreshExpiring(ctx context.Context) (refreshed int) {
	threshold := c.now().Add(proactiveWindow).UnixMilli()
	var rows []models.DriveToken
	if err := c.db.WithContext(ctx).
		Where("expiry IS NOT NULL AND expiry < ? AND refresh_token <> ''", threshold).
		Find(&rows).Error; err != nil {
		log.Warn().Err(err).Msg("failed to load expiring drive tokens")
		return 0
	}

	for i := range rows {
		rec, err := recordFromRow(&rows[i])
		if err != nil {
			continue
		}
		if _, err := c.refresh(ctx, rec); err != nil {
			if isPermanentRefreshError(err) {
				if _, derr := c.Delete(ctx, rec.UserID); derr != nil {
					log.Error().Err(derr).Str("user_id", rec.UserID).Msg("failed to remove revoked drive credentials")
					continue
				}
				log.Warn().Str("user_id", rec.UserID).Msg("drive refresh token revoked, credentials removed")
				continue
			}
			log.Warn().Err(err).Str("user_id", rec.UserID).Msg("transient drive token refresh failure")
			continue
		}
		refreshed++
	}
	return refreshed
}

func expiryMillis(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func scopeOf(tok *oauth2.Token) string {
	if s, ok := tok.Extra("scope").(string); ok {
		return s
	}
	return ""
}

func isPermanentRefreshError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	permanentMarkers := []string{
		"invalid_grant",
		"invalid_client",
		"unauthorized_client",
		"token has been expired or revoked",
		"revoked",
	}
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
