// Package services – TokenService
//
// TokenService hands out currently valid bearer tokens for a user and
// capability. Tokens far enough from expiry are returned straight from the
// sealed credential; otherwise one refresh call is made and the result is
// sealed and written back.
//
// Concurrent refreshes of the same credential inside this process are
// collapsed into one upstream call. Across processes the credential row is
// last-writer-wins, which is acceptable because a refresh only ever yields
// another valid token.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/tbourn/inbound-bridge/internal/clients/oauth"
	"github.com/tbourn/inbound-bridge/internal/clock"
	"github.com/tbourn/inbound-bridge/internal/domain"
	"github.com/tbourn/inbound-bridge/internal/repo"
)

// DefaultSafetyMargin is how close to expiry a token may get before it is
// refreshed.
const DefaultSafetyMargin = 2 * time.Minute

// defaultExpiresIn is assumed when the token endpoint omits expires_in.
const defaultExpiresIn = time.Hour

// Refresher performs a refresh_token grant.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (oauth.Token, error)
}

// Sealer seals and opens credential bundles. *vault.Vault satisfies it.
type Sealer interface {
	SealJSON(v any) (string, error)
	OpenJSON(blob string, dst any) error
}

// TokenService resolves valid access tokens.
type TokenService struct {
	DB        *gorm.DB
	Vault     Sealer
	Refresher Refresher
	Clock     clock.Clock

	// SafetyMargin defaults to DefaultSafetyMargin when zero.
	SafetyMargin time.Duration

	group singleflight.Group
}

// NewTokenService constructs a TokenService with the default margin.
func NewTokenService(db *gorm.DB, v Sealer, r Refresher, clk clock.Clock) *TokenService {
	if clk == nil {
		clk = clock.Real()
	}
	return &TokenService{DB: db, Vault: v, Refresher: r, Clock: clk, SafetyMargin: DefaultSafetyMargin}
}

func (s *TokenService) margin() time.Duration {
	if s.SafetyMargin > 0 {
		return s.SafetyMargin
	}
	return DefaultSafetyMargin
}

// GetValidToken returns an access token for userID that grants capability.
//
// Errors wrap domain.ErrCredentialMissing, domain.ErrDecryption or
// domain.ErrRefreshFailed. A failed refresh leaves the stored record as it
// was so the next call can retry.
func (s *TokenService) GetValidToken(ctx context.Context, userID string, capability domain.Capability) (string, error) {
	tr := otel.Tracer("services/TokenService")
	ctx, span := tr.Start(ctx, "GetValidToken",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("capability", string(capability)),
		),
	)
	defer span.End()

	cred, err := s.lookup(ctx, userID, capability)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.String("credential.id", cred.ID), attribute.String("platform", string(cred.Platform)))

	sec, err := s.OpenSecrets(ctx, cred)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	if sec.RefreshToken == "" {
		return "", fmt.Errorf("%w: no refresh token for %s", domain.ErrCredentialMissing, cred.Platform)
	}
	if sec.AccessToken != "" && sec.ExpiresAt.Sub(s.Clock.Now()) > s.margin() {
		tokenRefreshes.WithLabelValues("cached").Inc()
		return sec.AccessToken, nil
	}

	span.AddEvent("refresh")
	v, err, _ := s.group.Do(cred.ID, func() (any, error) {
		return s.refresh(ctx, cred, sec)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return v.(string), nil
}

// OpenSecrets decrypts cred's bundle. A decryption failure flags the record
// as needing reconnection before the error is returned.
func (s *TokenService) OpenSecrets(ctx context.Context, cred *domain.Credential) (domain.Secrets, error) {
	var sec domain.Secrets
	if cred.Blob == "" {
		return sec, fmt.Errorf("%w: empty credential", domain.ErrCredentialMissing)
	}
	if err := s.Vault.OpenJSON(cred.Blob, &sec); err != nil {
		if errors.Is(err, domain.ErrDecryption) {
			if merr := repo.MarkReconnectRequired(ctx, s.DB, cred.ID, "stored credential could not be decrypted"); merr != nil {
				log.Error().Err(merr).Str("credential_id", cred.ID).Msg("mark reconnect_required failed")
			}
		}
		return sec, err
	}
	return sec, nil
}

// lookup prefers the unified record; only the legacy capability may fall back
// to a single-capability record.
func (s *TokenService) lookup(ctx context.Context, userID string, capability domain.Capability) (*domain.Credential, error) {
	c, err := repo.GetCredential(ctx, s.DB, userID, domain.PlatformGoogle)
	switch {
	case err == nil && c.Connected && c.HasCapability(capability):
		return c, nil
	case err != nil && !errors.Is(err, repo.ErrNotFound):
		return nil, err
	}

	if capability != domain.LegacyCapability {
		return nil, fmt.Errorf("%w: no %s grant for user", domain.ErrCredentialMissing, capability)
	}
	c, err = repo.GetCredential(ctx, s.DB, userID, domain.PlatformGmail)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && !c.Connected) {
		return nil, fmt.Errorf("%w: no %s grant for user", domain.ErrCredentialMissing, capability)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *TokenService) refresh(ctx context.Context, cred *domain.Credential, sec domain.Secrets) (string, error) {
	tok, err := s.Refresher.Refresh(ctx, sec.RefreshToken)
	if err != nil {
		tokenRefreshes.WithLabelValues("failed").Inc()
		if !errors.Is(err, domain.ErrRefreshFailed) {
			err = fmt.Errorf("%w: %v", domain.ErrRefreshFailed, err)
		}
		return "", err
	}
	tokenRefreshes.WithLabelValues("refreshed").Inc()

	expiresIn := time.Duration(tok.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}
	next := sec
	next.AccessToken = tok.AccessToken
	next.ExpiresAt = s.Clock.Now().Add(expiresIn).UTC()
	if tok.RefreshToken != "" {
		next.RefreshToken = tok.RefreshToken
	}

	blob, err := s.Vault.SealJSON(next)
	if err == nil {
		err = repo.UpdateCredentialBlob(ctx, s.DB, cred.ID, blob)
	}
	if err != nil {
		// The new token is valid regardless; the next call refreshes again.
		log.Warn().Err(err).Str("credential_id", cred.ID).Msg("persist refreshed token failed")
	}
	return next.AccessToken, nil
}
