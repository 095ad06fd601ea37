package providers

import (
	"github.com/samber/do/v2"

	"github.com/midasapp/midas-server/internal/auth"
	"github.com/midasapp/midas-server/internal/config"
	"github.com/midasapp/midas-server/internal/logger"
)

// AuthKey is the PASETO access-token key.
type AuthKey []byte

// ProvideAuthKey loads the access-token key from the data directory, generating it on first start.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	key, err := auth.LoadOrGenerateKey(cfg.Data.BasePath)
	if err != nil {
		return nil, err
	}
	cfg.Auth.AccessTokenKey = key

	log.Info("Auth key loaded")
	return AuthKey(key), nil
}

// ProvideTokenService provides the PASETO token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	key := do.MustInvoke[AuthKey](i)

	return auth.NewTokenService(key, cfg.Auth.AccessTokenDuration, cfg.Auth.RefreshTokenDuration)
}
