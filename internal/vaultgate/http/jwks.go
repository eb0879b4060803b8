package http

import (
	"net/http"

	"github.com/aussiebroadwan/vaultgate/pkg/httpx"
	"github.com/aussiebroadwan/vaultgate/pkg/jwtx"
	"github.com/aussiebroadwan/vaultgate/pkg/vaultsdk"
)

// JWKSHandler exposes the public keys that withdrawal grants are signed with.
//
//	@Summary		Get JWKS
//	@Description	Returns the JSON Web Key Set used to verify withdrawal grants (EdDSA).
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	vaultsdk.JWKSResponse	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get].
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, vaultsdk.JWKSResponse(keys.PublicJWKS()))
	}
}
