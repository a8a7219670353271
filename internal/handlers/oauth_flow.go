package handlers

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"taskboard/internal/security"
)

const (
	appleAuthURL  = "https://appleid.apple.com/auth/authorize"
	appleTokenURL = "https://appleid.apple.com/auth/token"
	appleKeysURL  = "https://appleid.apple.com/auth/keys"

	googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// OAuthIdentity is the verified identity returned by a provider after the
// code exchange
type OAuthIdentity struct {
	Subject string
	Email   string
	Name    string
}

// OAuthProvider pairs an oauth2 client configuration with a provider
// specific identity fetch
type OAuthProvider struct {
	Name     string
	Config   *oauth2.Config
	Identity func(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token, nonce string) (*OAuthIdentity, error)
}

// NewGoogleProvider configures Google sign-in. The identity comes from the
// userinfo endpoint using the exchanged access token.
func NewGoogleProvider(clientID, clientSecret, redirectBaseURL string) *OAuthProvider {
	return &OAuthProvider{
		Name: "google",
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectBaseURL + "/auth/google/callback",
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		Identity: fetchGoogleIdentity,
	}
}

// NewAppleProvider configures Sign in with Apple. Apple returns the identity
// inside a signed id_token which is verified against Apple's published keys.
func NewAppleProvider(clientID, clientSecret, redirectBaseURL string) *OAuthProvider {
	return &OAuthProvider{
		Name: "apple",
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectBaseURL + "/auth/apple/callback",
			Scopes:       []string{"email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  appleAuthURL,
				TokenURL: appleTokenURL,
			},
		},
		Identity: fetchAppleIdentity,
	}
}

func fetchGoogleIdentity(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token, _ string) (*OAuthIdentity, error) {
	client := cfg.Client(ctx, token)
	resp, err := client.Get(googleUserinfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request returned status %d", resp.StatusCode)
	}

	var info struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo: %w", err)
	}
	if info.ID == "" {
		return nil, errors.New("userinfo response missing subject")
	}

	return &OAuthIdentity{Subject: info.ID, Email: info.Email, Name: info.Name}, nil
}

func fetchAppleIdentity(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token, nonce string) (*OAuthIdentity, error) {
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("token response missing id_token")
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(rawIDToken, claims, appleKeyFunc(ctx),
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer("https://appleid.apple.com"),
		jwt.WithAudience(cfg.ClientID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id_token: %w", err)
	}

	if tokenNonce, _ := claims["nonce"].(string); nonce != "" && tokenNonce != nonce {
		return nil, errors.New("id_token nonce mismatch")
	}

	subject, _ := claims["sub"].(string)
	if subject == "" {
		return nil, errors.New("id_token missing subject")
	}
	email, _ := claims["email"].(string)

	return &OAuthIdentity{Subject: subject, Email: email, Name: email}, nil
}

// appleKeyFunc resolves the signing key for an id_token from Apple's JWKS
// endpoint by key id
func appleKeyFunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("id_token missing kid header")
		}

		keys, err := fetchAppleKeys(ctx)
		if err != nil {
			return nil, err
		}
		key, ok := keys[kid]
		if !ok {
			return nil, fmt.Errorf("no Apple key found for kid %q", kid)
		}
		return key, nil
	}
}

func fetchAppleKeys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, appleKeysURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Apple keys: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.Unmarshal(body, &jwks); err != nil {
		return nil, fmt.Errorf("failed to decode Apple keys: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" {
			continue
		}
		nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			continue
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = &rsa.PublicKey{
			N: new(big.Int).SetBytes(nBytes),
			E: int(new(big.Int).SetBytes(eBytes).Int64()),
		}
	}
	return keys, nil
}

// StartOAuth redirects to the provider's consent page with a fresh state
// value bound to a short-lived cookie
func (h *AuthHandler) StartOAuth(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers[r.PathValue("provider")]
	if !ok {
		http.NotFound(w, r)
		return
	}

	state := security.GenerateSessionID()
	nonce := security.GenerateSessionID()
	http.SetCookie(w, tempCookie(r, "oauth_state", state))
	http.SetCookie(w, tempCookie(r, "oauth_nonce", nonce))

	opts := []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("nonce", nonce)}
	if provider.Name == "apple" {
		// Apple requires form_post when identity scopes are requested
		opts = append(opts, oauth2.SetAuthURLParam("response_mode", "form_post"))
	}
	http.Redirect(w, r, provider.Config.AuthCodeURL(state, opts...), http.StatusSeeOther)
}

// OAuthCallback completes the code exchange and opens a session for the
// verified identity. Apple posts the callback, Google uses a redirect, so
// parameters are read from the form either way.
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers[r.PathValue("provider")]
	if !ok {
		http.NotFound(w, r)
		return
	}

	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid callback", "", err)
		return
	}

	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.FormValue("state") {
		respondWithError(w, http.StatusForbidden, "Invalid OAuth state", "OAuth state mismatch", err)
		return
	}
	http.SetCookie(w, security.CreateDeleteCookie(r, "oauth_state"))

	var nonce string
	if nonceCookie, err := r.Cookie("oauth_nonce"); err == nil {
		nonce = nonceCookie.Value
		http.SetCookie(w, security.CreateDeleteCookie(r, "oauth_nonce"))
	}

	code := r.FormValue("code")
	if code == "" {
		h.failSignIn(w, "Sign-in was cancelled", nil)
		return
	}

	token, err := provider.Config.Exchange(r.Context(), code)
	if err != nil {
		h.failSignIn(w, "Sign-in failed, please try again", err)
		return
	}

	identity, err := provider.Identity(r.Context(), provider.Config, token, nonce)
	if err != nil {
		h.failSignIn(w, "Sign-in failed, please try again", err)
		return
	}

	session, user, err := h.authService.OAuthSignIn(provider.Name, identity.Subject, identity.Email, identity.Name)
	if err != nil {
		h.failSignIn(w, "Sign-in failed, please try again", err)
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, "session_id", session.ID, session.ExpiresAt))
	http.Redirect(w, r, roleHome(user.Role), http.StatusSeeOther)
}

// failSignIn surfaces a sign-in failure on the login page. Nothing is
// retried; the user starts over.
func (h *AuthHandler) failSignIn(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		log.Printf("OAuth sign-in failed: %v", err)
	}
	h.renderAuthPage(w, "login.tmpl", authPageData{
		Error:     msg,
		Providers: h.providerNames(),
	})
}

func tempCookie(r *http.Request, name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		Secure:   security.IsSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	}
}
