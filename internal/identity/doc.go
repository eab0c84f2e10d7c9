// Package identity binds the external identity provider that owns user accounts.
//
// The provider speaks the Firebase-compatible Identity Toolkit REST API:
//
//	POST {auth_url}/v1/accounts:signInWithPassword?key={api_key}
//	POST {auth_url}/v1/accounts:signUp?key={api_key}
//	POST {token_url}?key={api_key}   (grant_type=refresh_token)
//
// Sign-in and sign-up return a [Credential]. Short-lived bearer credentials are minted from it through
// [Provider.TokenSource], which delegates refresh to [oauth2.Config.TokenSource]. The bearer value is the
// provider's ID token; its claims are decoded with golang-jwt without verification, since the backend
// is the party that verifies them.
package identity
