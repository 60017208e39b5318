// Package tokensource provides OAuth2 client-credentials token acquisition
// for upstream endpoints that require Azure AD (or any standard OAuth2
// client-credentials provider) authentication instead of a static API key.
//
// Use NewClientCredentialsSource for the common case:
//
//	ts := tokensource.NewClientCredentialsSource(clientID, clientSecret, tokenURL, scopes)
//	// ts implements oauth2.TokenSource
//
// For Azure OpenAI deployments, AzureADTokenURL and AzureADScope supply the
// well-known endpoint and scope.
package tokensource
