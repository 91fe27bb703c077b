package oauth

import (
	"time"

	"golang.org/x/oauth2"
)

// Token is the credential set needed to query an org.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	InstanceURL  string    `json:"instance_url"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// Complete reports whether every field needed to resume a session is set.
func (t Token) Complete() bool {
	return t.AccessToken != "" && t.RefreshToken != "" && t.InstanceURL != ""
}

// Usable reports whether t can query an org. Password logins yield tokens
// without a refresh token, which are usable but never persisted.
func (t Token) Usable() bool {
	return t.AccessToken != "" && t.InstanceURL != ""
}

// Credentials are the integration user settings for the password flow.
type Credentials struct {
	Username      string
	Password      string
	SecurityToken string
}

// Complete reports whether a password login can be attempted. The security
// token is optional for orgs with trusted IP ranges.
func (c Credentials) Complete() bool {
	return c.Username != "" && c.Password != ""
}

func (t Token) oauth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       t.Expiry,
	}
}

// fromOAuth2 converts a token response, keeping fallback values for fields
// the response omits. Refresh responses carry no refresh token.
func fromOAuth2(tok *oauth2.Token, fallback Token) Token {
	out := Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		InstanceURL:  fallback.InstanceURL,
		Expiry:       tok.Expiry,
	}
	if out.RefreshToken == "" {
		out.RefreshToken = fallback.RefreshToken
	}
	if u, ok := tok.Extra("instance_url").(string); ok && u != "" {
		out.InstanceURL = u
	}
	return out
}
