package models

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// TokenInfo is the provider credential obtained from a successful authorization callback.
type TokenInfo struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// NewTokenInfo converts an exchanged [oauth2.Token]. Granted scopes are read from the "scope" field of the token response.
func NewTokenInfo(tok *oauth2.Token) *TokenInfo {
	if tok == nil {
		return nil
	}

	info := &TokenInfo{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}

	if scope, ok := tok.Extra("scope").(string); ok {
		info.Scopes = strings.Fields(scope)
	}

	return info
}

// OAuth2 returns the credential in the form consumed by [oauth2.StaticTokenSource].
func (t *TokenInfo) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
}

// Valid reports whether the token carries an access token.
func (t *TokenInfo) Valid() bool {
	return t != nil && t.AccessToken != ""
}
