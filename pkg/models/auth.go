package models

import (
	"github.com/golang-jwt/jwt/v5"
)

type JWTClaims struct {
	Role string `json:"role"` // admin, operator
	jwt.RegisteredClaims
}

type CacheInvalidationRequest struct {
	Keys []string `json:"keys,omitempty" validate:"omitempty,dive,oneof=content collaborative catalog"`
}

type CacheOperationResponse struct {
	Artifacts []string `json:"artifacts"`
	Status    string   `json:"status"`
}
