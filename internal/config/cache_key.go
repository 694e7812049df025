package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// QuizDocKey returns the cache key for a quiz's full document
func (r *CacheKeyStruct) QuizDocKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:doc", quizID)
}

// QuizGenKey returns the key counting invalidations of a quiz document
func (r *CacheKeyStruct) QuizGenKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:gen", quizID)
}

// ShareCodeKey returns the cache key mapping a share code to its quiz id
func (r *CacheKeyStruct) ShareCodeKey(code string) string {
	return fmt.Sprintf("quiz:code:%s", code)
}

// RevokedTokenKey returns the block list key for a revoked token id
func (r *CacheKeyStruct) RevokedTokenKey(jti string) string {
	return fmt.Sprintf("blocklist:%s", jti)
}

var CacheKey = NewCacheKeyStruct()
