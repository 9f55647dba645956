package unit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// エラーメッセージの部分一致を確認する共通ヘルパー
func assertErrContains(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error containing %q, got nil", want)
	}
	assert.Contains(t, err.Error(), want)
}
