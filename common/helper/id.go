package helper

import (
	"strings"

	"github.com/google/uuid"
)

// NewNonce 生成 12 位随机串（用于区分同一付款人的多次会话）
func NewNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
