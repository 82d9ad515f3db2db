package common

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID 生成 UUID
func GenerateUUID() string {
	return uuid.New().String()
}

// ShortID 生成 8 碼隨機後綴（取 UUID 第一段）
func ShortID() string {
	return strings.SplitN(uuid.New().String(), "-", 2)[0]
}
