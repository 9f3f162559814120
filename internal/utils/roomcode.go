package utils

import (
	"crypto/rand"
	"fmt"
)

// 去掉易混淆字符(0/O/1/I)的房间码字母表
const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateRoomCode 生成指定长度的房间码
func GenerateRoomCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid room code length: %d", length)
	}

	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}

	code := make([]byte, length)
	for i, b := range bytes {
		code[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return string(code), nil
}
