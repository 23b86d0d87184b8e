package utils

import (
	"crypto/md5"
	"encoding/hex"
)

// BytesMD5 hashes a byte slice.
func BytesMD5(data []byte) string {
	hash := md5.New()
	hash.Write(data)
	return hex.EncodeToString(hash.Sum(nil))
}

// StringMD5 hashes a string, used to key cached results by source URL.
func StringMD5(s string) string {
	return BytesMD5([]byte(s))
}
