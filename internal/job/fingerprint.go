package job

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewID generates a job identifier (spec.md §3: "opaque 128-bit
// identifier").
func NewID() string {
	return uuid.NewString()
}

// Fingerprint computes the duplicate-prevention key for a job request:
// hash(video_ref, source_lang, target_lang) (spec.md §4.1).
func Fingerprint(videoRef, sourceLang, targetLang string) string {
	sum := sha256.Sum256([]byte(videoRef + "|" + sourceLang + "|" + targetLang))
	return hex.EncodeToString(sum[:])
}

// CheckpointFingerprint computes the checkpoint-validity key for a
// translation task: hash(subtitle path, source lang, target lang)
// (spec.md §3, "Checkpoint metadata MUST match the current task's
// (file path, source lang, target lang)").
func CheckpointFingerprint(subtitlePath, sourceLang, targetLang string) string {
	sum := sha256.Sum256([]byte(subtitlePath + "|" + sourceLang + "|" + targetLang))
	return hex.EncodeToString(sum[:])
}
