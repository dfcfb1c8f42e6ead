package services

import (
	"log"
	"os"
	"strconv"
)

// DefaultXPPerLevel is the flat per-level XP cost (tunable via XP_PER_LEVEL).
const DefaultXPPerLevel = 100

// LevelInfo is the full breakdown for a cumulative XP value. Level is always
// recomputed from XP — it is never stored.
type LevelInfo struct {
	Level             int   `json:"level"`
	TotalXP           int64 `json:"total_xp"`
	ProgressIntoLevel int64 `json:"progress_into_level"`
	XPToNextLevel     int64 `json:"xp_to_next_level"`
}

// XPPerLevel reads the configured per-level cost, falling back to the default.
func XPPerLevel() int64 {
	raw := os.Getenv("XP_PER_LEVEL")
	if raw == "" {
		return DefaultXPPerLevel
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		log.Printf("⚠️  Invalid XP_PER_LEVEL=%q, using default %d", raw, DefaultXPPerLevel)
		return DefaultXPPerLevel
	}
	return v
}

// ComputeLevel maps cumulative XP to a level: level = floor(xp/perLevel) + 1.
func ComputeLevel(totalXP, perLevel int64) LevelInfo {
	if perLevel <= 0 {
		perLevel = DefaultXPPerLevel
	}
	if totalXP < 0 {
		totalXP = 0
	}

	level := totalXP/perLevel + 1
	progress := totalXP - (level-1)*perLevel

	return LevelInfo{
		Level:             int(level),
		TotalXP:           totalXP,
		ProgressIntoLevel: progress,
		XPToNextLevel:     perLevel - progress,
	}
}
