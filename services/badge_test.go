package services

import (
	"testing"
	"time"

	"career-engagement-system/events"
	"career-engagement-system/models"

	"github.com/google/uuid"
)

func createBadge(t *testing.T, e *testEngine, code string, xpReward int64, trigger models.BadgeTrigger) models.BadgeDefinition {
	t.Helper()
	def := models.BadgeDefinition{
		ID:       uuid.NewString(),
		TenantID: testTenant,
		Code:     code,
		Name:     code,
		XPReward: xpReward,
		Trigger:  trigger,
		Active:   true,
	}
	if err := e.db.Create(&def).Error; err != nil {
		t.Fatalf("failed to create badge %s: %v", code, err)
	}
	return def
}

func TestBadgeAwardedOnceOnCounterThreshold(t *testing.T) {
	e := newTestEngine(t)
	createBadge(t, e, "CONNECTOR", 25, models.BadgeTrigger{
		Kind:  models.TriggerThreshold,
		Field: "connection_added",
		Op:    models.OpGT,
		Value: 10,
	})

	// 10 connections: strictly-greater not met yet.
	awarded, err := e.progression.RecordActivity(testAccount, testTenant, "connection_added", 10)
	if err != nil {
		t.Fatalf("RecordActivity failed: %v", err)
	}
	if len(awarded) != 0 {
		t.Fatalf("badge awarded at threshold boundary: %+v", awarded)
	}

	// 11th connection crosses it.
	awarded, err = e.progression.RecordActivity(testAccount, testTenant, "connection_added", 1)
	if err != nil {
		t.Fatalf("RecordActivity failed: %v", err)
	}
	if len(awarded) != 1 || awarded[0].Code != "CONNECTOR" {
		t.Fatalf("awarded = %+v, want CONNECTOR", awarded)
	}

	// XP reward landed on the account.
	var acc models.Account
	e.db.First(&acc, "id = ?", testAccount)
	if acc.TotalXP != 25 {
		t.Errorf("TotalXP = %d, want 25", acc.TotalXP)
	}

	// Further activity never re-awards.
	awarded, err = e.progression.RecordActivity(testAccount, testTenant, "connection_added", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(awarded) != 0 {
		t.Errorf("badge re-awarded: %+v", awarded)
	}
	if got := len(e.pub.byTopic(events.TopicBadgeAwarded)); got != 1 {
		t.Errorf("badge-awarded events = %d, want 1", got)
	}
}

func TestBadgeXPRewardDoesNotRecurse(t *testing.T) {
	e := newTestEngine(t)
	// Earning LEVEL_UP pushes XP past 100, which would satisfy XP_100 — but a
	// single evaluation pass must not chase its own rewards.
	createBadge(t, e, "LEVEL_UP", 60, models.BadgeTrigger{
		Kind:  models.TriggerThreshold,
		Field: models.StatTotalXP,
		Op:    models.OpGTE,
		Value: 50,
	})
	createBadge(t, e, "XP_100", 0, models.BadgeTrigger{
		Kind:  models.TriggerThreshold,
		Field: models.StatTotalXP,
		Op:    models.OpGTE,
		Value: 100,
	})

	_, awarded, err := e.progression.AwardXP(testAccount, testTenant, 50, "test")
	if err != nil {
		t.Fatalf("AwardXP failed: %v", err)
	}
	if len(awarded) != 1 || awarded[0].Code != "LEVEL_UP" {
		t.Fatalf("awarded = %+v, want only LEVEL_UP", awarded)
	}

	// The next event picks up the now-satisfied second badge.
	_, awarded, err = e.progression.AwardXP(testAccount, testTenant, 1, "test")
	if err != nil {
		t.Fatal(err)
	}
	if len(awarded) != 1 || awarded[0].Code != "XP_100" {
		t.Fatalf("awarded = %+v, want XP_100", awarded)
	}
}

func TestInactiveBadgeNeverAwarded(t *testing.T) {
	e := newTestEngine(t)
	def := createBadge(t, e, "RETIRED", 10, models.BadgeTrigger{
		Kind:  models.TriggerThreshold,
		Field: models.StatTotalXP,
		Op:    models.OpGTE,
		Value: 1,
	})
	e.db.Model(&def).Update("active", false)

	_, awarded, err := e.progression.AwardXP(testAccount, testTenant, 500, "test")
	if err != nil {
		t.Fatal(err)
	}
	if len(awarded) != 0 {
		t.Errorf("inactive badge awarded: %+v", awarded)
	}
}

func TestEvalTrigger(t *testing.T) {
	acc := &models.Account{TotalXP: 250, CurrentStreak: 7, LongestStreak: 12}
	counters := map[string]int64{"profile_completed": 1, "applications_sent": 4}
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	past := time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		trigger models.BadgeTrigger
		want    bool
	}{
		{"threshold gte on xp", models.BadgeTrigger{Kind: models.TriggerThreshold, Field: models.StatTotalXP, Op: models.OpGTE, Value: 250}, true},
		{"threshold gt not met", models.BadgeTrigger{Kind: models.TriggerThreshold, Field: models.StatTotalXP, Op: models.OpGT, Value: 250}, false},
		{"threshold lt on streak", models.BadgeTrigger{Kind: models.TriggerThreshold, Field: models.StatCurrentStreak, Op: models.OpLT, Value: 10}, true},
		{"threshold lte on longest streak", models.BadgeTrigger{Kind: models.TriggerThreshold, Field: models.StatLongestStreak, Op: models.OpLTE, Value: 12}, true},
		{"threshold on level", models.BadgeTrigger{Kind: models.TriggerThreshold, Field: models.StatLevel, Op: models.OpGTE, Value: 3}, true},
		{"equals on counter", models.BadgeTrigger{Kind: models.TriggerEquals, Field: "profile_completed", Value: 1}, true},
		{"equals miss", models.BadgeTrigger{Kind: models.TriggerEquals, Field: "applications_sent", Value: 5}, false},
		{"unknown counter is zero", models.BadgeTrigger{Kind: models.TriggerThreshold, Field: "never_seen", Op: models.OpGTE, Value: 1}, false},
		{"date range inside", models.BadgeTrigger{Kind: models.TriggerDateRange, From: &from, To: &to}, true},
		{"date range expired", models.BadgeTrigger{Kind: models.TriggerDateRange, From: &from, To: &past}, false},
		{"date range open-ended", models.BadgeTrigger{Kind: models.TriggerDateRange, From: &from}, true},
		{
			"all_of holds when every child holds",
			models.BadgeTrigger{Kind: models.TriggerAllOf, All: []models.BadgeTrigger{
				{Kind: models.TriggerThreshold, Field: models.StatCurrentStreak, Op: models.OpGTE, Value: 7},
				{Kind: models.TriggerEquals, Field: "profile_completed", Value: 1},
			}},
			true,
		},
		{
			"all_of fails on one child",
			models.BadgeTrigger{Kind: models.TriggerAllOf, All: []models.BadgeTrigger{
				{Kind: models.TriggerThreshold, Field: models.StatCurrentStreak, Op: models.OpGTE, Value: 7},
				{Kind: models.TriggerThreshold, Field: "applications_sent", Op: models.OpGTE, Value: 100},
			}},
			false,
		},
		{"empty all_of never fires", models.BadgeTrigger{Kind: models.TriggerAllOf}, false},
		{"unknown kind never fires", models.BadgeTrigger{Kind: "mystery"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := evalTrigger(tt.trigger, acc, counters, 0, now); got != tt.want {
				t.Errorf("evalTrigger() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBadgeCountStatFeedsMetaBadge(t *testing.T) {
	e := newTestEngine(t)
	createBadge(t, e, "FIRST_STEPS", 0, models.BadgeTrigger{
		Kind:  models.TriggerThreshold,
		Field: models.StatTotalXP,
		Op:    models.OpGTE,
		Value: 10,
	})
	createBadge(t, e, "COLLECTOR", 0, models.BadgeTrigger{
		Kind:  models.TriggerThreshold,
		Field: models.StatBadgeCount,
		Op:    models.OpGTE,
		Value: 1,
	})

	// FIRST_STEPS lands this pass, which makes COLLECTOR's count reach 1 —
	// within the same pass for definitions evaluated later.
	_, err := e.badges.Evaluate(testAccount, testTenant)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if _, _, err := e.progression.AwardXP(testAccount, testTenant, 10, "seed"); err != nil {
		t.Fatal(err)
	}
	awarded, err := e.badges.Evaluate(testAccount, testTenant)
	if err != nil {
		t.Fatal(err)
	}

	rows, _, err := e.badges.EarnedBadges(testAccount)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("earned badges = %d (last pass awarded %+v), want 2", len(rows), awarded)
	}
}
