package services

import (
	"testing"
	"time"

	"career-engagement-system/events"
	"career-engagement-system/models"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestRecordLoginFirstDay(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.streaks.RecordLogin(testAccount, testTenant, day("2026-03-01"))
	if err != nil {
		t.Fatalf("RecordLogin failed: %v", err)
	}
	if res.Streak != 1 || res.LongestStreak != 1 || res.AlreadyCounted {
		t.Errorf("unexpected result: %+v", res)
	}
	if got := len(e.pub.byTopic(events.TopicStreakChanged)); got != 1 {
		t.Errorf("streak-changed events = %d, want 1", got)
	}
}

func TestRecordLoginSameDayIsNoOp(t *testing.T) {
	e := newTestEngine(t)

	if _, err := e.streaks.RecordLogin(testAccount, testTenant, day("2026-03-01")); err != nil {
		t.Fatalf("first login failed: %v", err)
	}

	res, err := e.streaks.RecordLogin(testAccount, testTenant, day("2026-03-01"))
	if err != nil {
		t.Fatalf("replayed login failed: %v", err)
	}
	if !res.AlreadyCounted {
		t.Error("replayed login not flagged AlreadyCounted")
	}
	if res.Streak != 1 {
		t.Errorf("streak = %d, want 1", res.Streak)
	}

	// One login record, one event.
	var count int64
	e.db.Model(&models.LoginRecord{}).Where("account_id = ?", testAccount).Count(&count)
	if count != 1 {
		t.Errorf("login records = %d, want 1", count)
	}
	if got := len(e.pub.byTopic(events.TopicStreakChanged)); got != 1 {
		t.Errorf("streak-changed events = %d, want 1", got)
	}
}

func TestRecordLoginConsecutiveDaysIncrement(t *testing.T) {
	e := newTestEngine(t)

	days := []string{"2026-03-01", "2026-03-02", "2026-03-03"}
	var res *StreakResult
	var err error
	for _, d := range days {
		res, err = e.streaks.RecordLogin(testAccount, testTenant, day(d))
		if err != nil {
			t.Fatalf("RecordLogin(%s) failed: %v", d, err)
		}
	}
	if res.Streak != 3 || res.LongestStreak != 3 {
		t.Errorf("streak = %d (longest %d), want 3", res.Streak, res.LongestStreak)
	}
}

func TestRecordLoginGapWithoutTokenResets(t *testing.T) {
	e := newTestEngine(t)

	if _, err := e.streaks.RecordLogin(testAccount, testTenant, day("2026-03-01")); err != nil {
		t.Fatal(err)
	}
	if _, err := e.streaks.RecordLogin(testAccount, testTenant, day("2026-03-02")); err != nil {
		t.Fatal(err)
	}

	// Missed 03-03, no freeze token available.
	res, err := e.streaks.RecordLogin(testAccount, testTenant, day("2026-03-04"))
	if err != nil {
		t.Fatalf("RecordLogin failed: %v", err)
	}
	if res.Streak != 1 {
		t.Errorf("streak = %d, want 1 after reset", res.Streak)
	}
	if res.FreezeConsumed {
		t.Error("FreezeConsumed = true with no tokens")
	}
	if res.LongestStreak != 2 {
		t.Errorf("longest = %d, want 2 preserved", res.LongestStreak)
	}
}

func TestRecordLoginGapConsumesFreezeToken(t *testing.T) {
	e := newTestEngine(t)

	// Build a 6-day streak, then hand the account one freeze token.
	for d := 1; d <= 6; d++ {
		if _, err := e.streaks.RecordLogin(testAccount, testTenant, day("2026-03-01").AddDate(0, 0, d-1)); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.db.Model(&models.Account{}).Where("id = ?", testAccount).Update("freeze_tokens", 1).Error; err != nil {
		t.Fatal(err)
	}

	// Missed 03-07; log in on 03-08.
	res, err := e.streaks.RecordLogin(testAccount, testTenant, day("2026-03-08"))
	if err != nil {
		t.Fatalf("RecordLogin failed: %v", err)
	}
	if !res.FreezeConsumed {
		t.Fatal("freeze token not consumed")
	}
	if res.Streak != 6 {
		t.Errorf("streak = %d, want 6 preserved by the freeze", res.Streak)
	}
	if res.FreezeTokens != 0 {
		t.Errorf("freeze tokens = %d, want 0", res.FreezeTokens)
	}

	// Next consecutive day resumes incrementing.
	res, err = e.streaks.RecordLogin(testAccount, testTenant, day("2026-03-09"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Streak != 7 {
		t.Errorf("streak = %d, want 7", res.Streak)
	}
}

func TestRecordLoginMilestoneGrantsOneToken(t *testing.T) {
	e := newTestEngine(t)

	var res *StreakResult
	var err error
	for d := 0; d < 7; d++ {
		res, err = e.streaks.RecordLogin(testAccount, testTenant, day("2026-03-01").AddDate(0, 0, d))
		if err != nil {
			t.Fatal(err)
		}
		if d < 6 && res.MilestoneReached {
			t.Errorf("milestone flagged early at streak %d", res.Streak)
		}
	}
	if !res.MilestoneReached {
		t.Error("milestone not flagged at streak 7")
	}
	if res.FreezeTokens != 1 {
		t.Errorf("freeze tokens = %d, want 1", res.FreezeTokens)
	}

	// Replaying day 7 must not re-grant the token.
	res, err = e.streaks.RecordLogin(testAccount, testTenant, day("2026-03-07"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.AlreadyCounted || res.FreezeTokens != 1 {
		t.Errorf("replay changed state: %+v", res)
	}
}

func TestRecordLoginOutOfOrderEventIsIgnored(t *testing.T) {
	e := newTestEngine(t)

	if _, err := e.streaks.RecordLogin(testAccount, testTenant, day("2026-03-05")); err != nil {
		t.Fatal(err)
	}

	// A late event for an earlier day must not rewind anything.
	res, err := e.streaks.RecordLogin(testAccount, testTenant, day("2026-03-03"))
	if err != nil {
		t.Fatalf("RecordLogin failed: %v", err)
	}
	if !res.AlreadyCounted {
		t.Error("out-of-order login not treated as already counted")
	}

	var acc models.Account
	if err := e.db.First(&acc, "id = ?", testAccount).Error; err != nil {
		t.Fatal(err)
	}
	if acc.CurrentStreak != 1 {
		t.Errorf("streak = %d, want 1", acc.CurrentStreak)
	}
	if got := truncateDay(*acc.LastLoginDay); !got.Equal(day("2026-03-05")) {
		t.Errorf("LastLoginDay rewound to %v", got)
	}
}

func TestStreakMilestonesEnvOverride(t *testing.T) {
	t.Setenv("STREAK_MILESTONES", "3, 5")
	set := streakMilestones()
	if !set[3] || !set[5] || set[7] {
		t.Errorf("unexpected milestone set: %v", set)
	}

	t.Setenv("STREAK_MILESTONES", "garbage,-1")
	set = streakMilestones()
	if !set[7] {
		t.Error("invalid override did not fall back to defaults")
	}
}
