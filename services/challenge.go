package services

import (
	"log"
	"sort"

	"career-engagement-system/events"
	"career-engagement-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChallengeService tracks flip-challenge task progress and the one-time lump
// reward on full completion.
type ChallengeService struct {
	DB          *gorm.DB
	Events      events.Publisher
	Progression *ProgressionService
}

func NewChallengeService(db *gorm.DB, pub events.Publisher, progression *ProgressionService) *ChallengeService {
	return &ChallengeService{DB: db, Events: pub, Progression: progression}
}

type TaskStatus struct {
	TaskID    string `json:"task_id"`
	Position  int    `json:"position"`
	ActionTag string `json:"action_tag"`
	Target    int64  `json:"target"`
	Count     int64  `json:"count"`
}

type ChallengeStatus struct {
	ChallengeID   string         `json:"challenge_id"`
	Type          string         `json:"type"`
	Tasks         []TaskStatus   `json:"tasks"`
	Completed     bool           `json:"completed"`
	RewardGranted bool           `json:"reward_granted"` // true only on the call that granted it
	XPGranted     int64          `json:"xp_granted,omitempty"`
	AwardedBadges []AwardedBadge `json:"awarded_badges,omitempty"`
}

// RecordProgress increments the matching task's per-account counter, capped at
// the task target (excess discarded). When every task meets its target the
// lump XP reward is granted exactly once — the unique (account, challenge)
// completion row carries the idempotency.
func (s *ChallengeService) RecordProgress(accountID, tenantID, challengeID, actionTag string, delta int64) (*ChallengeStatus, error) {
	if delta <= 0 {
		delta = 1
	}

	var status ChallengeStatus
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var challenge models.Challenge
		err := tx.Preload("Tasks").Where("id = ? AND active = ?", challengeID, true).First(&challenge).Error
		if err == gorm.ErrRecordNotFound {
			return ErrChallengeNotFound
		}
		if err != nil {
			return err
		}

		status = ChallengeStatus{ChallengeID: challenge.ID, Type: string(challenge.Type)}
		if challenge.Type != models.ChallengeTypeFlip {
			// standard challenges carry no progress logic
			return nil
		}

		// account row lock serializes concurrent progress for this account
		if _, err := ensureAccountTx(tx, accountID, tenantID); err != nil {
			return err
		}

		tasks := challenge.Tasks
		sort.Slice(tasks, func(i, j int) bool { return tasks[i].Position < tasks[j].Position })

		var matched *models.ChallengeTask
		for i := range tasks {
			if tasks[i].ActionTag == actionTag {
				matched = &tasks[i]
				break
			}
		}
		if matched == nil {
			return ErrTaskNotFound
		}

		progress := map[string]int64{}
		taskIDs := make([]string, len(tasks))
		for i, t := range tasks {
			taskIDs[i] = t.ID
		}
		var rows []models.ChallengeTaskProgress
		if err := tx.Where("account_id = ? AND task_id IN ?", accountID, taskIDs).Find(&rows).Error; err != nil {
			return err
		}
		for _, row := range rows {
			progress[row.TaskID] = row.Count
		}

		newCount := progress[matched.ID] + delta
		if newCount > matched.Target {
			newCount = matched.Target
		}
		row := models.ChallengeTaskProgress{
			ID:        uuid.NewString(),
			AccountID: accountID,
			TenantID:  tenantID,
			TaskID:    matched.ID,
			Count:     newCount,
		}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "task_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"count": newCount}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		progress[matched.ID] = newCount

		completed := true
		for _, t := range tasks {
			status.Tasks = append(status.Tasks, TaskStatus{
				TaskID:    t.ID,
				Position:  t.Position,
				ActionTag: t.ActionTag,
				Target:    t.Target,
				Count:     progress[t.ID],
			})
			if progress[t.ID] < t.Target {
				completed = false
			}
		}
		status.Completed = completed
		if !completed {
			return nil
		}

		completion := models.ChallengeCompletion{
			ID:          uuid.NewString(),
			AccountID:   accountID,
			TenantID:    tenantID,
			ChallengeID: challenge.ID,
			XPGranted:   challenge.RewardXP,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&completion)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// lump reward already granted on an earlier completion
			return nil
		}

		status.RewardGranted = true
		status.XPGranted = challenge.RewardXP
		if challenge.RewardXP > 0 {
			_, awarded, err := s.Progression.AwardXPTx(tx, accountID, tenantID, challenge.RewardXP, "challenge:"+challenge.ID)
			if err != nil {
				return err
			}
			status.AwardedBadges = awarded
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if status.RewardGranted {
		log.Printf("🏁 Challenge completed: %s by %s (+%d XP)", status.ChallengeID, accountID, status.XPGranted)
		if s.Events != nil {
			err := s.Events.Publish(events.TopicChallengeCompleted, accountID, events.ChallengeCompletedEvent{
				AccountID:   accountID,
				TenantID:    tenantID,
				ChallengeID: status.ChallengeID,
				XPGranted:   status.XPGranted,
			})
			if err != nil {
				log.Printf("⚠️  Failed to publish challenge-completed for %s: %v", accountID, err)
			}
		}
		s.Progression.Badges.publishAwards(accountID, tenantID, status.AwardedBadges)
	}
	return &status, nil
}

// RecordProgressByAction fans an activity event out to every active flip
// challenge with a task matching the tag.
func (s *ChallengeService) RecordProgressByAction(accountID, tenantID, actionTag string, delta int64) ([]*ChallengeStatus, error) {
	var challengeIDs []string
	err := s.DB.Model(&models.ChallengeTask{}).
		Distinct("challenge_tasks.challenge_id").
		Joins("JOIN challenges ON challenges.id = challenge_tasks.challenge_id").
		Where("challenge_tasks.action_tag = ? AND challenges.tenant_id = ? AND challenges.active = ? AND challenges.type = ?",
			actionTag, tenantID, true, models.ChallengeTypeFlip).
		Pluck("challenge_tasks.challenge_id", &challengeIDs).Error
	if err != nil {
		return nil, err
	}

	var statuses []*ChallengeStatus
	for _, id := range challengeIDs {
		st, err := s.RecordProgress(accountID, tenantID, id, actionTag, delta)
		if err != nil {
			return statuses, err
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// GetStatus reports per-task progress without mutating anything.
func (s *ChallengeService) GetStatus(accountID, challengeID string) (*ChallengeStatus, error) {
	var challenge models.Challenge
	err := s.DB.Preload("Tasks").Where("id = ?", challengeID).First(&challenge).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, err
	}

	status := &ChallengeStatus{ChallengeID: challenge.ID, Type: string(challenge.Type)}
	if challenge.Type != models.ChallengeTypeFlip {
		return status, nil
	}

	tasks := challenge.Tasks
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Position < tasks[j].Position })
	taskIDs := make([]string, len(tasks))
	for i, t := range tasks {
		taskIDs[i] = t.ID
	}

	progress := map[string]int64{}
	var rows []models.ChallengeTaskProgress
	if err := s.DB.Where("account_id = ? AND task_id IN ?", accountID, taskIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		progress[row.TaskID] = row.Count
	}

	status.Completed = true
	for _, t := range tasks {
		status.Tasks = append(status.Tasks, TaskStatus{
			TaskID:    t.ID,
			Position:  t.Position,
			ActionTag: t.ActionTag,
			Target:    t.Target,
			Count:     progress[t.ID],
		})
		if progress[t.ID] < t.Target {
			status.Completed = false
		}
	}
	return status, nil
}
