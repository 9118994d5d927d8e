package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/levelup-api/internal/models"
)

// SubmissionRepository defines data operations for attempts and their answers.
type SubmissionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	OpenSubmission(ctx context.Context, activityID, studentID uint) (models.Submission, error)
	CountAttempts(ctx context.Context, activityID, studentID uint) (int, error)
	Create(ctx context.Context, submission *models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
	ListByStudent(ctx context.Context, studentID uint, activityIDs []uint) ([]models.Submission, error)
	ListFinalized(ctx context.Context, activityID, studentID uint) ([]models.Submission, error)
	ListFinalizedHistory(ctx context.Context, studentID uint) ([]models.Submission, error)
	ListFinalizedByActivity(ctx context.Context, activityID uint) ([]models.Submission, error)
	RecentFinalized(ctx context.Context, teacherID *uint, limit int) ([]models.Submission, error)

	UpsertAnswer(ctx context.Context, answer *models.Answer) error
	ListAnswers(ctx context.Context, submissionID uint) ([]models.Answer, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) OpenSubmission(ctx context.Context, activityID, studentID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Where("activity_id = ? AND student_id = ? AND finalized = ?", activityID, studentID, false).
		Order("attempt DESC, id DESC").
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) CountAttempts(ctx context.Context, activityID, studentID uint) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("activity_id = ? AND student_id = ?", activityID, studentID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Omit("Activity", "Student", "Answers").Create(submission).Error
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Omit("Activity", "Student", "Answers").Save(submission).Error
}

func (r *submissionRepository) ListByStudent(ctx context.Context, studentID uint, activityIDs []uint) ([]models.Submission, error) {
	if len(activityIDs) == 0 {
		return []models.Submission{}, nil
	}
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND activity_id IN ?", studentID, activityIDs).
		Order("attempt ASC, id ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) ListFinalized(ctx context.Context, activityID, studentID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Where("activity_id = ? AND student_id = ? AND finalized = ?", activityID, studentID, true).
		Order("attempt ASC, id ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) ListFinalizedHistory(ctx context.Context, studentID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Preload("Activity.Subject").
		Where("student_id = ? AND finalized = ?", studentID, true).
		Order("submitted_at DESC, id DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) ListFinalizedByActivity(ctx context.Context, activityID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("Answers").
		Where("activity_id = ? AND finalized = ?", activityID, true).
		Order("student_id ASC, attempt ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) RecentFinalized(ctx context.Context, teacherID *uint, limit int) ([]models.Submission, error) {
	query := r.db.WithContext(ctx).
		Preload("Activity").
		Preload("Student").
		Where("submissions.finalized = ?", true)
	if teacherID != nil {
		query = query.
			Joins("JOIN activities ON activities.id = submissions.activity_id").
			Where("activities.teacher_id = ?", *teacherID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var submissions []models.Submission
	if err := query.Order("submissions.submitted_at DESC, submissions.id DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) UpsertAnswer(ctx context.Context, answer *models.Answer) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Answer
		err := tx.Where("submission_id = ? AND item_id = ?", answer.SubmissionID, answer.ItemID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Omit("Item").Create(answer).Error
		}
		if err != nil {
			return err
		}

		answer.ID = existing.ID
		answer.CreatedAt = existing.CreatedAt
		return tx.Omit("Item").Save(answer).Error
	})
}

func (r *submissionRepository) ListAnswers(ctx context.Context, submissionID uint) ([]models.Answer, error) {
	var answers []models.Answer
	if err := r.db.WithContext(ctx).Where("submission_id = ?", submissionID).Order("id ASC").Find(&answers).Error; err != nil {
		return nil, err
	}
	return answers, nil
}
