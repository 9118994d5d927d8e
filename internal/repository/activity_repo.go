package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/levelup-api/internal/models"
)

// ActivityRepository persists activities, their items and student assignments.
type ActivityRepository interface {
	Create(ctx context.Context, activity *models.Activity) error
	Save(ctx context.Context, activity *models.Activity) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint, withItems bool) (models.Activity, error)
	List(ctx context.Context, teacherID *uint) ([]models.Activity, error)
	CountByTeacher(ctx context.Context, teacherID *uint) (int64, error)

	NextItemPosition(ctx context.Context, activityID uint) (int, error)
	CreateItem(ctx context.Context, item *models.ActivityItem) error
	SaveItem(ctx context.Context, item *models.ActivityItem) error
	DeleteItem(ctx context.Context, activityID, itemID uint) error
	GetItem(ctx context.Context, activityID, itemID uint) (models.ActivityItem, error)

	EnsureAssignment(ctx context.Context, activityID, studentID uint) (bool, error)
	GetAssignment(ctx context.Context, activityID, studentID uint) (models.ActivityAssignment, error)
	SetAttemptsAllowed(ctx context.Context, activityID, studentID uint, attempts *int) error
	ListAssignments(ctx context.Context, activityID uint) ([]models.ActivityAssignment, error)
	CountAssignedStudents(ctx context.Context, teacherID *uint) (int64, error)
	ListAssignedPublished(ctx context.Context, studentID uint, subjectID *uint) ([]models.Activity, []models.ActivityAssignment, error)
}

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository constructs the activity repository.
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC, id ASC")
}

func (r *activityRepository) Create(ctx context.Context, activity *models.Activity) error {
	return r.db.WithContext(ctx).Omit("Items", "Subject", "Teacher").Create(activity).Error
}

func (r *activityRepository) Save(ctx context.Context, activity *models.Activity) error {
	return r.db.WithContext(ctx).Omit("Items", "Subject", "Teacher").Save(activity).Error
}

func (r *activityRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		submissions := tx.Model(&models.Submission{}).Select("id").Where("activity_id = ?", id)
		if err := tx.Where("submission_id IN (?)", submissions).Delete(&models.Answer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("activity_id = ?", id).Delete(&models.Submission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("activity_id = ?", id).Delete(&models.ActivityAssignment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("activity_id = ?", id).Delete(&models.ActivityItem{}).Error; err != nil {
			return err
		}
		return deleteByID(tx, &models.Activity{}, id)
	})
}

func (r *activityRepository) GetByID(ctx context.Context, id uint, withItems bool) (models.Activity, error) {
	query := r.db.WithContext(ctx).Preload("Subject")
	if withItems {
		query = query.Preload("Items", orderedItems)
	}

	var activity models.Activity
	if err := query.First(&activity, id).Error; err != nil {
		return models.Activity{}, err
	}
	return activity, nil
}

func (r *activityRepository) List(ctx context.Context, teacherID *uint) ([]models.Activity, error) {
	query := r.db.WithContext(ctx).Preload("Subject").Preload("Items", orderedItems)
	if teacherID != nil {
		query = query.Where("teacher_id = ?", *teacherID)
	}

	var activities []models.Activity
	if err := query.Order("created_at DESC, id DESC").Find(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}

func (r *activityRepository) CountByTeacher(ctx context.Context, teacherID *uint) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Activity{})
	if teacherID != nil {
		query = query.Where("teacher_id = ?", *teacherID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *activityRepository) NextItemPosition(ctx context.Context, activityID uint) (int, error) {
	var max int
	if err := r.db.WithContext(ctx).
		Model(&models.ActivityItem{}).
		Where("activity_id = ?", activityID).
		Select("COALESCE(MAX(position), 0)").
		Scan(&max).Error; err != nil {
		return 0, err
	}
	return max + 1, nil
}

func (r *activityRepository) CreateItem(ctx context.Context, item *models.ActivityItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *activityRepository) SaveItem(ctx context.Context, item *models.ActivityItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *activityRepository) DeleteItem(ctx context.Context, activityID, itemID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("item_id = ?", itemID).Delete(&models.Answer{}).Error; err != nil {
			return err
		}
		result := tx.Where("activity_id = ?", activityID).Delete(&models.ActivityItem{}, itemID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *activityRepository) GetItem(ctx context.Context, activityID, itemID uint) (models.ActivityItem, error) {
	var item models.ActivityItem
	if err := r.db.WithContext(ctx).Where("activity_id = ?", activityID).First(&item, itemID).Error; err != nil {
		return models.ActivityItem{}, err
	}
	return item, nil
}

func (r *activityRepository) EnsureAssignment(ctx context.Context, activityID, studentID uint) (bool, error) {
	_, err := r.GetAssignment(ctx, activityID, studentID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	assignment := models.ActivityAssignment{ActivityID: activityID, StudentID: studentID, AssignedAt: time.Now().UTC()}
	if err := r.db.WithContext(ctx).Omit("Activity", "Student").Create(&assignment).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *activityRepository) GetAssignment(ctx context.Context, activityID, studentID uint) (models.ActivityAssignment, error) {
	var assignment models.ActivityAssignment
	if err := r.db.WithContext(ctx).
		Where("activity_id = ? AND student_id = ?", activityID, studentID).
		First(&assignment).Error; err != nil {
		return models.ActivityAssignment{}, err
	}
	return assignment, nil
}

func (r *activityRepository) SetAttemptsAllowed(ctx context.Context, activityID, studentID uint, attempts *int) error {
	result := r.db.WithContext(ctx).
		Model(&models.ActivityAssignment{}).
		Where("activity_id = ? AND student_id = ?", activityID, studentID).
		Update("attempts_allowed", attempts)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *activityRepository) ListAssignments(ctx context.Context, activityID uint) ([]models.ActivityAssignment, error) {
	var assignments []models.ActivityAssignment
	if err := r.db.WithContext(ctx).
		Preload("Student").
		Where("activity_id = ?", activityID).
		Order("id ASC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *activityRepository) CountAssignedStudents(ctx context.Context, teacherID *uint) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.ActivityAssignment{}).
		Joins("JOIN activities ON activities.id = activity_assignments.activity_id")
	if teacherID != nil {
		query = query.Where("activities.teacher_id = ?", *teacherID)
	}
	var count int64
	if err := query.Distinct("activity_assignments.student_id").Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *activityRepository) ListAssignedPublished(ctx context.Context, studentID uint, subjectID *uint) ([]models.Activity, []models.ActivityAssignment, error) {
	var assignments []models.ActivityAssignment
	if err := r.db.WithContext(ctx).Where("student_id = ?", studentID).Find(&assignments).Error; err != nil {
		return nil, nil, err
	}
	if len(assignments) == 0 {
		return []models.Activity{}, assignments, nil
	}

	ids := make([]uint, 0, len(assignments))
	for _, assignment := range assignments {
		ids = append(ids, assignment.ActivityID)
	}

	query := r.db.WithContext(ctx).
		Preload("Subject").
		Where("id IN ?", ids).
		Where("published = ?", true)
	if subjectID != nil {
		query = query.Where("subject_id = ?", *subjectID)
	}

	var activities []models.Activity
	if err := query.Order("created_at DESC, id DESC").Find(&activities).Error; err != nil {
		return nil, nil, err
	}
	return activities, assignments, nil
}
